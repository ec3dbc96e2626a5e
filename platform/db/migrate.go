// Package db provides database connection infrastructure.
// This is part of the platform layer and contains no business logic.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"crm_backend/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigrationResult summarises one applied migration.
type MigrationResult struct {
	Version  int64
	Source   string
	Duration string
}

// RunMigrations applies all pending migrations found at the root of fsys.
// It opens a short-lived database/sql handle through the pgx stdlib driver
// because goose drives migrations over database/sql.
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig, fsys fs.FS) ([]MigrationResult, error) {
	if fsys == nil {
		return nil, nil
	}

	sqlDB, err := sql.Open("pgx", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	applied := make([]MigrationResult, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		applied = append(applied, MigrationResult{
			Version:  r.Source.Version,
			Source:   r.Source.Path,
			Duration: r.Duration.String(),
		})
	}
	return applied, nil
}
