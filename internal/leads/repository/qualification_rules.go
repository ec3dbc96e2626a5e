package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetQualificationRules returns the pipeline's stored rule set as raw JSON.
// A pipeline without rules yields nil.
func (r *Repository) GetQualificationRules(ctx context.Context, tenantID, pipelineID uuid.UUID) ([]byte, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT qualification_rules
		FROM pipelines
		WHERE id = $1 AND tenant_id = $2
	`, pipelineID, tenantID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// SaveQualificationRules replaces the pipeline's rule set.
func (r *Repository) SaveQualificationRules(ctx context.Context, tenantID, pipelineID uuid.UUID, raw []byte) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pipelines
		SET qualification_rules = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, pipelineID, tenantID, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
