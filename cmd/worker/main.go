package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm_backend/internal/events"
	"crm_backend/internal/leads"
	"crm_backend/internal/scheduler"
	"crm_backend/platform/config"
	"crm_backend/platform/db"
	"crm_backend/platform/logger"
	"crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := db.WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg, db.WithApplicationName("crm-worker"), db.WithMaxConns(10))
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	// Worker-side wiring only; no HTTP handlers are mounted.
	leadsModule := leads.NewModule(pool, eventBus, nil, validator.New(), cfg, log)

	cleanup := scheduler.NewAssignmentHistoryCleanup(leadsModule.Repository(), log,
		cfg.GetHistoryCleanupInterval(), cfg.GetHistoryRetention(), cfg.GetSkippedHistoryRetention())
	go cleanup.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, leadsModule.QualificationService(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}
