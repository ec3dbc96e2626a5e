// Command leadctl is the operator CLI for pipeline lead automation: rule
// import and export, distribution cursor maintenance and re-qualification.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"crm_backend/internal/events"
	"crm_backend/internal/leads"
	"crm_backend/internal/leads/distribution"
	"crm_backend/internal/leads/qualification"
	"crm_backend/internal/scheduler"
	"crm_backend/platform/config"
	"crm_backend/platform/db"
	"crm_backend/platform/logger"
	"crm_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var Version = "dev"

// backend is what the commands operate on.
type backend struct {
	Distribution  *distribution.Service
	Qualification *qualification.Service
	// Close flushes pending event handlers and releases connections.
	Close func()
}

type connectFunc func(ctx context.Context) (*backend, error)

// target holds the --tenant and --pipeline flags shared by every command.
type target struct {
	tenant   string
	pipeline string
}

func (t *target) ids() (tenantID, pipelineID uuid.UUID, err error) {
	if t.tenant == "" || t.pipeline == "" {
		return uuid.Nil, uuid.Nil, errors.New("--tenant and --pipeline are required")
	}
	tenantID, err = uuid.Parse(t.tenant)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid --tenant: %w", err)
	}
	pipelineID, err = uuid.Parse(t.pipeline)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid --pipeline: %w", err)
	}
	return tenantID, pipelineID, nil
}

func newRootCmd(connect connectFunc) *cobra.Command {
	tgt := &target{}

	cmd := &cobra.Command{
		Use:           "leadctl",
		Short:         "Operate lead distribution and qualification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&tgt.tenant, "tenant", "", "tenant (organization) id")
	cmd.PersistentFlags().StringVar(&tgt.pipeline, "pipeline", "", "pipeline id")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRulesCmd(connect, tgt))
	cmd.AddCommand(newDistributionCmd(connect, tgt))
	cmd.AddCommand(newQualificationCmd(connect, tgt))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "leadctl %s\n", Version)
		},
	}
}

// withBackend resolves the target, connects and runs fn, always closing the backend.
func withBackend(cmd *cobra.Command, connect connectFunc, tgt *target, fn func(ctx context.Context, b *backend, tenantID, pipelineID uuid.UUID) error) error {
	tenantID, pipelineID, err := tgt.ids()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer b.Close()

	return fn(ctx, b, tenantID, pipelineID)
}

// connectDatabase wires the leads module against the configured database.
// Rule changes are queued for the worker when Redis is configured and
// re-evaluated in-process otherwise.
func connectDatabase(ctx context.Context) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewWithWriter(cfg.Env, os.Stderr)

	pool, err := db.NewPool(ctx, cfg, db.WithApplicationName("leadctl"), db.WithMaxConns(2))
	if err != nil {
		return nil, err
	}

	bus := events.NewInMemoryBus(log)
	module := leads.NewModule(pool, bus, nil, validator.New(), cfg, log)

	var sched *scheduler.Client
	if cfg.IsSchedulerEnabled() {
		sched, err = scheduler.NewClient(cfg)
		if err != nil {
			log.Warn("scheduler unavailable; re-evaluating in-process", "error", err)
		} else {
			module.SetRequalificationScheduler(sched)
		}
	}

	return &backend{
		Distribution:  module.DistributionService(),
		Qualification: module.QualificationService(),
		Close: func() {
			bus.Wait()
			_ = sched.Close()
			pool.Close()
		},
	}, nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd(connectDatabase)))
}
