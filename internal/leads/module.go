// Package leads provides the lead lifecycle bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"context"

	"crm_backend/internal/events"
	apphttp "crm_backend/internal/http"
	"crm_backend/internal/leads/distribution"
	"crm_backend/internal/leads/handler"
	"crm_backend/internal/leads/history"
	"crm_backend/internal/leads/management"
	"crm_backend/internal/leads/qualification"
	"crm_backend/internal/leads/repository"
	"crm_backend/platform/config"
	"crm_backend/platform/httpkit"
	"crm_backend/platform/logger"
	"crm_backend/platform/redislock"
	"crm_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the configuration surface the leads module reads.
type Config interface {
	config.DistributionConfig
	config.FormCaptureConfig
	config.PhoneConfig
}

// RequalificationScheduler queues a background re-evaluation of a pipeline's leads.
type RequalificationScheduler interface {
	ScheduleRequalification(ctx context.Context, tenantID, pipelineID uuid.UUID) error
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	repo          *repository.Repository
	distribution  *distribution.Service
	qualification *qualification.Service
	management    *management.Service
	handler       *handler.Handler
	pipelines     *handler.PipelineHandler
	public        *handler.PublicHandler
	requalifier   RequalificationScheduler
	log           *logger.Logger
}

// NewModule creates and initializes the leads module with all its dependencies.
// redis may be nil; rotation steps are then serialised per process and the
// store-level compare-and-swap guards across instances.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, redis redislock.Client, val *validator.Validator, cfg Config, log *logger.Logger) *Module {
	repo := repository.New(pool)
	recorder := history.New(repo, log)

	opts := distribution.Options{
		MaxAttempts: cfg.GetDistributionMaxAttempts(),
		RetryDelay:  cfg.GetDistributionRetryDelay(),
	}
	if redis != nil && cfg.GetDistributionLockEnabled() {
		opts.Locker = redislock.New(redis, cfg.GetDistributionLockTTL())
	}

	distSvc := distribution.New(repo, log, opts)
	qualSvc := qualification.New(repo, recorder, eventBus, log)
	mgmtSvc := management.New(repo, distSvc, qualSvc, recorder, eventBus, log)
	mgmtSvc.SetPhoneRegion(cfg.GetPhoneDefaultRegion())

	m := &Module{
		repo:          repo,
		distribution:  distSvc,
		qualification: qualSvc,
		management:    mgmtSvc,
		handler:       handler.New(mgmtSvc, qualSvc, val),
		pipelines:     handler.NewPipelineHandler(distSvc, qualSvc, val),
		public:        handler.NewPublicHandler(mgmtSvc, val, httpkit.NewFormCaptureRateLimiter(cfg, log)),
		log:           log,
	}

	eventBus.Subscribe(events.QualificationRulesChanged{}.EventName(), events.HandlerFunc(m.onRulesChanged))

	return m
}

// SetRequalificationScheduler routes rule-change re-evaluation through the task queue.
// Without one the module re-evaluates in-process.
func (m *Module) SetRequalificationScheduler(s RequalificationScheduler) {
	m.requalifier = s
}

func (m *Module) onRulesChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(events.QualificationRulesChanged)
	if !ok {
		return nil
	}

	if m.requalifier != nil {
		err := m.requalifier.ScheduleRequalification(ctx, e.TenantID, e.PipelineID)
		if err == nil {
			return nil
		}
		m.log.Warn("requalification enqueue failed, running inline", "error", err, "pipelineId", e.PipelineID)
	}

	res, err := m.qualification.ReevaluatePipeline(context.WithoutCancel(ctx), e.TenantID, e.PipelineID)
	if err != nil {
		m.log.Error("pipeline requalification failed", "error", err, "pipelineId", e.PipelineID)
		return err
	}
	m.log.Info("pipeline requalified", "pipelineId", e.PipelineID, "evaluated", res.Evaluated, "promoted", res.Promoted)
	return nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository returns the shared leads repository.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// DistributionService returns the round-robin distributor.
func (m *Module) DistributionService() *distribution.Service {
	return m.distribution
}

// QualificationService returns the qualification service for external use.
func (m *Module) QualificationService() *qualification.Service {
	return m.qualification
}

// ManagementService returns the lead management service for external use.
func (m *Module) ManagementService() *management.Service {
	return m.management
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
	m.pipelines.RegisterRoutes(ctx.Protected.Group("/pipelines"))
	ctx.Protected.GET("/qualification/stats", m.pipelines.QualificationStats)

	m.public.RegisterRoutes(ctx.V1.Group("/public/pipelines"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
