// Package qualification promotes leads through the lifecycle stages using a
// pipeline's qualification rules, and administers those rules.
package qualification

import (
	"context"
	"errors"

	"crm_backend/internal/events"
	"crm_backend/internal/leads/domain"
	"crm_backend/internal/leads/history"
	"crm_backend/internal/leads/repository"
	"crm_backend/internal/leads/transport"
	"crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the data access qualification needs.
type Store interface {
	GetPipeline(ctx context.Context, pipelineID uuid.UUID) (repository.Pipeline, error)
	repository.LeadReader
	repository.LifecycleWriter
	repository.QualificationRuleStore
}

// Service evaluates and applies lifecycle promotions.
type Service struct {
	store    Store
	recorder *history.Recorder
	bus      events.Bus
	log      *logger.Logger
}

// New creates a qualification service.
func New(store Store, recorder *history.Recorder, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, recorder: recorder, bus: bus, log: log}
}

// Outcome is the result of evaluate-and-promote.
type Outcome struct {
	Promoted      bool
	PreviousStage domain.LifecycleStage
	NewStage      domain.LifecycleStage
	MatchedRule   string
}

// Response converts the outcome for API responses.
func (o Outcome) Response() transport.QualificationOutcomeResponse {
	return transport.QualificationOutcomeResponse{
		Promoted:      o.Promoted,
		PreviousStage: o.PreviousStage,
		NewStage:      o.NewStage,
		MatchedRule:   o.MatchedRule,
	}
}

// EvaluateAndPromote runs the lead's pipeline rules against data and, when a
// rule matches, moves the lead to the target stage and records the change.
// A nil data bag evaluates the lead's stored data. It never returns an
// error: any failure is logged and reported as no promotion.
func (s *Service) EvaluateAndPromote(ctx context.Context, tenantID, leadID uuid.UUID, data domain.DataBag) Outcome {
	log := s.log.WithContext(ctx)

	lead, err := s.store.GetLead(ctx, tenantID, leadID)
	if err != nil {
		log.Warn("qualification skipped: lead unavailable", "leadId", leadID, "error", err)
		return Outcome{}
	}
	if data == nil {
		data = lead.Data
	}

	rules, err := s.loadRules(ctx, tenantID, lead.PipelineID)
	if err != nil {
		log.Warn("qualification skipped: rules unavailable", "leadId", leadID, "pipelineId", lead.PipelineID, "error", err)
		return unchanged(lead)
	}
	return s.promote(ctx, lead, data, rules)
}

// loadRules returns nil when the pipeline has no usable rule set. A stored
// set that cannot be decoded is logged and treated as absent.
func (s *Service) loadRules(ctx context.Context, tenantID, pipelineID uuid.UUID) (*domain.RuleSet, error) {
	raw, err := s.store.GetQualificationRules(ctx, tenantID, pipelineID)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	rs, err := domain.ParseRuleSet(raw)
	if err != nil {
		s.log.WithContext(ctx).Warn("ignoring malformed qualification rules", "pipelineId", pipelineID, "error", err)
		return nil, nil
	}
	return &rs, nil
}

func (s *Service) promote(ctx context.Context, lead repository.Lead, data domain.DataBag, rules *domain.RuleSet) Outcome {
	decision := domain.Qualify(lead.LifecycleStage, data, rules)
	if !decision.Promote {
		return unchanged(lead)
	}

	from := lead.LifecycleStage
	ok, err := s.store.PromoteLifecycleStage(ctx, lead.TenantID, lead.ID, from, decision.Target)
	if err != nil {
		s.log.WithContext(ctx).Warn("qualification promotion failed", "leadId", lead.ID, "error", err)
		return unchanged(lead)
	}
	if !ok {
		// Stage changed since the lead was read; the other writer wins.
		return unchanged(lead)
	}

	previous, _ := domain.ParseLifecycleStage(string(from))
	s.recorder.StageChanged(ctx, history.StageChange{
		TenantID:    lead.TenantID,
		LeadID:      lead.ID,
		From:        previous,
		To:          decision.Target,
		Automatic:   true,
		RuleMatched: decision.MatchedRule,
		Metadata: map[string]any{
			"pipeline_id": lead.PipelineID.String(),
		},
	})
	s.bus.Publish(ctx, events.LeadQualified{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		TenantID:    lead.TenantID,
		PipelineID:  lead.PipelineID,
		FromStage:   string(previous),
		ToStage:     string(decision.Target),
		RuleMatched: decision.MatchedRule,
		Automatic:   true,
	})

	return Outcome{
		Promoted:      true,
		PreviousStage: previous,
		NewStage:      decision.Target,
		MatchedRule:   decision.MatchedRule,
	}
}

func unchanged(lead repository.Lead) Outcome {
	stage, ok := domain.ParseLifecycleStage(string(lead.LifecycleStage))
	if !ok {
		stage = lead.LifecycleStage
	}
	return Outcome{PreviousStage: stage, NewStage: stage}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
