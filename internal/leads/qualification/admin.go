package qualification

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync/atomic"

	"crm_backend/internal/events"
	"crm_backend/internal/leads/domain"
	"crm_backend/internal/leads/history"
	"crm_backend/internal/leads/repository"
	"crm_backend/internal/leads/transport"
	"crm_backend/platform/apperr"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const reevaluateConcurrency = 8

// ApplyManualQualification sets a lead's stage regardless of rules. Unlike
// automatic promotion it may move a lead backwards.
func (s *Service) ApplyManualQualification(ctx context.Context, tenantID, leadID uuid.UUID, req transport.ManualQualificationRequest, actorID uuid.UUID) (transport.ManualQualificationResponse, error) {
	if strings.TrimSpace(string(req.Stage)) == "" {
		return transport.ManualQualificationResponse{}, apperr.Validation("stage is required")
	}
	target, ok := domain.ParseLifecycleStage(string(req.Stage))
	if !ok {
		return transport.ManualQualificationResponse{}, apperr.Validation("unknown lifecycle stage")
	}

	lead, err := s.store.GetLead(ctx, tenantID, leadID)
	if err != nil {
		if isNotFound(err) {
			return transport.ManualQualificationResponse{}, apperr.NotFound("lead not found")
		}
		return transport.ManualQualificationResponse{}, err
	}

	stored, err := s.store.SetLifecycleStage(ctx, tenantID, leadID, target)
	if err != nil {
		if isNotFound(err) {
			return transport.ManualQualificationResponse{}, apperr.NotFound("lead not found")
		}
		return transport.ManualQualificationResponse{}, err
	}
	previous, ok := domain.ParseLifecycleStage(string(stored))
	if !ok {
		previous = stored
	}

	label := strings.TrimSpace(req.Reason)
	if label == "" {
		label = repository.ManualQualificationLabel
	}
	actor := actorID
	s.recorder.StageChanged(ctx, history.StageChange{
		TenantID:    tenantID,
		LeadID:      leadID,
		From:        previous,
		To:          target,
		ChangedBy:   &actor,
		RuleMatched: label,
		Metadata: map[string]any{
			"pipeline_id": lead.PipelineID.String(),
			"reason":      strings.TrimSpace(req.Reason),
		},
	})
	s.bus.Publish(ctx, events.LeadQualified{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      leadID,
		TenantID:    tenantID,
		PipelineID:  lead.PipelineID,
		FromStage:   string(previous),
		ToStage:     string(target),
		RuleMatched: label,
	})

	return transport.ManualQualificationResponse{
		LeadID:        leadID,
		PreviousStage: previous,
		NewStage:      target,
	}, nil
}

// GetRules returns the pipeline's rule set with missing tiers as empty lists.
func (s *Service) GetRules(ctx context.Context, tenantID, pipelineID uuid.UUID) (transport.QualificationRulesResponse, error) {
	rs, err := s.ruleSet(ctx, tenantID, pipelineID)
	if err != nil {
		return transport.QualificationRulesResponse{}, err
	}
	return transport.QualificationRulesResponse{
		PipelineID: pipelineID,
		MQL:        transport.RulesToDTO(rs.MQL),
		SQL:        transport.RulesToDTO(rs.SQL),
	}, nil
}

// RuleSet returns the pipeline's stored rules in domain form.
func (s *Service) RuleSet(ctx context.Context, tenantID, pipelineID uuid.UUID) (domain.RuleSet, error) {
	return s.ruleSet(ctx, tenantID, pipelineID)
}

func (s *Service) ruleSet(ctx context.Context, tenantID, pipelineID uuid.UUID) (domain.RuleSet, error) {
	raw, err := s.store.GetQualificationRules(ctx, tenantID, pipelineID)
	if err != nil {
		if isNotFound(err) {
			return domain.RuleSet{}, apperr.NotFound("pipeline not found")
		}
		return domain.RuleSet{}, err
	}
	rs, err := domain.ParseRuleSet(raw)
	if err != nil {
		s.log.WithContext(ctx).Warn("stored qualification rules are malformed", "pipelineId", pipelineID, "error", err)
	}
	return rs, nil
}

// SaveRules validates and stores a pipeline's rule set, then announces the
// change so existing leads can be re-evaluated.
func (s *Service) SaveRules(ctx context.Context, tenantID, pipelineID uuid.UUID, rs domain.RuleSet, actorID *uuid.UUID) (transport.QualificationRulesResponse, error) {
	rs = rs.Normalize()
	if reason := domain.ValidateRuleSet(rs); reason != "" {
		return transport.QualificationRulesResponse{}, apperr.Validation(reason)
	}

	raw, err := json.Marshal(rs)
	if err != nil {
		return transport.QualificationRulesResponse{}, err
	}
	if err := s.store.SaveQualificationRules(ctx, tenantID, pipelineID, raw); err != nil {
		if isNotFound(err) {
			return transport.QualificationRulesResponse{}, apperr.NotFound("pipeline not found")
		}
		return transport.QualificationRulesResponse{}, err
	}

	s.bus.Publish(ctx, events.QualificationRulesChanged{
		BaseEvent:  events.NewBaseEvent(),
		TenantID:   tenantID,
		PipelineID: pipelineID,
		ChangedBy:  actorID,
		MQLRules:   len(rs.MQL),
		SQLRules:   len(rs.SQL),
	})

	return transport.QualificationRulesResponse{
		PipelineID: pipelineID,
		MQL:        transport.RulesToDTO(rs.MQL),
		SQL:        transport.RulesToDTO(rs.SQL),
	}, nil
}

// Stats counts leads per lifecycle stage, optionally for one pipeline.
// Conversion rates are percentages rounded to two decimals; the MQL rate
// includes leads that went on to SQL.
func (s *Service) Stats(ctx context.Context, tenantID uuid.UUID, pipelineID *uuid.UUID) (transport.QualificationStatsResponse, error) {
	counts, err := s.store.CountLifecycleStages(ctx, tenantID, pipelineID)
	if err != nil {
		return transport.QualificationStatsResponse{}, err
	}

	resp := transport.QualificationStatsResponse{
		Lead:  counts[domain.StageLead],
		MQL:   counts[domain.StageMQL],
		SQL:   counts[domain.StageSQL],
		Total: counts.Total(),
	}
	if resp.Total > 0 {
		resp.MQLConversionRate = percent(resp.MQL+resp.SQL, resp.Total)
		resp.SQLConversionRate = percent(resp.SQL, resp.Total)
	}
	return resp, nil
}

func percent(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*10000) / 100
}

// ReevaluatePipeline runs the current rules against every lead of the
// pipeline that has not reached the terminal stage.
func (s *Service) ReevaluatePipeline(ctx context.Context, tenantID, pipelineID uuid.UUID) (transport.ReevaluationResponse, error) {
	p, err := s.store.GetPipeline(ctx, pipelineID)
	if err != nil || p.TenantID != tenantID {
		if err == nil || isNotFound(err) {
			return transport.ReevaluationResponse{}, apperr.NotFound("pipeline not found")
		}
		return transport.ReevaluationResponse{}, err
	}

	rules, err := s.loadRules(ctx, tenantID, pipelineID)
	if err != nil {
		return transport.ReevaluationResponse{}, err
	}
	if rules == nil || rules.IsEmpty() {
		return transport.ReevaluationResponse{}, nil
	}

	leads, err := s.store.ListLeadsBelowStage(ctx, tenantID, pipelineID, domain.StageSQL)
	if err != nil {
		return transport.ReevaluationResponse{}, err
	}

	var evaluated, promoted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reevaluateConcurrency)
	for _, lead := range leads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := s.promote(gctx, lead, lead.Data, rules)
			evaluated.Add(1)
			if out.Promoted {
				promoted.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return transport.ReevaluationResponse{}, err
	}

	s.log.WithContext(ctx).Info("pipeline re-evaluated",
		"pipelineId", pipelineID, "evaluated", evaluated.Load(), "promoted", promoted.Load())
	return transport.ReevaluationResponse{
		Evaluated: int(evaluated.Load()),
		Promoted:  int(promoted.Load()),
	}, nil
}
