package distribution

import (
	"context"
	"errors"
	"slices"
	"strings"

	"crm_backend/internal/leads/domain"
	"crm_backend/internal/leads/repository"
	"crm_backend/internal/leads/transport"
	"crm_backend/platform/apperr"

	"github.com/google/uuid"
)

// GetRule returns the pipeline's distribution rule. A pipeline without a
// stored rule reports the manual default with Configured unset.
func (s *Service) GetRule(ctx context.Context, tenantID, pipelineID uuid.UUID) (transport.DistributionRuleResponse, error) {
	if err := s.requirePipeline(ctx, tenantID, pipelineID); err != nil {
		return transport.DistributionRuleResponse{}, err
	}

	rule, err := s.store.GetDistributionRule(ctx, tenantID, pipelineID)
	if errors.Is(err, repository.ErrNotFound) {
		return toRuleResponse(domain.ManualRule(tenantID, pipelineID), false), nil
	}
	if err != nil {
		return transport.DistributionRuleResponse{}, err
	}
	return toRuleResponse(rule, true), nil
}

// SaveRule creates or replaces the pipeline's distribution rule. Changing the
// mode clears the rotation cursor.
func (s *Service) SaveRule(ctx context.Context, tenantID, pipelineID uuid.UUID, req transport.SaveDistributionRuleRequest) (transport.DistributionRuleResponse, error) {
	if !domain.IsKnownDistributionMode(req.Mode) {
		return transport.DistributionRuleResponse{}, apperr.Validation("unknown distribution mode")
	}

	wh := domain.WorkingHours{
		Enabled: req.WorkingHoursOnly,
		Start:   strings.TrimSpace(req.WorkingHoursStart),
		End:     strings.TrimSpace(req.WorkingHoursEnd),
		Days:    slices.Clone(req.WorkingDays),
	}
	if len(wh.Days) == 0 {
		wh.Days = slices.Clone(domain.DefaultWorkingDays)
	}
	if reason := wh.Validate(); reason != "" {
		return transport.DistributionRuleResponse{}, apperr.Validation(reason)
	}

	if err := s.requirePipeline(ctx, tenantID, pipelineID); err != nil {
		return transport.DistributionRuleResponse{}, err
	}

	rule, err := s.store.UpsertDistributionRule(ctx, repository.SaveDistributionRuleParams{
		TenantID:         tenantID,
		PipelineID:       pipelineID,
		Mode:             req.Mode,
		IsActive:         req.IsActive.Or(true),
		WorkingHours:     wh,
		FallbackToManual: req.FallbackToManual.Or(true),
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.DistributionRuleResponse{}, apperr.NotFound("pipeline not found")
		}
		return transport.DistributionRuleResponse{}, err
	}
	return toRuleResponse(rule, true), nil
}

// ResetCursor restarts the rotation at the first eligible member.
func (s *Service) ResetCursor(ctx context.Context, tenantID, pipelineID uuid.UUID) error {
	if err := s.store.ResetCursor(ctx, tenantID, pipelineID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("distribution rule not found")
		}
		return err
	}
	return nil
}

// Preview reports who would receive the next lead without moving the cursor
// or touching the counters.
func (s *Service) Preview(ctx context.Context, tenantID, pipelineID uuid.UUID) (transport.DistributionPreviewResponse, error) {
	if err := s.requirePipeline(ctx, tenantID, pipelineID); err != nil {
		return transport.DistributionPreviewResponse{}, err
	}

	p, err := s.plan(ctx, tenantID, pipelineID)
	if err != nil {
		return transport.DistributionPreviewResponse{}, err
	}

	resp := transport.DistributionPreviewResponse{
		WouldAssign:   p.Assigned(),
		MemberID:      p.MemberID,
		EligibleCount: p.EligibleCount,
		Method:        p.Method,
		Reason:        p.Reason,
	}
	if p.Assigned() {
		pos := p.Position
		resp.Position = &pos
		resp.MemberName = strings.TrimSpace(p.Member.FirstName + " " + p.Member.LastName)
		resp.MemberEmail = p.Member.Email
	}
	return resp, nil
}

// Stats returns the rule's counters and the most recent assignment attempts.
func (s *Service) Stats(ctx context.Context, tenantID, pipelineID uuid.UUID) (transport.DistributionStatsResponse, error) {
	if err := s.requirePipeline(ctx, tenantID, pipelineID); err != nil {
		return transport.DistributionStatsResponse{}, err
	}

	rule, err := s.store.GetDistributionRule(ctx, tenantID, pipelineID)
	if errors.Is(err, repository.ErrNotFound) {
		rule = domain.ManualRule(tenantID, pipelineID)
	} else if err != nil {
		return transport.DistributionStatsResponse{}, err
	}

	records, err := s.store.ListAssignmentRecords(ctx, tenantID, pipelineID, recentAssignmentCap)
	if err != nil {
		return transport.DistributionStatsResponse{}, err
	}

	recent := make([]transport.AssignmentRecordResponse, 0, len(records))
	for _, rec := range records {
		recent = append(recent, transport.AssignmentRecordResponse{
			ID:                   rec.ID,
			LeadID:               rec.LeadID,
			AssignedTo:           rec.AssignedTo,
			Method:               rec.Method,
			RoundRobinPosition:   rec.RoundRobinPosition,
			TotalEligibleMembers: rec.TotalEligibleMembers,
			Status:               rec.Status,
			ErrorMessage:         rec.ErrorMessage,
			CreatedAt:            rec.CreatedAt,
		})
	}

	return transport.DistributionStatsResponse{
		TotalAssignments:      rule.TotalAssignments,
		SuccessfulAssignments: rule.SuccessfulAssignments,
		FailedAssignments:     rule.FailedAssignments,
		SuccessRate:           rule.SuccessRate(),
		LastAssignmentAt:      rule.LastAssignmentAt,
		RecentAssignments:     recent,
	}, nil
}

// requirePipeline hides pipelines of other tenants behind not found.
func (s *Service) requirePipeline(ctx context.Context, tenantID, pipelineID uuid.UUID) error {
	p, err := s.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("pipeline not found")
		}
		return err
	}
	if p.TenantID != tenantID {
		return apperr.NotFound("pipeline not found")
	}
	return nil
}

func toRuleResponse(rule domain.DistributionRule, configured bool) transport.DistributionRuleResponse {
	return transport.DistributionRuleResponse{
		PipelineID:            rule.PipelineID,
		Mode:                  rule.Mode,
		IsActive:              rule.IsActive,
		WorkingHoursOnly:      rule.WorkingHours.Enabled,
		WorkingHoursStart:     rule.WorkingHours.Start,
		WorkingHoursEnd:       rule.WorkingHours.End,
		WorkingDays:           rule.WorkingHours.Days,
		FallbackToManual:      rule.FallbackToManual,
		LastAssignedMemberID:  rule.LastAssignedMemberID,
		TotalAssignments:      rule.TotalAssignments,
		SuccessfulAssignments: rule.SuccessfulAssignments,
		FailedAssignments:     rule.FailedAssignments,
		LastAssignmentAt:      rule.LastAssignmentAt,
		Configured:            configured,
	}
}
