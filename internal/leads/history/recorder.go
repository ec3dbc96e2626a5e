// Package history records the lifecycle and assignment audit trail of leads.
// Audit writes are advisory: a failed write is logged and reported through
// Result, never returned as an error.
package history

import (
	"context"

	"crm_backend/internal/leads/domain"
	"crm_backend/internal/leads/repository"
	"crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Writer is the store surface the recorder appends to.
type Writer interface {
	CreateLifecycleHistory(ctx context.Context, params repository.CreateLifecycleHistoryParams) error
	CreateAssignmentRecord(ctx context.Context, params repository.CreateAssignmentRecordParams) error
}

// Result is the outcome of a best-effort audit write. Callers are free to
// discard it; the failure has already been logged.
type Result struct {
	err error
}

// Err returns the write error, if any.
func (r Result) Err() error { return r.err }

// OK reports whether every write succeeded.
func (r Result) OK() bool { return r.err == nil }

// Recorder appends audit entries.
type Recorder struct {
	writer Writer
	log    *logger.Logger
}

// New creates a Recorder.
func New(writer Writer, log *logger.Logger) *Recorder {
	return &Recorder{writer: writer, log: log}
}

// Assignment describes one distribution outcome for a lead.
type Assignment struct {
	MemberID      *uuid.UUID
	Method        string
	Position      *int
	EligibleCount *int
	Status        string
	Reason        string
}

// StageChange describes a lifecycle transition.
type StageChange struct {
	TenantID    uuid.UUID
	LeadID      uuid.UUID
	From        domain.LifecycleStage
	To          domain.LifecycleStage
	ChangedBy   *uuid.UUID
	Automatic   bool
	RuleMatched string
	Metadata    map[string]any
}

// LeadCreated records the creation of a lead once distribution has run.
// assigned_to is the resolved owner, or nil when the lead stayed unassigned.
func (r *Recorder) LeadCreated(ctx context.Context, lead repository.Lead) Result {
	var owner any
	if lead.AssignedTo != nil {
		owner = lead.AssignedTo.String()
	}
	return r.lifecycle(ctx, "lead_created", repository.CreateLifecycleHistoryParams{
		TenantID:            lead.TenantID,
		LeadID:              lead.ID,
		Action:              repository.ActionLeadCreated,
		ToStage:             lead.LifecycleStage,
		ChangedBy:           lead.CreatedBy,
		AutomationTriggered: lead.CreatedBy == nil,
		Metadata: map[string]any{
			"pipeline_id": lead.PipelineID.String(),
			"stage_id":    lead.StageID.String(),
			"source":      string(lead.Source),
			"assigned_to": owner,
		},
	})
}

// Assigned records an automatic owner assignment: one lifecycle entry and
// one assignment-history row.
func (r *Recorder) Assigned(ctx context.Context, lead repository.Lead, a Assignment) Result {
	metadata := map[string]any{"method": a.Method}
	if a.MemberID != nil {
		metadata["assigned_to"] = a.MemberID.String()
	}
	if a.Position != nil {
		metadata["round_robin_position"] = *a.Position
	}
	if a.EligibleCount != nil {
		metadata["total_eligible_members"] = *a.EligibleCount
	}

	stage := lead.LifecycleStage
	first := r.lifecycle(ctx, "automatic_assignment", repository.CreateLifecycleHistoryParams{
		TenantID:            lead.TenantID,
		LeadID:              lead.ID,
		Action:              repository.ActionAutomaticAssignment,
		FromStage:           &stage,
		ToStage:             stage,
		AutomationTriggered: true,
		Metadata:            metadata,
	})
	second := r.AssignmentAttempt(ctx, lead, a)
	if !first.OK() {
		return first
	}
	return second
}

// AssignmentAttempt appends only the assignment-history row. It is used for
// skipped and failed attempts, which leave the lifecycle untouched.
func (r *Recorder) AssignmentAttempt(ctx context.Context, lead repository.Lead, a Assignment) Result {
	leadID := lead.ID
	var reason *string
	if a.Reason != "" {
		reason = &a.Reason
	}
	err := r.writer.CreateAssignmentRecord(ctx, repository.CreateAssignmentRecordParams{
		TenantID:             lead.TenantID,
		PipelineID:           lead.PipelineID,
		LeadID:               &leadID,
		AssignedTo:           a.MemberID,
		Method:               a.Method,
		RoundRobinPosition:   a.Position,
		TotalEligibleMembers: a.EligibleCount,
		Status:               a.Status,
		ErrorMessage:         reason,
	})
	return r.report(ctx, "assignment_record", lead.ID, err)
}

// StageChanged records a lifecycle transition.
func (r *Recorder) StageChanged(ctx context.Context, c StageChange) Result {
	action := repository.ActionManualQualification
	if c.Automatic {
		action = repository.ActionAutomaticQualification
	}
	from := c.From
	var rule *string
	if c.RuleMatched != "" {
		rule = &c.RuleMatched
	}
	return r.lifecycle(ctx, action, repository.CreateLifecycleHistoryParams{
		TenantID:            c.TenantID,
		LeadID:              c.LeadID,
		Action:              action,
		FromStage:           &from,
		ToStage:             c.To,
		ChangedBy:           c.ChangedBy,
		AutomationTriggered: c.Automatic,
		RuleMatched:         rule,
		Metadata:            c.Metadata,
	})
}

func (r *Recorder) lifecycle(ctx context.Context, operation string, params repository.CreateLifecycleHistoryParams) Result {
	return r.report(ctx, operation, params.LeadID, r.writer.CreateLifecycleHistory(ctx, params))
}

func (r *Recorder) report(ctx context.Context, operation string, leadID uuid.UUID, err error) Result {
	if err != nil {
		r.log.WithContext(ctx).AuditWriteFailed(operation, leadID.String(), err)
	}
	return Result{err: err}
}
