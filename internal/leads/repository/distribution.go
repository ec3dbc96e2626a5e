package repository

import (
	"context"
	"errors"
	"time"

	"crm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const distributionRuleColumns = `pipeline_id, tenant_id, mode, is_active, working_hours_only, working_hours_start, working_hours_end,
	working_days, fallback_to_manual, last_assigned_member_id, total_assignments, successful_assignments,
	failed_assignments, last_assignment_at, created_at, updated_at`

// Assignment outcome and method values stored in lead_assignment_history.
const (
	AssignmentStatusSuccess = "success"
	AssignmentStatusFailed  = "failed"
	AssignmentStatusSkipped = "skipped"

	AssignmentMethodRoundRobin = "round_robin"
	AssignmentMethodFallback   = "fallback"
	AssignmentMethodRejected   = "rejected"
	AssignmentMethodManual     = "manual"
)

type AssignmentRecord struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	PipelineID           uuid.UUID
	LeadID               *uuid.UUID
	AssignedTo           *uuid.UUID
	Method               string
	RoundRobinPosition   *int
	TotalEligibleMembers *int
	Status               string
	ErrorMessage         *string
	CreatedAt            time.Time
}

type CreateAssignmentRecordParams struct {
	TenantID             uuid.UUID
	PipelineID           uuid.UUID
	LeadID               *uuid.UUID
	AssignedTo           *uuid.UUID
	Method               string
	RoundRobinPosition   *int
	TotalEligibleMembers *int
	Status               string
	ErrorMessage         *string
}

func scanDistributionRule(row pgx.Row) (domain.DistributionRule, error) {
	var (
		rule       domain.DistributionRule
		mode       string
		start, end *string
	)
	err := row.Scan(
		&rule.PipelineID,
		&rule.TenantID,
		&mode,
		&rule.IsActive,
		&rule.WorkingHours.Enabled,
		&start,
		&end,
		&rule.WorkingHours.Days,
		&rule.FallbackToManual,
		&rule.LastAssignedMemberID,
		&rule.TotalAssignments,
		&rule.SuccessfulAssignments,
		&rule.FailedAssignments,
		&rule.LastAssignmentAt,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DistributionRule{}, ErrNotFound
	}
	if err != nil {
		return domain.DistributionRule{}, err
	}
	rule.Mode = domain.DistributionMode(mode)
	if start != nil {
		rule.WorkingHours.Start = *start
	}
	if end != nil {
		rule.WorkingHours.End = *end
	}
	return rule, nil
}

func (r *Repository) GetDistributionRule(ctx context.Context, tenantID, pipelineID uuid.UUID) (domain.DistributionRule, error) {
	return scanDistributionRule(r.pool.QueryRow(ctx, `
		SELECT `+distributionRuleColumns+`
		FROM pipeline_distribution_rules
		WHERE pipeline_id = $1 AND tenant_id = $2
	`, pipelineID, tenantID))
}

// UpsertDistributionRule stores the pipeline's configuration. A mode change
// clears the cursor so the next rotation starts from the first member.
func (r *Repository) UpsertDistributionRule(ctx context.Context, params SaveDistributionRuleParams) (domain.DistributionRule, error) {
	days := params.WorkingHours.Days
	if len(days) == 0 {
		days = domain.DefaultWorkingDays
	}

	return scanDistributionRule(r.pool.QueryRow(ctx, `
		INSERT INTO pipeline_distribution_rules (
			pipeline_id, tenant_id, mode, is_active, working_hours_only,
			working_hours_start, working_hours_end, working_days, fallback_to_manual
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (pipeline_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			is_active = EXCLUDED.is_active,
			working_hours_only = EXCLUDED.working_hours_only,
			working_hours_start = EXCLUDED.working_hours_start,
			working_hours_end = EXCLUDED.working_hours_end,
			working_days = EXCLUDED.working_days,
			fallback_to_manual = EXCLUDED.fallback_to_manual,
			last_assigned_member_id = CASE
				WHEN pipeline_distribution_rules.mode IS DISTINCT FROM EXCLUDED.mode THEN NULL
				ELSE pipeline_distribution_rules.last_assigned_member_id
			END,
			updated_at = now()
		WHERE pipeline_distribution_rules.tenant_id = EXCLUDED.tenant_id
		RETURNING `+distributionRuleColumns,
		params.PipelineID,
		params.TenantID,
		string(params.Mode),
		params.IsActive,
		params.WorkingHours.Enabled,
		nullableClock(params.WorkingHours.Start),
		nullableClock(params.WorkingHours.End),
		days,
		params.FallbackToManual,
	))
}

// AdvanceCursor moves the cursor from Expected to Next in one conditional
// update and counts the assignment. It reports false when the cursor no
// longer equals Expected or the rule stopped rotating.
func (r *Repository) AdvanceCursor(ctx context.Context, adv CursorAdvance) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pipeline_distribution_rules
		SET last_assigned_member_id = $3,
			total_assignments = total_assignments + 1,
			successful_assignments = successful_assignments + 1,
			last_assignment_at = $5,
			updated_at = now()
		WHERE pipeline_id = $1
			AND tenant_id = $2
			AND mode = 'round_robin'
			AND is_active
			AND last_assigned_member_id IS NOT DISTINCT FROM $4::uuid
	`, adv.PipelineID, adv.TenantID, adv.Next, adv.Expected, adv.At)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordDistributionFailure counts a failed automatic assignment.
func (r *Repository) RecordDistributionFailure(ctx context.Context, tenantID, pipelineID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE pipeline_distribution_rules
		SET total_assignments = total_assignments + 1,
			failed_assignments = failed_assignments + 1,
			updated_at = now()
		WHERE pipeline_id = $1 AND tenant_id = $2
	`, pipelineID, tenantID)
	return err
}

// ResetCursor clears the rotation cursor.
func (r *Repository) ResetCursor(ctx context.Context, tenantID, pipelineID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pipeline_distribution_rules
		SET last_assigned_member_id = NULL, updated_at = now()
		WHERE pipeline_id = $1 AND tenant_id = $2
	`, pipelineID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CreateAssignmentRecord(ctx context.Context, params CreateAssignmentRecordParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_assignment_history (
			tenant_id, pipeline_id, lead_id, assigned_to, assignment_method,
			round_robin_position, total_eligible_members, status, error_message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, params.TenantID, params.PipelineID, params.LeadID, params.AssignedTo, params.Method,
		params.RoundRobinPosition, params.TotalEligibleMembers, params.Status, params.ErrorMessage)
	return err
}

// ListAssignmentRecords returns the most recent assignment attempts first.
func (r *Repository) ListAssignmentRecords(ctx context.Context, tenantID, pipelineID uuid.UUID, limit int) ([]AssignmentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, pipeline_id, lead_id, assigned_to, assignment_method,
			round_robin_position, total_eligible_members, status, error_message, created_at
		FROM lead_assignment_history
		WHERE tenant_id = $1 AND pipeline_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, tenantID, pipelineID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]AssignmentRecord, 0)
	for rows.Next() {
		var rec AssignmentRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.TenantID,
			&rec.PipelineID,
			&rec.LeadID,
			&rec.AssignedTo,
			&rec.Method,
			&rec.RoundRobinPosition,
			&rec.TotalEligibleMembers,
			&rec.Status,
			&rec.ErrorMessage,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func nullableClock(s string) *string {
	if s == "" {
		return nil
	}
	normalized := domain.NormalizeClock(s)
	return &normalized
}

// DeleteAssignmentRecordsBefore prunes assignment history. Successful rows older
// than successBefore go, as do skipped and failed rows older than otherBefore.
func (r *Repository) DeleteAssignmentRecordsBefore(ctx context.Context, successBefore, otherBefore time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM lead_assignment_history
		WHERE (status = $1 AND created_at < $2)
			OR (status <> $1 AND created_at < $3)
	`, AssignmentStatusSuccess, successBefore, otherBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
