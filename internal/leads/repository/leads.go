package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadColumns = `id, tenant_id, pipeline_id, stage_id, assigned_to, custom_data, lifecycle_stage, created_via, created_by, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var (
		lead    Lead
		rawData []byte
		stage   string
		source  string
	)
	err := row.Scan(
		&lead.ID,
		&lead.TenantID,
		&lead.PipelineID,
		&lead.StageID,
		&lead.AssignedTo,
		&rawData,
		&stage,
		&source,
		&lead.CreatedBy,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}

	data, err := domain.ParseDataBag(rawData)
	if err != nil {
		return Lead{}, fmt.Errorf("decode custom data for lead %s: %w", lead.ID, err)
	}
	lead.Data = data
	lead.LifecycleStage = domain.LifecycleStage(stage)
	lead.Source = domain.LeadSource(source)
	return lead, nil
}

// CreateLead inserts an unassigned lead at the lead lifecycle stage.
func (r *Repository) CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error) {
	data := params.Data
	if data == nil {
		data = domain.DataBag{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return Lead{}, err
	}

	return scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO pipeline_leads (tenant_id, pipeline_id, stage_id, custom_data, lifecycle_stage, created_via, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+leadColumns,
		params.TenantID, params.PipelineID, params.StageID, dataJSON, string(domain.StageLead), string(params.Source), params.CreatedBy,
	))
}

func (r *Repository) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM pipeline_leads
		WHERE id = $1 AND tenant_id = $2
	`, leadID, tenantID))
}

// AssignLead sets the owner of a lead.
func (r *Repository) AssignLead(ctx context.Context, tenantID, leadID, memberID uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		UPDATE pipeline_leads
		SET assigned_to = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+leadColumns,
		leadID, tenantID, memberID,
	))
}

// UpdateLeadData replaces the lead's data bag.
func (r *Repository) UpdateLeadData(ctx context.Context, tenantID, leadID uuid.UUID, data domain.DataBag) (Lead, error) {
	if data == nil {
		data = domain.DataBag{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return Lead{}, err
	}

	return scanLead(r.pool.QueryRow(ctx, `
		UPDATE pipeline_leads
		SET custom_data = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+leadColumns,
		leadID, tenantID, dataJSON,
	))
}

// PromoteLifecycleStage moves a lead from one stage to another only while it
// is still at from. It reports false when another writer got there first.
func (r *Repository) PromoteLifecycleStage(ctx context.Context, tenantID, leadID uuid.UUID, from, to domain.LifecycleStage) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pipeline_leads
		SET lifecycle_stage = $4, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND lifecycle_stage = $3
	`, leadID, tenantID, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetLifecycleStage unconditionally sets the stage and returns the stage the
// lead held before.
func (r *Repository) SetLifecycleStage(ctx context.Context, tenantID, leadID uuid.UUID, to domain.LifecycleStage) (domain.LifecycleStage, error) {
	var previous string
	err := r.pool.QueryRow(ctx, `
		UPDATE pipeline_leads l
		SET lifecycle_stage = $3, updated_at = now()
		FROM (
			SELECT id, lifecycle_stage
			FROM pipeline_leads
			WHERE id = $1 AND tenant_id = $2
			FOR UPDATE
		) prev
		WHERE l.id = prev.id
		RETURNING prev.lifecycle_stage
	`, leadID, tenantID, string(to)).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return domain.LifecycleStage(previous), nil
}

// ListLeadsBelowStage returns the pipeline's leads that automatic
// qualification can still promote.
func (r *Repository) ListLeadsBelowStage(ctx context.Context, tenantID, pipelineID uuid.UUID, stage domain.LifecycleStage) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM pipeline_leads
		WHERE tenant_id = $1 AND pipeline_id = $2 AND lifecycle_stage <> $3
		ORDER BY created_at ASC
	`, tenantID, pipelineID, string(stage))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

// CountLifecycleStages counts a tenant's leads per stage, optionally limited
// to one pipeline.
func (r *Repository) CountLifecycleStages(ctx context.Context, tenantID uuid.UUID, pipelineID *uuid.UUID) (StageCounts, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT lifecycle_stage, COUNT(*)
		FROM pipeline_leads
		WHERE tenant_id = $1 AND ($2::uuid IS NULL OR pipeline_id = $2)
		GROUP BY lifecycle_stage
	`, tenantID, pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := StageCounts{domain.StageLead: 0, domain.StageMQL: 0, domain.StageSQL: 0}
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, err
		}
		counts[domain.LifecycleStage(stage)] = n
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return counts, nil
}
