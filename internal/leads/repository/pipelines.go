package repository

import (
	"context"
	"errors"

	"crm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetPipeline loads a pipeline by ID across tenants. Callers compare the
// tenant themselves so that public capture can resolve it without a session.
func (r *Repository) GetPipeline(ctx context.Context, pipelineID uuid.UUID) (Pipeline, error) {
	var p Pipeline
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, is_active, created_at, updated_at
		FROM pipelines
		WHERE id = $1
	`, pipelineID).Scan(&p.ID, &p.TenantID, &p.Name, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Pipeline{}, ErrNotFound
	}
	if err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

// GetFirstStage returns the stage with the lowest order index.
func (r *Repository) GetFirstStage(ctx context.Context, pipelineID uuid.UUID) (Stage, error) {
	var s Stage
	err := r.pool.QueryRow(ctx, `
		SELECT id, pipeline_id, name, order_index, created_at
		FROM pipeline_stages
		WHERE pipeline_id = $1
		ORDER BY order_index ASC, created_at ASC
		LIMIT 1
	`, pipelineID).Scan(&s.ID, &s.PipelineID, &s.Name, &s.OrderIndex, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrNotFound
	}
	if err != nil {
		return Stage{}, err
	}
	return s, nil
}

// EnsureDefaultStage creates the canonical first stage unless a stage already
// holds its order index, then returns the pipeline's first stage. Concurrent
// callers converge on the same row.
func (r *Repository) EnsureDefaultStage(ctx context.Context, pipelineID uuid.UUID) (Stage, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pipeline_stages (pipeline_id, name, order_index)
		VALUES ($1, $2, $3)
		ON CONFLICT (pipeline_id, order_index) DO NOTHING
	`, pipelineID, domain.DefaultFirstStageName, domain.DefaultFirstStageOrder)
	if err != nil {
		return Stage{}, err
	}
	return r.GetFirstStage(ctx, pipelineID)
}

// ListPipelineMembers returns every user attached to the pipeline, eligible or
// not. Rotation filtering and ordering happen in the domain.
func (r *Repository) ListPipelineMembers(ctx context.Context, tenantID, pipelineID uuid.UUID) ([]domain.Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.first_name, u.last_name, u.email, u.role, u.is_active
		FROM pipeline_members pm
		JOIN users u ON u.id = pm.member_id
		WHERE pm.pipeline_id = $1 AND u.tenant_id = $2
		ORDER BY u.id ASC
	`, pipelineID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.Member, 0)
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Role, &m.IsActive); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return members, nil
}
