package repository

import (
	"context"
	"encoding/json"
	"time"

	"crm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

type LifecycleHistoryEntry struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	LeadID              uuid.UUID
	Action              string
	FromStage           *domain.LifecycleStage
	ToStage             domain.LifecycleStage
	ChangedBy           *uuid.UUID
	AutomationTriggered bool
	RuleMatched         *string
	Metadata            map[string]any
	CreatedAt           time.Time
}

type CreateLifecycleHistoryParams struct {
	TenantID            uuid.UUID
	LeadID              uuid.UUID
	Action              string
	FromStage           *domain.LifecycleStage
	ToStage             domain.LifecycleStage
	ChangedBy           *uuid.UUID
	AutomationTriggered bool
	RuleMatched         *string
	Metadata            map[string]any
}

func (r *Repository) CreateLifecycleHistory(ctx context.Context, params CreateLifecycleHistoryParams) error {
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	var from *string
	if params.FromStage != nil {
		s := string(*params.FromStage)
		from = &s
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO lead_lifecycle_history (
			tenant_id, lead_id, action, from_stage, to_stage,
			changed_by, automation_triggered, rule_matched, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, params.TenantID, params.LeadID, params.Action, from, string(params.ToStage),
		params.ChangedBy, params.AutomationTriggered, params.RuleMatched, metadataJSON)
	return err
}

// ListLifecycleHistory returns a lead's history oldest first.
func (r *Repository) ListLifecycleHistory(ctx context.Context, tenantID, leadID uuid.UUID) ([]LifecycleHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, lead_id, action, from_stage, to_stage, changed_by,
			automation_triggered, rule_matched, metadata, created_at
		FROM lead_lifecycle_history
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at ASC, id ASC
	`, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]LifecycleHistoryEntry, 0)
	for rows.Next() {
		var (
			e           LifecycleHistoryEntry
			from        *string
			to          string
			rawMetadata []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.LeadID,
			&e.Action,
			&from,
			&to,
			&e.ChangedBy,
			&e.AutomationTriggered,
			&e.RuleMatched,
			&rawMetadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if from != nil {
			stage := domain.LifecycleStage(*from)
			e.FromStage = &stage
		}
		e.ToStage = domain.LifecycleStage(to)
		if len(rawMetadata) > 0 {
			_ = json.Unmarshal(rawMetadata, &e.Metadata)
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}
