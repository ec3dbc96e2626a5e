package management

import (
	"crm_backend/internal/leads/domain"
	"crm_backend/internal/leads/repository"
	"crm_backend/internal/leads/transport"
)

// ToLeadResponse converts a stored lead for API responses.
func ToLeadResponse(lead repository.Lead) transport.LeadResponse {
	data := lead.Data
	if data == nil {
		data = domain.DataBag{}
	}
	stage, ok := domain.ParseLifecycleStage(string(lead.LifecycleStage))
	if !ok {
		stage = lead.LifecycleStage
	}

	return transport.LeadResponse{
		ID:             lead.ID,
		PipelineID:     lead.PipelineID,
		StageID:        lead.StageID,
		AssignedTo:     lead.AssignedTo,
		LifecycleStage: stage,
		Source:         lead.Source,
		Data:           data,
		CreatedBy:      lead.CreatedBy,
		CreatedAt:      lead.CreatedAt,
		UpdatedAt:      lead.UpdatedAt,
	}
}

// ToHistoryResponse converts lifecycle entries for API responses.
func ToHistoryResponse(entries []repository.LifecycleHistoryEntry) transport.HistoryResponse {
	items := make([]transport.HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, transport.HistoryEntryResponse{
			ID:                  e.ID,
			Action:              e.Action,
			FromStage:           e.FromStage,
			ToStage:             e.ToStage,
			ChangedBy:           e.ChangedBy,
			AutomationTriggered: e.AutomationTriggered,
			RuleMatched:         e.RuleMatched,
			Metadata:            e.Metadata,
			CreatedAt:           e.CreatedAt,
		})
	}
	return transport.HistoryResponse{Items: items}
}
