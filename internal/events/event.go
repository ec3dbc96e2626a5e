// Package events holds the lead lifecycle events exchanged between modules.
// Delivery is handled by platform/events.
package events

import (
	"crm_backend/platform/events"
	"crm_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus builds the process-local bus used by the binaries.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published once a lead has been persisted, before distribution.
type LeadCreated struct {
	BaseEvent
	LeadID     uuid.UUID  `json:"leadId"`
	TenantID   uuid.UUID  `json:"tenantId"`
	PipelineID uuid.UUID  `json:"pipelineId"`
	Source     string     `json:"source"`
	CreatedBy  *uuid.UUID `json:"createdBy,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadAssigned is published when the distributor gives a new lead an owner.
type LeadAssigned struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	TenantID   uuid.UUID `json:"tenantId"`
	PipelineID uuid.UUID `json:"pipelineId"`
	MemberID   uuid.UUID `json:"memberId"`
	Method     string    `json:"method"`
	Position   int       `json:"position"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadQualified is published when a lead's lifecycle stage changes.
type LeadQualified struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	TenantID    uuid.UUID `json:"tenantId"`
	PipelineID  uuid.UUID `json:"pipelineId"`
	FromStage   string    `json:"fromStage"`
	ToStage     string    `json:"toStage"`
	RuleMatched string    `json:"ruleMatched,omitempty"`
	Automatic   bool      `json:"automatic"`
}

func (e LeadQualified) EventName() string { return "leads.lead.qualified" }

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// QualificationRulesChanged is published after a pipeline's rule set is saved.
type QualificationRulesChanged struct {
	BaseEvent
	TenantID   uuid.UUID  `json:"tenantId"`
	PipelineID uuid.UUID  `json:"pipelineId"`
	ChangedBy  *uuid.UUID `json:"changedBy,omitempty"`
	MQLRules   int        `json:"mqlRules"`
	SQLRules   int        `json:"sqlRules"`
}

func (e QualificationRulesChanged) EventName() string { return "pipelines.qualification_rules.changed" }
