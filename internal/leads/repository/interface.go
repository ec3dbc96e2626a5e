package repository

import (
	"context"

	"crm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// PipelineReader resolves pipeline configuration.
type PipelineReader interface {
	GetPipeline(ctx context.Context, pipelineID uuid.UUID) (Pipeline, error)
	GetFirstStage(ctx context.Context, pipelineID uuid.UUID) (Stage, error)
	EnsureDefaultStage(ctx context.Context, pipelineID uuid.UUID) (Stage, error)
}

// MemberReader lists the users attached to a pipeline.
type MemberReader interface {
	ListPipelineMembers(ctx context.Context, tenantID, pipelineID uuid.UUID) ([]domain.Member, error)
}

// LeadReader provides read-only access to leads.
type LeadReader interface {
	GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (Lead, error)
	ListLeadsBelowStage(ctx context.Context, tenantID, pipelineID uuid.UUID, stage domain.LifecycleStage) ([]Lead, error)
	CountLifecycleStages(ctx context.Context, tenantID uuid.UUID, pipelineID *uuid.UUID) (StageCounts, error)
}

// LeadWriter creates leads and updates their owner and data.
type LeadWriter interface {
	CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error)
	AssignLead(ctx context.Context, tenantID, leadID, memberID uuid.UUID) (Lead, error)
	UpdateLeadData(ctx context.Context, tenantID, leadID uuid.UUID, data domain.DataBag) (Lead, error)
}

// LifecycleWriter moves leads between lifecycle stages.
type LifecycleWriter interface {
	PromoteLifecycleStage(ctx context.Context, tenantID, leadID uuid.UUID, from, to domain.LifecycleStage) (bool, error)
	SetLifecycleStage(ctx context.Context, tenantID, leadID uuid.UUID, to domain.LifecycleStage) (domain.LifecycleStage, error)
}

// DistributionRuleStore reads and mutates a pipeline's distribution rule.
type DistributionRuleStore interface {
	GetDistributionRule(ctx context.Context, tenantID, pipelineID uuid.UUID) (domain.DistributionRule, error)
	UpsertDistributionRule(ctx context.Context, params SaveDistributionRuleParams) (domain.DistributionRule, error)
	AdvanceCursor(ctx context.Context, adv CursorAdvance) (bool, error)
	RecordDistributionFailure(ctx context.Context, tenantID, pipelineID uuid.UUID) error
	ResetCursor(ctx context.Context, tenantID, pipelineID uuid.UUID) error
}

// AssignmentLog appends and lists assignment attempts.
type AssignmentLog interface {
	CreateAssignmentRecord(ctx context.Context, params CreateAssignmentRecordParams) error
	ListAssignmentRecords(ctx context.Context, tenantID, pipelineID uuid.UUID, limit int) ([]AssignmentRecord, error)
}

// QualificationRuleStore persists a pipeline's qualification rule set.
type QualificationRuleStore interface {
	GetQualificationRules(ctx context.Context, tenantID, pipelineID uuid.UUID) ([]byte, error)
	SaveQualificationRules(ctx context.Context, tenantID, pipelineID uuid.UUID, raw []byte) error
}

// HistoryStore appends and lists lifecycle history.
type HistoryStore interface {
	CreateLifecycleHistory(ctx context.Context, params CreateLifecycleHistoryParams) error
	ListLifecycleHistory(ctx context.Context, tenantID, leadID uuid.UUID) ([]LifecycleHistoryEntry, error)
}

// LeadsRepository composes every store the leads module needs.
type LeadsRepository interface {
	PipelineReader
	MemberReader
	LeadReader
	LeadWriter
	LifecycleWriter
	DistributionRuleStore
	AssignmentLog
	QualificationRuleStore
	HistoryStore
}

var _ LeadsRepository = (*Repository)(nil)
