package transport

import (
	"time"

	"crm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Request DTOs
type CreateLeadRequest struct {
	PipelineID uuid.UUID         `json:"pipelineId" validate:"required"`
	FirstName  string            `json:"firstName,omitempty" validate:"max=100"`
	LastName   string            `json:"lastName,omitempty" validate:"max=100"`
	Email      string            `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone      string            `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	Company    string            `json:"company,omitempty" validate:"max=200"`
	Source     domain.LeadSource `json:"source,omitempty" validate:"omitempty,oneof=form webhook manual"`
	Data       domain.DataBag    `json:"data,omitempty" validate:"-"`
}

// FormCaptureRequest is the body of the public capture endpoint. The pipeline
// comes from the path and the provenance is always form.
type FormCaptureRequest struct {
	FirstName string         `json:"firstName,omitempty" validate:"max=100"`
	LastName  string         `json:"lastName,omitempty" validate:"max=100"`
	Email     string         `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone     string         `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	Company   string         `json:"company,omitempty" validate:"max=200"`
	Data      domain.DataBag `json:"data,omitempty" validate:"-"`
}

type UpdateLeadDataRequest struct {
	Data domain.DataBag `json:"data" validate:"required"`
}

type ManualQualificationRequest struct {
	Stage  domain.LifecycleStage `json:"stage" validate:"required,oneof=lead mql sql"`
	Reason string                `json:"reason,omitempty" validate:"max=500"`
}

type SaveDistributionRuleRequest struct {
	Mode              domain.DistributionMode `json:"mode" validate:"required,oneof=round_robin manual"`
	IsActive          OptionalBool            `json:"isActive" validate:"-"`
	WorkingHoursOnly  bool                    `json:"workingHoursOnly"`
	WorkingHoursStart string                  `json:"workingHoursStart,omitempty" validate:"omitempty,clock"`
	WorkingHoursEnd   string                  `json:"workingHoursEnd,omitempty" validate:"omitempty,clock"`
	WorkingDays       []int                   `json:"workingDays,omitempty" validate:"omitempty,dive,min=1,max=7"`
	FallbackToManual  OptionalBool            `json:"fallbackToManual" validate:"-"`
}

type ConditionDTO struct {
	Field    string          `json:"field" validate:"required,max=100"`
	Operator domain.Operator `json:"operator" validate:"required,oneof=equals not_equals contains not_empty empty greater_than less_than"`
	Value    string          `json:"value" validate:"max=500"`
}

type RuleDTO struct {
	ID          string         `json:"id,omitempty" validate:"max=100"`
	Name        string         `json:"name" validate:"required,max=200"`
	Description string         `json:"description,omitempty" validate:"max=1000"`
	IsActive    bool           `json:"isActive"`
	Conditions  []ConditionDTO `json:"conditions" validate:"required,min=1,dive"`
}

type QualificationRulesRequest struct {
	MQL []RuleDTO `json:"mql" validate:"dive"`
	SQL []RuleDTO `json:"sql" validate:"dive"`
}

// Response DTOs
type LeadResponse struct {
	ID             uuid.UUID             `json:"id"`
	PipelineID     uuid.UUID             `json:"pipelineId"`
	StageID        uuid.UUID             `json:"stageId"`
	AssignedTo     *uuid.UUID            `json:"assignedTo"`
	LifecycleStage domain.LifecycleStage `json:"lifecycleStage"`
	Source         domain.LeadSource     `json:"source"`
	Data           domain.DataBag        `json:"data"`
	CreatedBy      *uuid.UUID            `json:"createdBy,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

type QualificationOutcomeResponse struct {
	Promoted      bool                  `json:"promoted"`
	PreviousStage domain.LifecycleStage `json:"previousStage"`
	NewStage      domain.LifecycleStage `json:"newStage"`
	MatchedRule   string                `json:"matchedRule,omitempty"`
}

type UpdateLeadDataResponse struct {
	Lead          LeadResponse                 `json:"lead"`
	Qualification QualificationOutcomeResponse `json:"qualification"`
}

type ManualQualificationResponse struct {
	LeadID        uuid.UUID             `json:"leadId"`
	PreviousStage domain.LifecycleStage `json:"previousStage"`
	NewStage      domain.LifecycleStage `json:"newStage"`
}

type HistoryEntryResponse struct {
	ID                  uuid.UUID              `json:"id"`
	Action              string                 `json:"action"`
	FromStage           *domain.LifecycleStage `json:"fromStage"`
	ToStage             domain.LifecycleStage  `json:"toStage"`
	ChangedBy           *uuid.UUID             `json:"changedBy"`
	AutomationTriggered bool                   `json:"automationTriggered"`
	RuleMatched         *string                `json:"ruleMatched"`
	Metadata            map[string]any         `json:"metadata,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
}

type HistoryResponse struct {
	Items []HistoryEntryResponse `json:"items"`
}

type DistributionRuleResponse struct {
	PipelineID            uuid.UUID               `json:"pipelineId"`
	Mode                  domain.DistributionMode `json:"mode"`
	IsActive              bool                    `json:"isActive"`
	WorkingHoursOnly      bool                    `json:"workingHoursOnly"`
	WorkingHoursStart     string                  `json:"workingHoursStart,omitempty"`
	WorkingHoursEnd       string                  `json:"workingHoursEnd,omitempty"`
	WorkingDays           []int                   `json:"workingDays"`
	FallbackToManual      bool                    `json:"fallbackToManual"`
	LastAssignedMemberID  *uuid.UUID              `json:"lastAssignedMemberId"`
	TotalAssignments      int                     `json:"totalAssignments"`
	SuccessfulAssignments int                     `json:"successfulAssignments"`
	FailedAssignments     int                     `json:"failedAssignments"`
	LastAssignmentAt      *time.Time              `json:"lastAssignmentAt"`
	Configured            bool                    `json:"configured"`
}

type DistributionPreviewResponse struct {
	WouldAssign   bool       `json:"wouldAssign"`
	MemberID      *uuid.UUID `json:"memberId"`
	MemberName    string     `json:"memberName,omitempty"`
	MemberEmail   string     `json:"memberEmail,omitempty"`
	Position      *int       `json:"position"`
	EligibleCount int        `json:"eligibleCount"`
	Method        string     `json:"method"`
	Reason        string     `json:"reason,omitempty"`
}

type AssignmentRecordResponse struct {
	ID                   uuid.UUID  `json:"id"`
	LeadID               *uuid.UUID `json:"leadId"`
	AssignedTo           *uuid.UUID `json:"assignedTo"`
	Method               string     `json:"method"`
	RoundRobinPosition   *int       `json:"roundRobinPosition"`
	TotalEligibleMembers *int       `json:"totalEligibleMembers"`
	Status               string     `json:"status"`
	ErrorMessage         *string    `json:"errorMessage,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

type DistributionStatsResponse struct {
	TotalAssignments      int                        `json:"totalAssignments"`
	SuccessfulAssignments int                        `json:"successfulAssignments"`
	FailedAssignments     int                        `json:"failedAssignments"`
	SuccessRate           int                        `json:"successRate"`
	LastAssignmentAt      *time.Time                 `json:"lastAssignmentAt"`
	RecentAssignments     []AssignmentRecordResponse `json:"recentAssignments"`
}

type QualificationRulesResponse struct {
	PipelineID uuid.UUID `json:"pipelineId"`
	MQL        []RuleDTO `json:"mql"`
	SQL        []RuleDTO `json:"sql"`
}

type QualificationStatsResponse struct {
	Lead              int     `json:"lead"`
	MQL               int     `json:"mql"`
	SQL               int     `json:"sql"`
	Total             int     `json:"total"`
	MQLConversionRate float64 `json:"mqlConversionRate"`
	SQLConversionRate float64 `json:"sqlConversionRate"`
}

type ReevaluationResponse struct {
	Evaluated int `json:"evaluated"`
	Promoted  int `json:"promoted"`
}
