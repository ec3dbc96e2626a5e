// Package domain provides core business rules for the leads bounded context:
// the data bag, qualification rules and round-robin rotation. Nothing in this
// package performs I/O.
package domain

import "strings"

// LifecycleStage is a lead's qualification level.
type LifecycleStage string

const (
	StageLead LifecycleStage = "lead"
	StageMQL  LifecycleStage = "mql"
	StageSQL  LifecycleStage = "sql"
)

// ParseLifecycleStage accepts the canonical names case-insensitively. An empty
// string is read as StageLead, matching records created before qualification
// existed.
func ParseLifecycleStage(s string) (LifecycleStage, bool) {
	switch LifecycleStage(strings.ToLower(strings.TrimSpace(s))) {
	case StageLead, "":
		return StageLead, true
	case StageMQL:
		return StageMQL, true
	case StageSQL:
		return StageSQL, true
	default:
		return "", false
	}
}

// IsTerminalLifecycleStage reports whether automatic qualification stops at stage.
func IsTerminalLifecycleStage(stage LifecycleStage) bool {
	return stage == StageSQL
}

// LeadSource records how a lead entered the system.
type LeadSource string

const (
	SourceForm    LeadSource = "form"
	SourceWebhook LeadSource = "webhook"
	SourceManual  LeadSource = "manual"
)

// IsKnownLeadSource reports whether s is a valid provenance tag.
func IsKnownLeadSource(s LeadSource) bool {
	return s == SourceForm || s == SourceWebhook || s == SourceManual
}

const (
	// DefaultFirstStageName is the stage created when a pipeline has none.
	DefaultFirstStageName = "Lead"
	// DefaultFirstStageOrder is the order index of that stage.
	DefaultFirstStageOrder = 0
)
