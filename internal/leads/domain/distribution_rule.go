package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DistributionMode selects how new leads get an owner.
type DistributionMode string

const (
	ModeRoundRobin DistributionMode = "round_robin"
	ModeManual     DistributionMode = "manual"
)

// IsKnownDistributionMode reports whether m is a supported mode.
func IsKnownDistributionMode(m DistributionMode) bool {
	return m == ModeRoundRobin || m == ModeManual
}

// WorkingHours restricts automatic assignment to a daily window. Days use
// 1 for Sunday through 7 for Saturday. Start and End are HH:MM:SS and the
// window is inclusive at both ends.
type WorkingHours struct {
	Enabled bool
	Start   string
	End     string
	Days    []int
}

// DefaultWorkingDays is Monday through Friday.
var DefaultWorkingDays = []int{2, 3, 4, 5, 6}

// Allows reports whether at falls inside the window. A disabled window
// always allows.
func (w WorkingHours) Allows(at time.Time) bool {
	if !w.Enabled {
		return true
	}
	if !slices.Contains(w.Days, int(at.Weekday())+1) {
		return false
	}
	clock := at.Format("15:04:05")
	return clock >= NormalizeClock(w.Start) && clock <= NormalizeClock(w.End)
}

// Validate returns a non-empty reason when an enabled window is unusable.
func (w WorkingHours) Validate() string {
	if !w.Enabled {
		return ""
	}
	start, end := NormalizeClock(w.Start), NormalizeClock(w.End)
	if _, err := time.Parse("15:04:05", start); err != nil {
		return fmt.Sprintf("invalid working hours start %q", w.Start)
	}
	if _, err := time.Parse("15:04:05", end); err != nil {
		return fmt.Sprintf("invalid working hours end %q", w.End)
	}
	if start >= end {
		return "working hours start must be before end"
	}
	if len(w.Days) == 0 {
		return "at least one working day is required"
	}
	for _, d := range w.Days {
		if d < 1 || d > 7 {
			return fmt.Sprintf("working day %d out of range 1-7", d)
		}
	}
	return ""
}

// NormalizeClock expands HH:MM to HH:MM:SS.
func NormalizeClock(s string) string {
	if len(s) == len("15:04") {
		return s + ":00"
	}
	return s
}

// DistributionRule is a pipeline's lead distribution configuration together
// with its rotation cursor and counters.
type DistributionRule struct {
	PipelineID            uuid.UUID
	TenantID              uuid.UUID
	Mode                  DistributionMode
	IsActive              bool
	WorkingHours          WorkingHours
	FallbackToManual      bool
	LastAssignedMemberID  *uuid.UUID
	TotalAssignments      int
	SuccessfulAssignments int
	FailedAssignments     int
	LastAssignmentAt      *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ManualRule is the behaviour of a pipeline that has no stored rule.
func ManualRule(tenantID, pipelineID uuid.UUID) DistributionRule {
	return DistributionRule{
		PipelineID:       pipelineID,
		TenantID:         tenantID,
		Mode:             ModeManual,
		IsActive:         true,
		FallbackToManual: true,
		WorkingHours:     WorkingHours{Days: slices.Clone(DefaultWorkingDays)},
	}
}

// AssignsAutomatically reports whether the rule rotates leads at all.
func (r DistributionRule) AssignsAutomatically() bool {
	return r.IsActive && r.Mode == ModeRoundRobin
}

// SuccessRate is the share of successful assignments as a whole percent.
func (r DistributionRule) SuccessRate() int {
	if r.TotalAssignments == 0 {
		return 0
	}
	return int(float64(r.SuccessfulAssignments)/float64(r.TotalAssignments)*100 + 0.5)
}
