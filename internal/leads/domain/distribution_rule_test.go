package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWorkingHoursAllows(t *testing.T) {
	w := WorkingHours{Enabled: true, Start: "09:00", End: "17:00:00", Days: DefaultWorkingDays}

	// 2026-10-14 is a Wednesday.
	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 10, 14, 17, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 10, 14, 17, 0, 1, 0, time.UTC), false},
		{time.Date(2026, 10, 14, 8, 59, 59, 0, time.UTC), false},
		{time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC), false}, // Sunday
	}
	for _, tc := range cases {
		if got := w.Allows(tc.at); got != tc.want {
			t.Fatalf("Allows(%s) = %v, want %v", tc.at, got, tc.want)
		}
	}

	if !(WorkingHours{}).Allows(time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)) {
		t.Fatal("disabled window must always allow")
	}
}

func TestWorkingHoursValidate(t *testing.T) {
	cases := []struct {
		w     WorkingHours
		valid bool
	}{
		{WorkingHours{}, true},
		{WorkingHours{Enabled: true, Start: "08:00", End: "18:00", Days: []int{1, 7}}, true},
		{WorkingHours{Enabled: true, Start: "18:00", End: "08:00", Days: []int{2}}, false},
		{WorkingHours{Enabled: true, Start: "08:00", End: "08:00", Days: []int{2}}, false},
		{WorkingHours{Enabled: true, Start: "8am", End: "18:00", Days: []int{2}}, false},
		{WorkingHours{Enabled: true, Start: "08:00", End: "18:00"}, false},
		{WorkingHours{Enabled: true, Start: "08:00", End: "18:00", Days: []int{0}}, false},
	}
	for _, tc := range cases {
		if reason := tc.w.Validate(); (reason == "") != tc.valid {
			t.Fatalf("Validate(%+v) = %q, want valid=%v", tc.w, reason, tc.valid)
		}
	}
}

func TestDistributionRuleBehaviour(t *testing.T) {
	rule := ManualRule(uuid.New(), uuid.New())
	if rule.AssignsAutomatically() {
		t.Fatal("manual rule must not assign")
	}

	rule.Mode = ModeRoundRobin
	if !rule.AssignsAutomatically() {
		t.Fatal("active round robin rule must assign")
	}
	rule.IsActive = false
	if rule.AssignsAutomatically() {
		t.Fatal("inactive rule must not assign")
	}

	rule.TotalAssignments, rule.SuccessfulAssignments = 3, 2
	if got := rule.SuccessRate(); got != 67 {
		t.Fatalf("SuccessRate = %d, want 67", got)
	}
}
