package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Rule is a named conjunction of conditions.
type Rule struct {
	ID          string      `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	IsActive    bool        `json:"is_active" yaml:"is_active"`
	Conditions  []Condition `json:"conditions" yaml:"conditions"`
}

// Matches reports whether the rule is active, has at least one condition and
// every condition holds.
func (r Rule) Matches(bag DataBag) bool {
	if !r.IsActive || len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		if !EvaluateCondition(c, bag) {
			return false
		}
	}
	return true
}

// RuleSet holds a pipeline's qualification rules per target tier. List order
// is evaluation order.
type RuleSet struct {
	MQL []Rule `json:"mql" yaml:"mql"`
	SQL []Rule `json:"sql" yaml:"sql"`
}

// IsEmpty reports whether neither tier has rules.
func (rs RuleSet) IsEmpty() bool {
	return len(rs.MQL) == 0 && len(rs.SQL) == 0
}

// Normalize replaces nil tiers with empty lists so the set always encodes as
// {"mql":[],"sql":[]}.
func (rs RuleSet) Normalize() RuleSet {
	if rs.MQL == nil {
		rs.MQL = []Rule{}
	}
	if rs.SQL == nil {
		rs.SQL = []Rule{}
	}
	return rs
}

// ParseRuleSet decodes a stored rule set. Empty input or JSON null yields an
// empty set; any other undecodable input is returned as an error so callers
// can log it before treating the pipeline as having no rules.
func ParseRuleSet(raw []byte) (RuleSet, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return RuleSet{}.Normalize(), nil
	}

	var rs RuleSet
	if err := json.Unmarshal(trimmed, &rs); err != nil {
		return RuleSet{}.Normalize(), fmt.Errorf("decode qualification rules: %w", err)
	}
	return rs.Normalize(), nil
}

// ValidateRuleSet checks a rule set before it is stored. Returns a non-empty
// reason string describing the first problem found.
func ValidateRuleSet(rs RuleSet) string {
	if reason := validateTier("mql", rs.MQL); reason != "" {
		return reason
	}
	return validateTier("sql", rs.SQL)
}

func validateTier(tier string, rules []Rule) string {
	for i, r := range rules {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Sprintf("%s rule %d: name is required", tier, i+1)
		}
		if len(r.Conditions) == 0 {
			return fmt.Sprintf("%s rule %q: at least one condition is required", tier, r.Name)
		}
		for j, c := range r.Conditions {
			if strings.TrimSpace(c.Field) == "" {
				return fmt.Sprintf("%s rule %q condition %d: field is required", tier, r.Name, j+1)
			}
			if !IsKnownOperator(c.Operator) {
				return fmt.Sprintf("%s rule %q condition %d: unknown operator %q", tier, r.Name, j+1, c.Operator)
			}
			if c.Operator.TakesValue() && strings.TrimSpace(c.Value) == "" {
				return fmt.Sprintf("%s rule %q condition %d: value is required for %s", tier, r.Name, j+1, c.Operator)
			}
		}
	}
	return ""
}
