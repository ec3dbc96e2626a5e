package domain

import (
	"strings"
	"testing"
)

func TestRuleWithoutConditionsNeverMatches(t *testing.T) {
	bags := []DataBag{nil, {}, {"budget": String("15000")}}
	for _, active := range []bool{true, false} {
		rule := Rule{Name: "Empty", IsActive: active, Conditions: []Condition{}}
		for _, bag := range bags {
			if rule.Matches(bag) {
				t.Fatalf("rule with no conditions matched (active=%v, bag=%v)", active, bag)
			}
		}
	}
}

func TestRuleRequiresEveryCondition(t *testing.T) {
	rule := Rule{Name: "Enterprise", IsActive: true, Conditions: []Condition{
		{Field: "budget", Operator: OpGreaterThan, Value: "10000"},
		{Field: "industry", Operator: OpEquals, Value: "software"},
	}}

	if !rule.Matches(DataBag{"budget": Number(20000), "industry": String("software")}) {
		t.Fatal("expected rule to match when every condition holds")
	}
	if rule.Matches(DataBag{"budget": Number(20000), "industry": String("retail")}) {
		t.Fatal("expected rule to fail when one condition fails")
	}
}

func TestInactiveRuleNeverMatches(t *testing.T) {
	rule := Rule{Name: "Off", Conditions: []Condition{{Field: "a", Operator: OpEmpty}}}
	if rule.Matches(DataBag{}) {
		t.Fatal("inactive rule matched")
	}
}

func TestParseRuleSet(t *testing.T) {
	rs, err := ParseRuleSet([]byte(`{"sql":[{"name":"Hot","is_active":true,"conditions":[{"field":"budget","operator":"greater_than","value":"1"}]}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs.SQL) != 1 || rs.SQL[0].Name != "Hot" || rs.MQL == nil {
		t.Fatalf("unexpected rule set %+v", rs)
	}

	for _, raw := range []string{"", "null", "  "} {
		rs, err := ParseRuleSet([]byte(raw))
		if err != nil || !rs.IsEmpty() {
			t.Fatalf("ParseRuleSet(%q) = %+v, %v", raw, rs, err)
		}
	}

	rs, err = ParseRuleSet([]byte(`{"sql": "oops"}`))
	if err == nil {
		t.Fatal("expected malformed rule set to report an error")
	}
	if !rs.IsEmpty() {
		t.Fatalf("malformed rule set must decode as empty, got %+v", rs)
	}
}

func TestValidateRuleSet(t *testing.T) {
	valid := RuleSet{MQL: []Rule{{
		Name:     "Engaged",
		IsActive: true,
		Conditions: []Condition{
			{Field: "email", Operator: OpNotEmpty},
			{Field: "visits", Operator: OpGreaterThan, Value: "3"},
		},
	}}}
	if reason := ValidateRuleSet(valid); reason != "" {
		t.Fatalf("expected valid rule set, got %q", reason)
	}

	cases := map[string]RuleSet{
		"name is required":       {SQL: []Rule{{Conditions: []Condition{{Field: "a", Operator: OpEmpty}}}}},
		"at least one condition": {SQL: []Rule{{Name: "x"}}},
		"field is required":      {MQL: []Rule{{Name: "x", Conditions: []Condition{{Operator: OpEmpty}}}}},
		"unknown operator":       {MQL: []Rule{{Name: "x", Conditions: []Condition{{Field: "a", Operator: "like"}}}}},
		"value is required":      {MQL: []Rule{{Name: "x", Conditions: []Condition{{Field: "a", Operator: OpEquals}}}}},
	}
	for want, rs := range cases {
		reason := ValidateRuleSet(rs)
		if !strings.Contains(reason, want) {
			t.Fatalf("expected reason containing %q, got %q", want, reason)
		}
	}
}
