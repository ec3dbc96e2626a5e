package domain

import "testing"

func highBudgetRules() *RuleSet {
	return &RuleSet{
		SQL: []Rule{{
			Name:       "HighBudget",
			IsActive:   true,
			Conditions: []Condition{{Field: "budget", Operator: OpGreaterThan, Value: "10000"}},
		}},
		MQL: []Rule{{
			Name:       "HasCompany",
			IsActive:   true,
			Conditions: []Condition{{Field: "company", Operator: OpNotEmpty}},
		}},
	}
}

func TestQualifyHighBudgetPromotesToSQL(t *testing.T) {
	rules := &RuleSet{SQL: []Rule{{
		Name:       "HighBudget",
		IsActive:   true,
		Conditions: []Condition{{Field: "budget", Operator: OpGreaterThan, Value: "10000"}},
	}}}

	got := Qualify(StageLead, DataBag{"budget": String("15000")}, rules)

	want := Decision{Promote: true, Target: StageSQL, MatchedRule: "HighBudget"}
	if got != want {
		t.Fatalf("Qualify = %+v, want %+v", got, want)
	}
}

func TestQualifySQLBeatsMQL(t *testing.T) {
	bag := DataBag{"budget": Number(20000), "company": String("Acme")}

	got := Qualify(StageLead, bag, highBudgetRules())
	if !got.Promote || got.Target != StageSQL {
		t.Fatalf("expected direct promotion to sql, got %+v", got)
	}
}

func TestQualifyMQLOnlyFromLead(t *testing.T) {
	bag := DataBag{"company": String("Acme")}

	if got := Qualify(StageLead, bag, highBudgetRules()); got.Target != StageMQL || got.MatchedRule != "HasCompany" {
		t.Fatalf("expected lead to reach mql, got %+v", got)
	}
	if got := Qualify(StageMQL, bag, highBudgetRules()); got.Promote || got.Target != StageMQL {
		t.Fatalf("expected mql lead to stay put, got %+v", got)
	}
}

func TestQualifyMQLLeadCanReachSQL(t *testing.T) {
	got := Qualify(StageMQL, DataBag{"budget": String("50000")}, highBudgetRules())
	if !got.Promote || got.Target != StageSQL {
		t.Fatalf("expected mql lead to be promoted to sql, got %+v", got)
	}
}

func TestQualifySQLIsTerminal(t *testing.T) {
	bag := DataBag{"budget": String("99999"), "company": String("Acme")}
	got := Qualify(StageSQL, bag, highBudgetRules())
	if got.Promote || got.Target != StageSQL {
		t.Fatalf("expected no-op at sql, got %+v", got)
	}
}

func TestQualifyFirstMatchInListOrderWins(t *testing.T) {
	rules := &RuleSet{SQL: []Rule{
		{Name: "Inactive", IsActive: false, Conditions: []Condition{{Field: "a", Operator: OpNotEmpty}}},
		{Name: "First", IsActive: true, Conditions: []Condition{{Field: "a", Operator: OpNotEmpty}}},
		{Name: "Second", IsActive: true, Conditions: []Condition{{Field: "a", Operator: OpNotEmpty}}},
	}}

	got := Qualify(StageLead, DataBag{"a": String("x")}, rules)
	if got.MatchedRule != "First" {
		t.Fatalf("expected First to win, got %+v", got)
	}
}

func TestQualifyWithoutRules(t *testing.T) {
	bag := DataBag{"budget": String("15000")}
	if got := Qualify(StageLead, bag, nil); got.Promote || got.Target != StageLead {
		t.Fatalf("nil rule set must not promote, got %+v", got)
	}
	if got := Qualify(StageLead, bag, &RuleSet{}); got.Promote {
		t.Fatalf("empty rule set must not promote, got %+v", got)
	}
}

func TestQualifyUnknownStageIsLeftAlone(t *testing.T) {
	got := Qualify(LifecycleStage("customer"), DataBag{"budget": String("15000")}, highBudgetRules())
	if got.Promote || got.Target != LifecycleStage("customer") {
		t.Fatalf("unknown stage must be left alone, got %+v", got)
	}
}

func TestQualifyEmptyStageReadsAsLead(t *testing.T) {
	got := Qualify(LifecycleStage(""), DataBag{"company": String("Acme")}, highBudgetRules())
	if !got.Promote || got.Target != StageMQL {
		t.Fatalf("expected empty stage to behave as lead, got %+v", got)
	}
}
