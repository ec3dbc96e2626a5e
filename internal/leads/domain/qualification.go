package domain

// Decision is the outcome of evaluating a lead against a rule set.
type Decision struct {
	Promote     bool
	Target      LifecycleStage
	MatchedRule string
}

// Qualify decides whether a lead at current should be promoted. SQL rules are
// scanned before MQL rules and the first active matching rule in list order
// wins. A lead already at sql is never re-evaluated and the engine never
// demotes. A nil rule set means no rules are configured.
func Qualify(current LifecycleStage, bag DataBag, rules *RuleSet) Decision {
	unchanged := Decision{Target: current}
	if rules == nil {
		return unchanged
	}

	stage, ok := ParseLifecycleStage(string(current))
	if !ok {
		return unchanged
	}
	unchanged.Target = stage

	if stage != StageSQL {
		if r, ok := firstMatch(rules.SQL, bag); ok {
			return Decision{Promote: true, Target: StageSQL, MatchedRule: r.Name}
		}
	}
	if stage == StageLead {
		if r, ok := firstMatch(rules.MQL, bag); ok {
			return Decision{Promote: true, Target: StageMQL, MatchedRule: r.Name}
		}
	}
	return unchanged
}

func firstMatch(rules []Rule, bag DataBag) (Rule, bool) {
	for _, r := range rules {
		if r.Matches(bag) {
			return r, true
		}
	}
	return Rule{}, false
}
