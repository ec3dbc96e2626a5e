package transport

import "crm_backend/internal/leads/domain"

// RuleSetFromRequest converts request rules into the domain rule set.
func RuleSetFromRequest(req QualificationRulesRequest) domain.RuleSet {
	return domain.RuleSet{
		MQL: rulesFromDTO(req.MQL),
		SQL: rulesFromDTO(req.SQL),
	}.Normalize()
}

// RulesToDTO converts domain rules for responses.
func RulesToDTO(rules []domain.Rule) []RuleDTO {
	out := make([]RuleDTO, 0, len(rules))
	for _, r := range rules {
		conds := make([]ConditionDTO, 0, len(r.Conditions))
		for _, c := range r.Conditions {
			conds = append(conds, ConditionDTO{Field: c.Field, Operator: c.Operator, Value: c.Value})
		}
		out = append(out, RuleDTO{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			IsActive:    r.IsActive,
			Conditions:  conds,
		})
	}
	return out
}

func rulesFromDTO(rules []RuleDTO) []domain.Rule {
	out := make([]domain.Rule, 0, len(rules))
	for _, r := range rules {
		conds := make([]domain.Condition, 0, len(r.Conditions))
		for _, c := range r.Conditions {
			conds = append(conds, domain.Condition{Field: c.Field, Operator: c.Operator, Value: c.Value})
		}
		out = append(out, domain.Rule{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			IsActive:    r.IsActive,
			Conditions:  conds,
		})
	}
	return out
}
