package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Operator names a field-level comparison.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotEmpty    Operator = "not_empty"
	OpEmpty       Operator = "empty"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

var knownOperators = map[Operator]struct{}{
	OpEquals:      {},
	OpNotEquals:   {},
	OpContains:    {},
	OpNotEmpty:    {},
	OpEmpty:       {},
	OpGreaterThan: {},
	OpLessThan:    {},
}

// IsKnownOperator reports whether op is one of the supported operators.
func IsKnownOperator(op Operator) bool {
	_, ok := knownOperators[op]
	return ok
}

// TakesValue reports whether op compares against the condition value.
// empty and not_empty only inspect the field.
func (op Operator) TakesValue() bool {
	return op != OpEmpty && op != OpNotEmpty
}

// Condition is a single predicate over one data bag field.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    string   `json:"value" yaml:"value"`
}

// EvaluateCondition reports whether the condition holds for bag. It is total:
// unknown operators and unparseable numbers evaluate to false.
func EvaluateCondition(c Condition, bag DataBag) bool {
	actual, present := bag.Lookup(c.Field)
	text := ""
	if present {
		text = actual.Text()
	}

	switch c.Operator {
	case OpEquals:
		return text == c.Value
	case OpNotEquals:
		return text != c.Value
	case OpContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(c.Value))
	case OpNotEmpty:
		return hasContent(actual, present)
	case OpEmpty:
		return !hasContent(actual, present)
	case OpGreaterThan:
		a, e, ok := numericPair(text, c.Value)
		return ok && a > e
	case OpLessThan:
		a, e, ok := numericPair(text, c.Value)
		return ok && a < e
	default:
		return false
	}
}

func hasContent(v Value, present bool) bool {
	return present && !v.IsNull() && strings.TrimSpace(v.Text()) != ""
}

func numericPair(actual, expected string) (float64, float64, bool) {
	a, ok := parseNumber(actual)
	if !ok {
		return 0, 0, false
	}
	e, ok := parseNumber(expected)
	if !ok {
		return 0, 0, false
	}
	return a, e, true
}

// decimalPrefix is the leading decimal number of a value: "15000 BRL" reads
// as 15000 and "0x10" as 0. Infinity spellings and hex floats never match.
var decimalPrefix = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)

// parseNumber reads the leading decimal number after any leading whitespace.
// Values without one, or out of float64 range, are not numbers.
func parseNumber(s string) (float64, bool) {
	m := decimalPrefix.FindString(strings.TrimLeftFunc(s, unicode.IsSpace))
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
