// Package models defines condition tree types for question visibility.
package models

// ConditionOperator enumerates the closed set of supported operators.
// Unrecognized operators parse to OperatorUnknown, which the evaluator
// treats as fail-open true so that malformed configuration never blocks an
// interview.
type ConditionOperator string

const (
	OperatorEquals             ConditionOperator = "equals"
	OperatorNotEquals          ConditionOperator = "notEquals"
	OperatorContains           ConditionOperator = "contains"
	OperatorNotContains        ConditionOperator = "notContains"
	OperatorExists             ConditionOperator = "exists"
	OperatorNotExists          ConditionOperator = "notExists"
	OperatorGreaterThan        ConditionOperator = "greaterThan"
	OperatorLessThan           ConditionOperator = "lessThan"
	OperatorGreaterThanOrEqual ConditionOperator = "greaterThanOrEqual"
	OperatorLessThanOrEqual    ConditionOperator = "lessThanOrEqual"
	OperatorIn                 ConditionOperator = "in"
	OperatorNotIn              ConditionOperator = "notIn"
	OperatorAnd                ConditionOperator = "and"
	OperatorOr                 ConditionOperator = "or"
	// OperatorUnknown marks an operator the engine does not recognize.
	OperatorUnknown ConditionOperator = "unknown"
)

// knownOperators is the closed operator set accepted at parse time.
var knownOperators = map[ConditionOperator]bool{
	OperatorEquals:             true,
	OperatorNotEquals:          true,
	OperatorContains:           true,
	OperatorNotContains:        true,
	OperatorExists:             true,
	OperatorNotExists:          true,
	OperatorGreaterThan:        true,
	OperatorLessThan:           true,
	OperatorGreaterThanOrEqual: true,
	OperatorLessThanOrEqual:    true,
	OperatorIn:                 true,
	OperatorNotIn:              true,
	OperatorAnd:                true,
	OperatorOr:                 true,
}

// IsKnownOperator reports whether op is in the supported set.
func IsKnownOperator(op ConditionOperator) bool {
	return knownOperators[op]
}

// IsLogical reports whether op combines sub-conditions.
func (op ConditionOperator) IsLogical() bool {
	return op == OperatorAnd || op == OperatorOr
}

// Condition is one node of a question's show-condition tree.
//
// Leaf operators reference a response-map field; and/or recurse over
// Conditions. A nil *Condition evaluates to true.
type Condition struct {
	Operator   ConditionOperator `json:"operator" yaml:"operator"`
	Field      string            `json:"field,omitempty" yaml:"field,omitempty"`
	Value      interface{}       `json:"value,omitempty" yaml:"value,omitempty"`
	Conditions []Condition       `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// RawOperator preserves the authored operator when it parsed to unknown,
	// for observability.
	RawOperator string `json:"raw_operator,omitempty" yaml:"-"`
}

// Normalize maps unrecognized operators to OperatorUnknown, preserving the
// authored value in RawOperator, and recurses into sub-conditions. Called
// once at question-load time so evaluation never re-interprets raw strings.
func (c *Condition) Normalize() {
	if c == nil {
		return
	}
	if !IsKnownOperator(c.Operator) && c.Operator != OperatorUnknown {
		c.RawOperator = string(c.Operator)
		c.Operator = OperatorUnknown
	}
	for i := range c.Conditions {
		c.Conditions[i].Normalize()
	}
}

// UnknownOperators collects every unrecognized operator in the tree, for
// load-time warnings.
func (c *Condition) UnknownOperators() []string {
	if c == nil {
		return nil
	}
	var out []string
	if c.Operator == OperatorUnknown {
		out = append(out, c.RawOperator)
	}
	for i := range c.Conditions {
		out = append(out, c.Conditions[i].UnknownOperators()...)
	}
	return out
}
