// Package interview implements the onboarding interview flow engine.
//
// It decides which question is current, whether a submitted answer is valid,
// which enrichment side effects to fire, how answer changes invalidate
// previously collected data, and how to report completion progress.
package interview

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/intakeloop/intakeloop/internal/models"
)

// EvaluateCondition evaluates a condition tree against a response map.
//
// A nil condition is vacuously true. Unknown operators are fail-open true:
// malformed configuration must never hard-block the interview, so the
// evaluator degrades permissively and logs a warning instead.
func EvaluateCondition(cond *models.Condition, responses map[string]interface{}) bool {
	if cond == nil {
		return true
	}

	switch cond.Operator {
	case models.OperatorAnd:
		// Empty group is true. Short-circuits on the first false branch.
		for i := range cond.Conditions {
			if !EvaluateCondition(&cond.Conditions[i], responses) {
				return false
			}
		}
		return true

	case models.OperatorOr:
		// Empty group is false. Short-circuits on the first true branch.
		for i := range cond.Conditions {
			if EvaluateCondition(&cond.Conditions[i], responses) {
				return true
			}
		}
		return false

	case models.OperatorEquals:
		return valuesEqual(responses[cond.Field], cond.Value)

	case models.OperatorNotEquals:
		return !valuesEqual(responses[cond.Field], cond.Value)

	case models.OperatorContains:
		return fieldContains(responses[cond.Field], cond.Value)

	case models.OperatorNotContains:
		return !fieldContains(responses[cond.Field], cond.Value)

	case models.OperatorExists:
		return models.IsPresentValue(responses[cond.Field])

	case models.OperatorNotExists:
		return !models.IsPresentValue(responses[cond.Field])

	case models.OperatorGreaterThan:
		return compareNumeric(responses[cond.Field], cond.Value, func(a, b float64) bool { return a > b })

	case models.OperatorLessThan:
		return compareNumeric(responses[cond.Field], cond.Value, func(a, b float64) bool { return a < b })

	case models.OperatorGreaterThanOrEqual:
		return compareNumeric(responses[cond.Field], cond.Value, func(a, b float64) bool { return a >= b })

	case models.OperatorLessThanOrEqual:
		return compareNumeric(responses[cond.Field], cond.Value, func(a, b float64) bool { return a <= b })

	case models.OperatorIn:
		// Only meaningful when the literal is an array; otherwise vacuously false.
		list, ok := cond.Value.([]interface{})
		if !ok {
			return false
		}
		return listContains(list, responses[cond.Field])

	case models.OperatorNotIn:
		// Vacuously true when the literal is not an array.
		list, ok := cond.Value.([]interface{})
		if !ok {
			return true
		}
		return !listContains(list, responses[cond.Field])

	default:
		slog.Warn("EvaluateCondition: unknown operator, failing open",
			"operator", cond.RawOperator, "field", cond.Field)
		return true
	}
}

// ShouldShowQuestion reports whether a question is visible for the given
// response map: its dependsOn field (if any) must hold a present value, and
// its show condition (if any) must evaluate true.
func ShouldShowQuestion(q *models.Question, responses map[string]interface{}) bool {
	if q.DependsOn != "" && !models.IsPresentValue(responses[q.DependsOn]) {
		return false
	}
	return EvaluateCondition(q.ShowCondition, responses)
}

// valuesEqual performs strict equality with numeric coercion so that
// 5 == 5.0 regardless of how JSON decoding typed the operands. Coercion
// applies only when both sides are numeric types; a numeric string never
// equals a number.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumeric(a) && isNumeric(b) {
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b) && fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b)
}

// fieldContains implements the contains operator: membership for array
// fields, substring on the stringified value otherwise.
func fieldContains(fieldValue, needle interface{}) bool {
	if arr, ok := fieldValue.([]interface{}); ok {
		return listContains(arr, needle)
	}
	if arr, ok := fieldValue.([]string); ok {
		for _, item := range arr {
			if item == stringify(needle) {
				return true
			}
		}
		return false
	}
	if fieldValue == nil {
		return false
	}
	return strings.Contains(stringify(fieldValue), stringify(needle))
}

func listContains(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}

// compareNumeric coerces both operands to float64 and applies cmp.
// Non-coercible operands make the comparison false.
func compareNumeric(fieldValue, literal interface{}, cmp func(a, b float64) bool) bool {
	a, aok := toFloat(fieldValue)
	b, bok := toFloat(literal)
	if !aok || !bok {
		return false
	}
	return cmp(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
