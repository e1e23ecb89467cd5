// Package interview provides the answer validation pipeline.
package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/intakeloop/intakeloop/internal/models"
)

// WebsiteSuggester is the external AI collaborator used as a last resort when
// deterministic URL correction finds nothing. Implementations must treat the
// input as untrusted free text.
type WebsiteSuggester interface {
	SuggestWebsite(ctx context.Context, input string) (*models.WebsiteSuggestion, error)
}

// Lenient check used to accept a candidate URL: optional scheme, dot-separated
// alphanumeric-and-hyphen labels, at least one dot.
var lenientDomainRegex = regexp.MustCompile(`^(https?://)?(www\.)?([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}(/.*)?$`)

// Stricter pattern AI suggestions must satisfy before being surfaced.
var strictDomainRegex = regexp.MustCompile(`^([a-z0-9-]+\.)+[a-z]{2,}$`)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// TLDs recognized by the missing-dot quick fix.
var quickFixTLDs = []string{"com", "net", "org", "io", "co", "ai", "dev", "co.il"}

// Typo corrections applied to the TLD suffix before anything else.
var tldTypos = map[string]string{
	".con":  ".com",
	".cpm":  ".com",
	".ocm":  ".com",
	".coil": ".co.il",
}

// Validator runs candidate answers through the validation pipeline.
type Validator struct {
	suggester WebsiteSuggester
}

// NewValidator creates a Validator. The suggester may be nil, in which case
// URL correction stops after the deterministic quick fixes.
func NewValidator(suggester WebsiteSuggester) *Validator {
	return &Validator{suggester: suggester}
}

// Validate checks a candidate answer against a question's rules.
//
// Check order, first failure wins: required/empty, string constraints, URL
// leniency with two-stage correction, numeric bounds, selection-count bounds.
// The only side effect is the optional AI suggestion call, and any failure
// there collapses to "no suggestion".
func (v *Validator) Validate(ctx context.Context, q *models.Question, value interface{}) models.ValidationResult {
	rules := q.Validation

	// Required / empty.
	if !models.IsPresentValue(value) {
		if rules.Required {
			return invalid("This field is required")
		}
		return valid()
	}
	if arr, ok := asArray(value); ok && len(arr) == 0 && q.ExpectsMultiValue() && rules.Required {
		return invalid("Select at least one option")
	}

	// String-only checks.
	if str, ok := value.(string); ok {
		if rules.MinLength > 0 && len(str) < rules.MinLength {
			return invalid(fmt.Sprintf("Must be at least %d characters", rules.MinLength))
		}
		if rules.MaxLength > 0 && len(str) > rules.MaxLength {
			return invalid(fmt.Sprintf("Must be at most %d characters", rules.MaxLength))
		}
		// URL correctness is handled below, not by the authored pattern.
		if rules.Pattern != "" && q.InputKind != models.InputKindURL {
			re, err := regexp.Compile(rules.Pattern)
			if err != nil {
				slog.Warn("Validator: invalid pattern in question config, skipping", "questionID", q.ID, "pattern", rules.Pattern, "error", err)
			} else if !re.MatchString(str) {
				return invalid("Invalid format")
			}
		}
		if (rules.Email || q.InputKind == models.InputKindEmail) && !emailRegex.MatchString(str) {
			return invalid("Enter a valid email address")
		}
		if q.InputKind == models.InputKindURL {
			return v.validateURL(ctx, str)
		}
	}

	// Numeric checks.
	if num, ok := toFloat(value); ok && (isNumeric(value) || q.InputKind == models.InputKindNumber) {
		if rules.Min != nil && num < *rules.Min {
			return invalid(fmt.Sprintf("Must be at least %v", *rules.Min))
		}
		if rules.Max != nil && num > *rules.Max {
			return invalid(fmt.Sprintf("Must be at most %v", *rules.Max))
		}
	}

	// Selection-count checks.
	if arr, ok := asArray(value); ok {
		if rules.MinSelections > 0 && len(arr) < rules.MinSelections {
			return invalid(fmt.Sprintf("Select at least %d options", rules.MinSelections))
		}
		max := rules.MaxSelections
		if max == 0 {
			max = models.MaxSelectionCount
		}
		if len(arr) > max {
			return invalid(fmt.Sprintf("Select at most %d options", max))
		}
	}

	return valid()
}

// validateURL applies the deterministic quick fixes, the lenient domain
// check, and finally the AI suggester. Quick fixes run first because TLD
// typos like .con still satisfy the lenient pattern.
func (v *Validator) validateURL(ctx context.Context, input string) models.ValidationResult {
	candidate := strings.TrimSpace(input)

	if fixed, ok := quickFixDomain(candidate); ok {
		slog.Debug("Validator: URL quick fix found", "input", input, "suggestion", fixed)
		return models.ValidationResult{
			IsValid:        false,
			Error:          "That doesn't look like a valid web address",
			Suggestion:     fixed,
			CanAutoCorrect: true,
		}
	}

	if lenientDomainRegex.MatchString(candidate) {
		return valid()
	}

	if suggestion := v.aiSuggestDomain(ctx, candidate); suggestion != "" {
		slog.Debug("Validator: AI URL suggestion accepted", "input", input, "suggestion", suggestion)
		return models.ValidationResult{
			IsValid:        false,
			Error:          "That doesn't look like a valid web address",
			Suggestion:     suggestion,
			CanAutoCorrect: true,
		}
	}

	return invalid("Please enter a valid web address")
}

// quickFixDomain applies deterministic corrections for common typos.
// Returns the corrected domain and whether a fix applied.
func quickFixDomain(input string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, "/")

	// TLD typos: example.con -> example.com
	for typo, fix := range tldTypos {
		if strings.HasSuffix(s, typo) {
			fixed := strings.TrimSuffix(s, typo) + fix
			if strictDomainMatch(fixed) {
				return fixed, true
			}
		}
	}

	// Stray space instead of a dot: "example com" -> example.com
	if strings.Contains(s, " ") {
		fixed := strings.ReplaceAll(s, " ", ".")
		if strictDomainMatch(fixed) {
			return fixed, true
		}
	}

	// Missing dot before a known TLD: "examplecom" -> example.com
	for _, tld := range quickFixTLDs {
		suffix := strings.ReplaceAll(tld, ".", "")
		if strings.HasSuffix(s, suffix) && !strings.Contains(s, ".") {
			base := strings.TrimSuffix(s, suffix)
			if base != "" {
				fixed := base + "." + tld
				if strictDomainMatch(fixed) {
					return fixed, true
				}
			}
		}
	}

	return "", false
}

// aiSuggestDomain consults the AI suggester and returns a vetted domain, or
// empty when nothing usable came back. All failures collapse to no
// suggestion; the suggester must never break validation.
func (v *Validator) aiSuggestDomain(ctx context.Context, input string) string {
	if v.suggester == nil {
		return ""
	}
	suggestion, err := v.suggester.SuggestWebsite(ctx, input)
	if err != nil {
		slog.Warn("Validator: AI website suggestion failed", "error", err)
		return ""
	}
	if suggestion == nil || suggestion.SuggestedURL == "" {
		return ""
	}
	if suggestion.Confidence != models.ConfidenceHigh && suggestion.Confidence != models.ConfidenceMedium {
		slog.Debug("Validator: AI suggestion below confidence threshold", "confidence", suggestion.Confidence)
		return ""
	}
	cleaned := strings.ToLower(strings.TrimSpace(suggestion.SuggestedURL))
	cleaned = strings.TrimPrefix(cleaned, "https://")
	cleaned = strings.TrimPrefix(cleaned, "http://")
	cleaned = strings.TrimPrefix(cleaned, "www.")
	cleaned = strings.TrimSuffix(cleaned, "/")
	if !strictDomainMatch(cleaned) {
		slog.Debug("Validator: AI suggestion failed strict re-validation", "suggestion", cleaned)
		return ""
	}
	return cleaned
}

func strictDomainMatch(s string) bool {
	return strictDomainRegex.MatchString(s)
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, json.Number:
		return true
	default:
		return false
	}
}

func asArray(v interface{}) ([]interface{}, bool) {
	switch arr := v.(type) {
	case []interface{}:
		return arr, true
	case []string:
		out := make([]interface{}, len(arr))
		for i, s := range arr {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func valid() models.ValidationResult {
	return models.ValidationResult{IsValid: true}
}

func invalid(msg string) models.ValidationResult {
	return models.ValidationResult{IsValid: false, Error: msg}
}
