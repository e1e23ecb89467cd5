// Package models defines the core data structures for intakeloop.
//
// It includes question definitions, condition trees, validation results, and
// auto-action declarations shared across modules.
package models

import (
	"errors"
	"time"
)

// QuestionType defines the interaction kind of a question.
type QuestionType string

const (
	// QuestionTypeGreeting shows a static greeting with no answer expected.
	QuestionTypeGreeting QuestionType = "greeting"
	// QuestionTypeText collects a free-text answer.
	QuestionTypeText QuestionType = "text"
	// QuestionTypeSingleSelect collects exactly one option.
	QuestionTypeSingleSelect QuestionType = "single_select"
	// QuestionTypeMultiSelect collects one or more options.
	QuestionTypeMultiSelect QuestionType = "multi_select"
	// QuestionTypeSlider collects a numeric value within a range.
	QuestionTypeSlider QuestionType = "slider"
	// QuestionTypeConfirm collects a yes/no answer.
	QuestionTypeConfirm QuestionType = "confirm"
	// QuestionTypeAISuggested presents an AI-suggested value for approval.
	QuestionTypeAISuggested QuestionType = "ai_suggested"
	// QuestionTypeStructured collects editable structured data.
	QuestionTypeStructured QuestionType = "structured"
	// QuestionTypeDynamicOptions collects a selection from dynamically sourced options.
	QuestionTypeDynamicOptions QuestionType = "dynamic_options"
	// QuestionTypeAction runs side effects only; no answer is stored.
	QuestionTypeAction QuestionType = "action"
)

// InputKind refines how a text answer is interpreted for validation.
type InputKind string

const (
	InputKindText   InputKind = "text"
	InputKindURL    InputKind = "url"
	InputKindEmail  InputKind = "email"
	InputKindNumber InputKind = "number"
)

// TriggerPhase defines when an auto-action fires.
type TriggerPhase string

const (
	// TriggerPhaseSubmit fires after a valid answer is stored.
	TriggerPhaseSubmit TriggerPhase = "submit"
	// TriggerPhaseDisplay fires when the question is served as current.
	TriggerPhaseDisplay TriggerPhase = "display"
)

// Validation constants for question definitions
const (
	// MaxAnswerLength bounds any single free-text answer
	MaxAnswerLength = 10000
	// MaxSelectionCount bounds multi-select answers absent an explicit rule
	MaxSelectionCount = 50
	// MaxTranscriptWindow bounds a single transcript page
	MaxTranscriptWindow = 200
	// DefaultTranscriptWindow is the transcript page size when unspecified
	DefaultTranscriptWindow = 50
)

// Error variables for better error handling and testability
var (
	ErrSessionNotFound     = errors.New("no active interview session")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrQuestionInactive    = errors.New("question is not active")
	ErrVersionConflict     = errors.New("session was modified concurrently")
	ErrDuplicateOrder      = errors.New("duplicate question order")
	ErrMissingFieldKey     = errors.New("question requires a field key")
	ErrInvalidQuestionType = errors.New("invalid question type")
)

// ValidationRules holds the structured constraints declared on a question.
type ValidationRules struct {
	Required      bool     `json:"required,omitempty" yaml:"required,omitempty"`
	MinLength     int      `json:"min_length,omitempty" yaml:"minLength,omitempty"`
	MaxLength     int      `json:"max_length,omitempty" yaml:"maxLength,omitempty"`
	Pattern       string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Email         bool     `json:"email,omitempty" yaml:"email,omitempty"`
	Min           *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max           *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	MinSelections int      `json:"min_selections,omitempty" yaml:"minSelections,omitempty"`
	MaxSelections int      `json:"max_selections,omitempty" yaml:"maxSelections,omitempty"`
}

// AutoAction declares a side-effecting operation bound to a question.
type AutoAction struct {
	ActionName   string                 `json:"action_name" yaml:"actionName"`
	TriggerPhase TriggerPhase           `json:"trigger_phase,omitempty" yaml:"triggerPhase,omitempty"`
	OnComplete   bool                   `json:"on_complete,omitempty" yaml:"onComplete,omitempty"`
	Params       map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

// Phase returns the effective trigger phase. Unset or unrecognized phases
// resolve to submit.
func (a AutoAction) Phase() TriggerPhase {
	if a.TriggerPhase == TriggerPhaseDisplay {
		return TriggerPhaseDisplay
	}
	return TriggerPhaseSubmit
}

// Question represents one step of the onboarding interview.
//
// Questions are immutable per version and administered externally; the engine
// only reads them. Order defines a total ordering among active questions and
// duplicate orders are rejected at load time.
type Question struct {
	ID            string          `json:"id" yaml:"id"`
	Order         int             `json:"order" yaml:"order"`
	Type          QuestionType    `json:"type" yaml:"type"`
	InputKind     InputKind       `json:"input_kind,omitempty" yaml:"inputKind,omitempty"`
	Prompt        string          `json:"prompt" yaml:"prompt"`
	FieldKey      string          `json:"field_key,omitempty" yaml:"fieldKey,omitempty"`
	AliasKey      string          `json:"alias_key,omitempty" yaml:"aliasKey,omitempty"`
	DependsOn     string          `json:"depends_on,omitempty" yaml:"dependsOn,omitempty"`
	ShowCondition *Condition      `json:"show_condition,omitempty" yaml:"showCondition,omitempty"`
	Validation    ValidationRules `json:"validation,omitempty" yaml:"validation,omitempty"`
	Options       []string        `json:"options,omitempty" yaml:"options,omitempty"`
	AutoActions   []AutoAction    `json:"auto_actions,omitempty" yaml:"autoActions,omitempty"`
	IsActive      bool            `json:"is_active" yaml:"-"`
}

// ExpectsMultiValue reports whether the question collects an array answer.
func (q *Question) ExpectsMultiValue() bool {
	return q.Type == QuestionTypeMultiSelect || q.Type == QuestionTypeDynamicOptions
}

// IsValidQuestionType checks if the given question type is supported.
func IsValidQuestionType(qt QuestionType) bool {
	switch qt {
	case QuestionTypeGreeting, QuestionTypeText, QuestionTypeSingleSelect,
		QuestionTypeMultiSelect, QuestionTypeSlider, QuestionTypeConfirm,
		QuestionTypeAISuggested, QuestionTypeStructured,
		QuestionTypeDynamicOptions, QuestionTypeAction:
		return true
	default:
		return false
	}
}

// ValidationResult is the outcome of running a candidate answer through the
// validation pipeline. A failed result may carry an auto-correction
// suggestion the caller can offer for one-click acceptance.
type ValidationResult struct {
	IsValid        bool   `json:"is_valid"`
	Error          string `json:"error,omitempty"`
	Suggestion     string `json:"suggestion,omitempty"`
	CanAutoCorrect bool   `json:"can_auto_correct,omitempty"`
}

// ActionResult records the outcome of one dispatched auto-action.
// Failures are data, not control flow: a failed action never blocks the
// interview.
type ActionResult struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// WebsiteSuggestion is the AI suggestion service's verdict on free text that
// failed URL validation.
type WebsiteSuggestion struct {
	IsValidWebsite bool   `json:"is_valid_website"`
	SuggestedURL   string `json:"suggested_url,omitempty"`
	Confidence     string `json:"confidence"`
}

// Confidence levels returned by the AI suggestion service.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Progress summarizes interview completion for the visible question set.
type Progress struct {
	Total      int  `json:"total"`
	Completed  int  `json:"completed"`
	Percentage int  `json:"percentage"`
	IsComplete bool `json:"is_complete"`
}

// MessageRole identifies the author of a transcript entry.
type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleAgent MessageRole = "agent"
)

// Message is an append-only transcript entry. The flow controller never
// consults the transcript for decisions; it is an audit/UX artifact.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}
