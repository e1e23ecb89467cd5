// Package models defines interview session state and API request/response shapes.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SessionStatus represents the lifecycle state of an interview session.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "NOT_STARTED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusAbandoned  SessionStatus = "ABANDONED"
)

// IsValidSessionStatus checks if the given status is supported.
func IsValidSessionStatus(s SessionStatus) bool {
	switch s {
	case SessionStatusNotStarted, SessionStatusInProgress, SessionStatusCompleted, SessionStatusAbandoned:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status admits no further submits.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusAbandoned
}

// Well-known response-map field keys with invalidation semantics.
const (
	// FieldKeyWebsiteURL is the canonical site address; changing it clears
	// every other response and all external data.
	FieldKeyWebsiteURL = "url"
	// FieldKeyKeywords is the keyword selection; changing it (as a set)
	// drops only competitor suggestions.
	FieldKeyKeywords = "keywords"
	// ExternalKeyCompetitors is the external-data entry derived from keywords.
	ExternalKeyCompetitors = "competitorSuggestions"
)

// InterviewSession holds one customer's interview state.
//
// Responses is the single source of truth for condition evaluation and
// progress. ExternalData holds machine-derived enrichment results and is the
// first thing invalidated when an upstream answer changes.
type InterviewSession struct {
	ID                string                 `json:"id"`
	CustomerID        string                 `json:"customer_id"`
	Status            SessionStatus          `json:"status"`
	CurrentQuestionID string                 `json:"current_question_id,omitempty"`
	Responses         map[string]interface{} `json:"responses"`
	ExternalData      map[string]interface{} `json:"external_data"`
	Version           int64                  `json:"version"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	CompletedAt       *time.Time             `json:"completed_at,omitempty"`
}

// NewInterviewSession returns an empty NOT_STARTED session for a customer.
func NewInterviewSession(id, customerID string) *InterviewSession {
	now := time.Now()
	return &InterviewSession{
		ID:           id,
		CustomerID:   customerID,
		Status:       SessionStatusNotStarted,
		Responses:    make(map[string]interface{}),
		ExternalData: make(map[string]interface{}),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HasResponse reports whether the field key holds a present answer.
// Empty string and nil count as absent.
func (s *InterviewSession) HasResponse(fieldKey string) bool {
	return IsPresentValue(s.Responses[fieldKey])
}

// IsPresentValue reports whether v counts as an answered value: non-nil and
// not the empty string.
func IsPresentValue(v interface{}) bool {
	if v == nil {
		return false
	}
	if str, ok := v.(string); ok && str == "" {
		return false
	}
	return true
}

// ResponsesJSON serializes the response map for storage.
func (s *InterviewSession) ResponsesJSON() (string, error) {
	data, err := json.Marshal(s.Responses)
	if err != nil {
		return "", fmt.Errorf("failed to marshal responses: %w", err)
	}
	return string(data), nil
}

// ExternalDataJSON serializes the external data map for storage.
func (s *InterviewSession) ExternalDataJSON() (string, error) {
	data, err := json.Marshal(s.ExternalData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal external data: %w", err)
	}
	return string(data), nil
}

// SubmitRequest is the caller-facing submit payload.
type SubmitRequest struct {
	QuestionID     string      `json:"question_id"`
	Value          interface{} `json:"value"`
	SkipValidation bool        `json:"skip_validation,omitempty"`
}

// Validate validates a SubmitRequest.
func (r *SubmitRequest) Validate() error {
	if r.QuestionID == "" {
		return errors.New("question id is required")
	}
	if str, ok := r.Value.(string); ok && len(str) > MaxAnswerLength {
		return errors.New("answer exceeds maximum length")
	}
	return nil
}

// SessionSummary is the caller-facing projection of a session.
type SessionSummary struct {
	ID           string                 `json:"id"`
	Status       SessionStatus          `json:"status"`
	Responses    map[string]interface{} `json:"responses"`
	ExternalData map[string]interface{} `json:"external_data,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

// Summary projects the session for API responses.
func (s *InterviewSession) Summary() SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		Status:       s.Status,
		Responses:    s.Responses,
		ExternalData: s.ExternalData,
		CompletedAt:  s.CompletedAt,
	}
}

// SessionView is returned by the current-session read path.
type SessionView struct {
	Session         SessionSummary `json:"session"`
	Questions       []Question     `json:"questions"`
	CurrentQuestion *Question      `json:"current_question,omitempty"`
	Transcript      []Message      `json:"transcript"`
	Progress        Progress       `json:"progress"`
}

// SubmitResult is returned by a successful submit.
type SubmitResult struct {
	Session      SessionSummary `json:"session"`
	NextQuestion *Question      `json:"next_question,omitempty"`
	Progress     Progress       `json:"progress"`
	IsComplete   bool           `json:"is_complete"`
}

// ValidationErrorPayload is returned when a submit fails validation.
type ValidationErrorPayload struct {
	Error          string `json:"error"`
	Suggestion     string `json:"suggestion,omitempty"`
	CanAutoCorrect bool   `json:"can_auto_correct,omitempty"`
}

// API Response types for consistent JSON responses

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
