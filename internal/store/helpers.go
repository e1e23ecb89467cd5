package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/intakeloop/intakeloop/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSession scans an InterviewSession from a session row.
func scanSession(row rowScanner) (*models.InterviewSession, error) {
	var s models.InterviewSession
	var currentQuestionID sql.NullString
	var responsesJSON, externalJSON string
	var completedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.CustomerID, &s.Status, &currentQuestionID,
		&responsesJSON, &externalJSON, &s.Version,
		&s.CreatedAt, &s.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	s.CurrentQuestionID = currentQuestionID.String
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal([]byte(responsesJSON), &s.Responses); err != nil {
		return nil, fmt.Errorf("failed to decode responses for session %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(externalJSON), &s.ExternalData); err != nil {
		return nil, fmt.Errorf("failed to decode external data for session %s: %w", s.ID, err)
	}
	if s.Responses == nil {
		s.Responses = make(map[string]interface{})
	}
	if s.ExternalData == nil {
		s.ExternalData = make(map[string]interface{})
	}
	return &s, nil
}

// scanQuestion decodes a question definition column into a Question and
// re-normalizes its condition tree so unknown operators stay distinguishable.
func scanQuestion(definition string) (models.Question, error) {
	var q models.Question
	if err := json.Unmarshal([]byte(definition), &q); err != nil {
		return q, fmt.Errorf("failed to decode question definition: %w", err)
	}
	q.ShowCondition.Normalize()
	return q, nil
}

// encodeQuestion serializes a Question for the definition column.
func encodeQuestion(q models.Question) (string, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("failed to encode question %s: %w", q.ID, err)
	}
	return string(data), nil
}
