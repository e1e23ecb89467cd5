// Package store provides storage backends for intakeloop.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL backends for persistent interview state.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/intakeloop/intakeloop/internal/models"
)

// Opts holds configuration for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// Store defines the persistence contract for interview sessions, question
// definitions, and the message transcript.
//
// UpdateSession must apply {responses, externalData, currentQuestionID,
// status, completedAt} atomically and enforce an optimistic version check:
// it fails with models.ErrVersionConflict when the stored version differs
// from the session's version, and increments the version on success.
type Store interface {
	// Sessions
	CreateSession(s *models.InterviewSession) error
	GetSession(id string) (*models.InterviewSession, error)
	// GetActiveSession returns the customer's most recent non-abandoned
	// session, or nil when none exists.
	GetActiveSession(customerID string) (*models.InterviewSession, error)
	UpdateSession(s *models.InterviewSession) error

	// Questions
	UpsertQuestion(q models.Question) error
	// ListActiveQuestions returns active questions ordered by their order value.
	ListActiveQuestions() ([]models.Question, error)
	GetQuestion(id string) (*models.Question, error)

	// Transcript
	AddMessage(m models.Message) error
	// ListMessages returns up to limit messages for the session in creation
	// order, skipping offset from the end of the transcript.
	ListMessages(sessionID string, limit, offset int) ([]models.Message, error)
	ClearMessages(sessionID string) error

	Close() error
}

// InMemoryStore is a simple in-memory store for tests and development.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*models.InterviewSession
	questions map[string]models.Question
	messages  map[string][]models.Message
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:  make(map[string]*models.InterviewSession),
		questions: make(map[string]models.Question),
		messages:  make(map[string][]models.Message),
	}
}

func (s *InMemoryStore) CreateSession(session *models.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneSession(session)
	s.sessions[session.ID] = cp
	return nil
}

func (s *InMemoryStore) GetSession(id string) (*models.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(session), nil
}

func (s *InMemoryStore) GetActiveSession(customerID string) (*models.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.InterviewSession
	for _, session := range s.sessions {
		if session.CustomerID != customerID || session.Status == models.SessionStatusAbandoned {
			continue
		}
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			latest = session
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneSession(latest), nil
}

func (s *InMemoryStore) UpdateSession(session *models.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[session.ID]
	if !ok {
		return models.ErrSessionNotFound
	}
	if stored.Version != session.Version {
		return models.ErrVersionConflict
	}
	session.Version++
	session.UpdatedAt = time.Now()
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *InMemoryStore) UpsertQuestion(q models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
	return nil
}

func (s *InMemoryStore) ListActiveQuestions() ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Question
	for _, q := range s.questions {
		if q.IsActive {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *InMemoryStore) GetQuestion(id string) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (s *InMemoryStore) AddMessage(m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.SessionID] = append(s.messages[m.SessionID], m)
	return nil
}

func (s *InMemoryStore) ListMessages(sessionID string, limit, offset int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return windowMessages(s.messages[sessionID], limit, offset), nil
}

func (s *InMemoryStore) ClearMessages(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, sessionID)
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// windowMessages returns a bounded window from the end of the transcript,
// preserving creation order within the window.
func windowMessages(all []models.Message, limit, offset int) []models.Message {
	if limit <= 0 {
		limit = models.DefaultTranscriptWindow
	}
	if limit > models.MaxTranscriptWindow {
		limit = models.MaxTranscriptWindow
	}
	if offset < 0 {
		offset = 0
	}
	end := len(all) - offset
	if end <= 0 {
		return nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]models.Message, end-start)
	copy(out, all[start:end])
	return out
}

func cloneSession(s *models.InterviewSession) *models.InterviewSession {
	cp := *s
	cp.Responses = cloneMap(s.Responses)
	cp.ExternalData = cloneMap(s.ExternalData)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
