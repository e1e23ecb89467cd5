// Package store provides storage backends for intakeloop.
//
// This file implements a PostgreSQL-backed store for interview state.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/intakeloop/intakeloop/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateSession(session *models.InterviewSession) error {
	responses, err := session.ResponsesJSON()
	if err != nil {
		return err
	}
	external, err := session.ExternalDataJSON()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO interview_sessions (id, customer_id, status, current_question_id, responses, external_data, version, created_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		session.ID, session.CustomerID, session.Status, nilIfEmpty(session.CurrentQuestionID),
		responses, external, session.Version, session.CreatedAt, session.UpdatedAt, session.CompletedAt,
	)
	if err != nil {
		slog.Error("PostgresStore CreateSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to insert session %s: %w", session.ID, err)
	}
	slog.Debug("PostgresStore CreateSession succeeded", "sessionID", session.ID, "customerID", session.CustomerID)
	return nil
}

func (s *PostgresStore) GetSession(id string) (*models.InterviewSession, error) {
	row := s.db.QueryRow(
		`SELECT id, customer_id, status, current_question_id, responses, external_data, version, created_at, updated_at, completed_at
		 FROM interview_sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return session, nil
}

func (s *PostgresStore) GetActiveSession(customerID string) (*models.InterviewSession, error) {
	row := s.db.QueryRow(
		`SELECT id, customer_id, status, current_question_id, responses, external_data, version, created_at, updated_at, completed_at
		 FROM interview_sessions
		 WHERE customer_id = $1 AND status != $2
		 ORDER BY created_at DESC LIMIT 1`,
		customerID, models.SessionStatusAbandoned)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetActiveSession not found", "customerID", customerID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetActiveSession failed", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("failed to get active session for %s: %w", customerID, err)
	}
	return session, nil
}

// UpdateSession applies the session's mutable fields as a unit, guarded by an
// optimistic version check.
func (s *PostgresStore) UpdateSession(session *models.InterviewSession) error {
	responses, err := session.ResponsesJSON()
	if err != nil {
		return err
	}
	external, err := session.ExternalDataJSON()
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE interview_sessions
		 SET status = $1, current_question_id = $2, responses = $3, external_data = $4, version = version + 1, updated_at = NOW(), completed_at = $5
		 WHERE id = $6 AND version = $7`,
		session.Status, nilIfEmpty(session.CurrentQuestionID), responses, external, session.CompletedAt,
		session.ID, session.Version,
	)
	if err != nil {
		slog.Error("PostgresStore UpdateSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to update session %s: %w", session.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for session %s: %w", session.ID, err)
	}
	if affected == 0 {
		slog.Warn("PostgresStore UpdateSession version conflict", "sessionID", session.ID, "version", session.Version)
		return models.ErrVersionConflict
	}
	session.Version++
	slog.Debug("PostgresStore UpdateSession succeeded", "sessionID", session.ID, "version", session.Version)
	return nil
}

func (s *PostgresStore) UpsertQuestion(q models.Question) error {
	definition, err := encodeQuestion(q)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO questions (id, question_order, definition, is_active) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET question_order = EXCLUDED.question_order, definition = EXCLUDED.definition, is_active = EXCLUDED.is_active`,
		q.ID, q.Order, definition, q.IsActive,
	)
	if err != nil {
		slog.Error("PostgresStore UpsertQuestion failed", "error", err, "questionID", q.ID)
		return fmt.Errorf("failed to upsert question %s: %w", q.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListActiveQuestions() ([]models.Question, error) {
	rows, err := s.db.Query(`SELECT definition FROM questions WHERE is_active = TRUE ORDER BY question_order`)
	if err != nil {
		slog.Error("PostgresStore ListActiveQuestions query failed", "error", err)
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		q, err := scanQuestion(definition)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question rows: %w", err)
	}
	slog.Debug("PostgresStore ListActiveQuestions succeeded", "count", len(questions))
	return questions, nil
}

func (s *PostgresStore) GetQuestion(id string) (*models.Question, error) {
	var definition string
	err := s.db.QueryRow(`SELECT definition FROM questions WHERE id = $1`, id).Scan(&definition)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetQuestion failed", "error", err, "questionID", id)
		return nil, fmt.Errorf("failed to get question %s: %w", id, err)
	}
	q, err := scanQuestion(definition)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *PostgresStore) AddMessage(m models.Message) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, session_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.SessionID, m.Role, m.Content, m.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "sessionID", m.SessionID)
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(sessionID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = models.DefaultTranscriptWindow
	}
	if limit > models.MaxTranscriptWindow {
		limit = models.MaxTranscriptWindow
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, role, content, created_at FROM (
		     SELECT id, session_id, role, content, created_at
		     FROM messages WHERE session_id = $1
		     ORDER BY created_at DESC LIMIT $2 OFFSET $3
		 ) w ORDER BY created_at ASC`,
		sessionID, limit, offset)
	if err != nil {
		slog.Error("PostgresStore ListMessages query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

func (s *PostgresStore) ClearMessages(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore ClearMessages failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to clear messages for session %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgresStore database connection")
	return s.db.Close()
}
