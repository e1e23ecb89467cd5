// Package store provides storage backends for intakeloop.
//
// This file implements an SQLite-backed store for interview state.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/intakeloop/intakeloop/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateSession(session *models.InterviewSession) error {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.CustomerID, session.Status, nilIfEmpty(session.CurrentQuestionID),
		responses, external, session.Version, session.CreatedAt, session.UpdatedAt, session.CompletedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to insert session %s: %w", session.ID, err)
	}
	slog.Debug("SQLiteStore CreateSession succeeded", "sessionID", session.ID, "customerID", session.CustomerID)
	return nil
}

func (s *SQLiteStore) GetSession(id string) (*models.InterviewSession, error) {
	row := s.db.QueryRow(
		`SELECT id, customer_id, status, current_question_id, responses, external_data, version, created_at, updated_at, completed_at
		 FROM interview_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return session, nil
}

func (s *SQLiteStore) GetActiveSession(customerID string) (*models.InterviewSession, error) {
	row := s.db.QueryRow(
		`SELECT id, customer_id, status, current_question_id, responses, external_data, version, created_at, updated_at, completed_at
		 FROM interview_sessions
		 WHERE customer_id = ? AND status != ?
		 ORDER BY created_at DESC LIMIT 1`,
		customerID, models.SessionStatusAbandoned)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetActiveSession not found", "customerID", customerID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetActiveSession failed", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("failed to get active session for %s: %w", customerID, err)
	}
	return session, nil
}

// UpdateSession applies the session's mutable fields as a unit, guarded by an
// optimistic version check. A zero-row update means the stored version moved
// under us and surfaces as models.ErrVersionConflict.
func (s *SQLiteStore) UpdateSession(session *models.InterviewSession) error {
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
		 SET status = ?, current_question_id = ?, responses = ?, external_data = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP, completed_at = ?
		 WHERE id = ? AND version = ?`,
		session.Status, nilIfEmpty(session.CurrentQuestionID), responses, external, session.CompletedAt,
		session.ID, session.Version,
	)
	if err != nil {
		slog.Error("SQLiteStore UpdateSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to update session %s: %w", session.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for session %s: %w", session.ID, err)
	}
	if affected == 0 {
		slog.Warn("SQLiteStore UpdateSession version conflict", "sessionID", session.ID, "version", session.Version)
		return models.ErrVersionConflict
	}
	session.Version++
	slog.Debug("SQLiteStore UpdateSession succeeded", "sessionID", session.ID, "version", session.Version)
	return nil
}

func (s *SQLiteStore) UpsertQuestion(q models.Question) error {
	definition, err := encodeQuestion(q)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO questions (id, question_order, definition, is_active) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET question_order = excluded.question_order, definition = excluded.definition, is_active = excluded.is_active`,
		q.ID, q.Order, definition, q.IsActive,
	)
	if err != nil {
		slog.Error("SQLiteStore UpsertQuestion failed", "error", err, "questionID", q.ID)
		return fmt.Errorf("failed to upsert question %s: %w", q.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListActiveQuestions() ([]models.Question, error) {
	rows, err := s.db.Query(`SELECT definition FROM questions WHERE is_active = 1 ORDER BY question_order`)
	if err != nil {
		slog.Error("SQLiteStore ListActiveQuestions query failed", "error", err)
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			slog.Error("SQLiteStore ListActiveQuestions scan failed", "error", err)
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
	slog.Debug("SQLiteStore ListActiveQuestions succeeded", "count", len(questions))
	return questions, nil
}

func (s *SQLiteStore) GetQuestion(id string) (*models.Question, error) {
	var definition string
	err := s.db.QueryRow(`SELECT definition FROM questions WHERE id = ?`, id).Scan(&definition)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetQuestion failed", "error", err, "questionID", id)
		return nil, fmt.Errorf("failed to get question %s: %w", id, err)
	}
	q, err := scanQuestion(definition)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *SQLiteStore) AddMessage(m models.Message) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Role, m.Content, m.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "sessionID", m.SessionID)
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMessages(sessionID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = models.DefaultTranscriptWindow
	}
	if limit > models.MaxTranscriptWindow {
		limit = models.MaxTranscriptWindow
	}
	if offset < 0 {
		offset = 0
	}
	// Window from the end of the transcript, returned in creation order.
	rows, err := s.db.Query(
		`SELECT id, session_id, role, content, created_at FROM (
		     SELECT id, session_id, role, content, created_at
		     FROM messages WHERE session_id = ?
		     ORDER BY created_at DESC LIMIT ? OFFSET ?
		 ) ORDER BY created_at ASC`,
		sessionID, limit, offset)
	if err != nil {
		slog.Error("SQLiteStore ListMessages query failed", "error", err, "sessionID", sessionID)
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

func (s *SQLiteStore) ClearMessages(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore ClearMessages failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to clear messages for session %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLiteStore database connection")
	return s.db.Close()
}
