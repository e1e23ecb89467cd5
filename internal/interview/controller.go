// Package interview provides the flow controller orchestrating the
// onboarding interview: next-question resolution, the submit pipeline, the
// invalidation cascade, and session lifecycle transitions.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/intakeloop/intakeloop/internal/models"
	"github.com/intakeloop/intakeloop/internal/store"
)

// Controller orchestrates the interview flow for one store.
type Controller struct {
	st         store.Store
	validator  *Validator
	dispatcher *Dispatcher
	locks      *sessionLocks
}

// NewController creates a flow controller.
func NewController(st store.Store, validator *Validator, dispatcher *Dispatcher) *Controller {
	return &Controller{
		st:         st,
		validator:  validator,
		dispatcher: dispatcher,
		locks:      newSessionLocks(),
	}
}

// CurrentSession returns the customer's interview view, lazily creating a
// NOT_STARTED session when none is active. Serving the current question also
// fires its on-display auto-actions, best-effort.
func (c *Controller) CurrentSession(ctx context.Context, customerID string) (*models.SessionView, error) {
	unlock := c.locks.acquire(customerID)
	defer unlock()

	session, err := c.st.GetActiveSession(customerID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session, err = c.createSession(customerID)
		if err != nil {
			return nil, err
		}
	}

	questions, err := c.st.ListActiveQuestions()
	if err != nil {
		return nil, err
	}

	var current *models.Question
	if session.Status != models.SessionStatusCompleted {
		current, _ = c.nextQuestion(questions, session)
	}

	if current != nil {
		c.runDisplayActions(ctx, current, session)
	}

	transcript, err := c.st.ListMessages(session.ID, models.DefaultTranscriptWindow, 0)
	if err != nil {
		slog.Warn("Controller CurrentSession: transcript read failed", "error", err, "sessionID", session.ID)
		transcript = nil
	}

	return &models.SessionView{
		Session:         session.Summary(),
		Questions:       questions,
		CurrentQuestion: current,
		Transcript:      transcript,
		Progress:        ComputeProgress(questions, session),
	}, nil
}

// Submit runs the full submit pipeline for one answer. A validation failure
// is returned as a payload and leaves the session untouched; engine-level
// failures return an error.
func (c *Controller) Submit(ctx context.Context, customerID string, req models.SubmitRequest) (*models.SubmitResult, *models.ValidationErrorPayload, error) {
	unlock := c.locks.acquire(customerID)
	defer unlock()

	session, err := c.st.GetActiveSession(customerID)
	if err != nil {
		return nil, nil, err
	}
	// Unlike the read path, submit never materializes a session.
	if session == nil {
		return nil, nil, models.ErrSessionNotFound
	}
	if session.Status == models.SessionStatusCompleted {
		return nil, nil, fmt.Errorf("interview already completed: %w", models.ErrSessionNotFound)
	}

	question, err := c.st.GetQuestion(req.QuestionID)
	if err != nil {
		return nil, nil, err
	}
	if question == nil {
		return nil, nil, models.ErrQuestionNotFound
	}
	if !question.IsActive {
		return nil, nil, models.ErrQuestionInactive
	}

	// 1. Validate. Failure returns without mutating the session.
	if !req.SkipValidation {
		result := c.validator.Validate(ctx, question, req.Value)
		if !result.IsValid {
			slog.Debug("Controller Submit: validation failed", "questionID", question.ID, "error", result.Error, "canAutoCorrect", result.CanAutoCorrect)
			return nil, &models.ValidationErrorPayload{
				Error:          result.Error,
				Suggestion:     result.Suggestion,
				CanAutoCorrect: result.CanAutoCorrect,
			}, nil
		}
	}

	// 2. Write the response under the question's save key (and alias).
	// Display and action steps submit no value; their acknowledgement still
	// has to be recorded so the forward scan moves past them.
	value := req.Value
	if value == nil && question.FieldKey == "" {
		value = true
	}
	saveKey := saveKeyFor(question)
	previous := session.Responses[saveKey]
	session.Responses[saveKey] = value
	if question.AliasKey != "" {
		session.Responses[question.AliasKey] = value
	}

	// 3. Invalidation cascade.
	c.applyInvalidation(session, saveKey, previous, value)

	// 4. Transcript entry for the raw answer.
	if err := c.st.AddMessage(models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      models.MessageRoleUser,
		Content:   stringify(value),
		CreatedAt: time.Now(),
	}); err != nil {
		slog.Warn("Controller Submit: transcript append failed", "error", err, "sessionID", session.ID)
	}

	// 5. Persist responses and mark the interview in progress.
	session.Status = models.SessionStatusInProgress
	if err := c.st.UpdateSession(session); err != nil {
		return nil, nil, err
	}

	// 6. Submit-phase auto-actions, best-effort, results into externalData.
	c.mergeActionResults(session, c.dispatcher.RunAutoActions(ctx, question, session, models.TriggerPhaseSubmit))

	// 7. Resolve the next question and advance or complete.
	questions, err := c.st.ListActiveQuestions()
	if err != nil {
		return nil, nil, err
	}
	next, _ := c.nextQuestion(questions, session)
	if next == nil {
		now := time.Now()
		session.Status = models.SessionStatusCompleted
		session.CompletedAt = &now
		session.CurrentQuestionID = ""
		c.mergeActionResults(session, c.dispatcher.RunCompletionActions(ctx, questions, session))
		slog.Info("Controller Submit: interview completed", "sessionID", session.ID, "customerID", customerID)
	} else {
		session.CurrentQuestionID = next.ID
	}
	if err := c.st.UpdateSession(session); err != nil {
		return nil, nil, err
	}

	// 8. Fresh progress for the caller.
	return &models.SubmitResult{
		Session:      session.Summary(),
		NextQuestion: next,
		Progress:     ComputeProgress(questions, session),
		IsComplete:   session.Status == models.SessionStatusCompleted,
	}, nil, nil
}

// Abandon marks the customer's active session abandoned. Terminal.
func (c *Controller) Abandon(ctx context.Context, customerID string) error {
	unlock := c.locks.acquire(customerID)
	defer unlock()

	session, err := c.st.GetActiveSession(customerID)
	if err != nil {
		return err
	}
	if session == nil {
		return models.ErrSessionNotFound
	}
	if session.Status == models.SessionStatusCompleted {
		return fmt.Errorf("cannot abandon a completed interview")
	}

	session.Status = models.SessionStatusAbandoned
	if err := c.st.UpdateSession(session); err != nil {
		return err
	}
	slog.Info("Controller Abandon: session abandoned", "sessionID", session.ID, "customerID", customerID)
	return nil
}

// Reset clears the customer's session back to NOT_STARTED, wiping responses,
// external data, the cursor, completion time, and the transcript. When no
// session exists a fresh one is created. Returns the session id.
func (c *Controller) Reset(ctx context.Context, customerID string) (string, error) {
	unlock := c.locks.acquire(customerID)
	defer unlock()

	session, err := c.st.GetActiveSession(customerID)
	if err != nil {
		return "", err
	}
	if session == nil {
		session, err = c.createSession(customerID)
		if err != nil {
			return "", err
		}
		return session.ID, nil
	}

	session.Status = models.SessionStatusNotStarted
	session.CurrentQuestionID = ""
	session.Responses = make(map[string]interface{})
	session.ExternalData = make(map[string]interface{})
	session.CompletedAt = nil
	if err := c.st.UpdateSession(session); err != nil {
		return "", err
	}
	if err := c.st.ClearMessages(session.ID); err != nil {
		slog.Warn("Controller Reset: transcript clear failed", "error", err, "sessionID", session.ID)
	}
	slog.Info("Controller Reset: session reset", "sessionID", session.ID, "customerID", customerID)
	return session.ID, nil
}

// Progress computes a speculative progress snapshot without side effects.
// Returns an empty snapshot when no session exists.
func (c *Controller) Progress(ctx context.Context, customerID string) (models.Progress, error) {
	session, err := c.st.GetActiveSession(customerID)
	if err != nil {
		return models.Progress{}, err
	}
	questions, err := c.st.ListActiveQuestions()
	if err != nil {
		return models.Progress{}, err
	}
	if session == nil {
		session = models.NewInterviewSession("", customerID)
	}
	return ComputeProgress(questions, session), nil
}

// nextQuestion scans the ordered active list forward from the session's
// current position and returns the first visible, unanswered question.
//
// The linear forward scan enforces monotonicity: an answered, now-hidden
// question behind the cursor is never re-surfaced even if its condition
// later becomes true again. Position is resolved from the stored question
// id; when that id no longer resolves (question deactivated mid-session) the
// scan restarts from the top, which is safe because answered questions are
// skipped.
func (c *Controller) nextQuestion(questions []models.Question, session *models.InterviewSession) (*models.Question, int) {
	if session.Status == models.SessionStatusCompleted {
		return nil, -1
	}
	start := positionOf(questions, session.CurrentQuestionID)
	for i := start; i < len(questions); i++ {
		q := &questions[i]
		if !ShouldShowQuestion(q, session.Responses) {
			continue
		}
		if models.IsPresentValue(session.Responses[saveKeyFor(q)]) {
			continue
		}
		return q, i
	}
	return nil, -1
}

// applyInvalidation clears downstream data when an upstream answer changes
// meaningfully. Special-cased by field semantics, not generic:
//
// A changed website URL invalidates everything computed in the old site's
// context: every other response, all external data, and the cursor. A changed
// keyword set (compared as a set, not a list) invalidates only the competitor
// suggestions derived from it.
func (c *Controller) applyInvalidation(session *models.InterviewSession, saveKey string, previous, next interface{}) {
	switch saveKey {
	case models.FieldKeyWebsiteURL:
		if !models.IsPresentValue(previous) || valuesEqual(previous, next) {
			return
		}
		slog.Info("Controller: website URL changed, clearing downstream state", "sessionID", session.ID)
		for key := range session.Responses {
			if key != models.FieldKeyWebsiteURL {
				delete(session.Responses, key)
			}
		}
		session.ExternalData = make(map[string]interface{})
		session.CurrentQuestionID = ""

	case models.FieldKeyKeywords:
		if !models.IsPresentValue(previous) || sameStringSet(previous, next) {
			return
		}
		slog.Info("Controller: keyword set changed, dropping competitor suggestions", "sessionID", session.ID)
		delete(session.ExternalData, models.ExternalKeyCompetitors)
	}
}

// runDisplayActions fires a question's on-display auto-actions and persists
// any results, best-effort. Actions with a recorded result are skipped, so
// repeated reads of the session do not re-run enrichment.
func (c *Controller) runDisplayActions(ctx context.Context, q *models.Question, session *models.InterviewSession) {
	results := c.dispatcher.RunDisplayActions(ctx, q, session)
	if len(results) == 0 {
		return
	}
	c.mergeActionResults(session, results)
	if err := c.st.UpdateSession(session); err != nil {
		slog.Warn("Controller: failed to persist display action results", "error", err, "sessionID", session.ID)
	}
}

func (c *Controller) mergeActionResults(session *models.InterviewSession, results map[string]models.ActionResult) {
	for name, result := range results {
		session.ExternalData[name] = result
	}
}

func (c *Controller) createSession(customerID string) (*models.InterviewSession, error) {
	session := models.NewInterviewSession(uuid.NewString(), customerID)
	if err := c.st.CreateSession(session); err != nil {
		return nil, err
	}
	slog.Info("Controller: created new interview session", "sessionID", session.ID, "customerID", customerID)
	return session, nil
}

// saveKeyFor returns the response-map key a question writes. Questions with
// no field key (greetings, action steps) record their acknowledgement under
// the question id, which also serves the legacy lookup path.
func saveKeyFor(q *models.Question) string {
	if q.FieldKey != "" {
		return q.FieldKey
	}
	return q.ID
}

// positionOf resolves a question id to its index in the ordered list.
// Unknown or empty ids resolve to 0.
func positionOf(questions []models.Question, id string) int {
	if id == "" {
		return 0
	}
	for i := range questions {
		if questions[i].ID == id {
			return i
		}
	}
	return 0
}

// sameStringSet compares two answers as sets of their stringified elements.
// Non-array answers fall back to direct equality.
func sameStringSet(a, b interface{}) bool {
	arrA, okA := asArray(a)
	arrB, okB := asArray(b)
	if !okA || !okB {
		return valuesEqual(a, b)
	}
	if len(arrA) != len(arrB) {
		return false
	}
	sortedA := stringifyAll(arrA)
	sortedB := stringifyAll(arrB)
	sort.Strings(sortedA)
	sort.Strings(sortedB)
	for i := range sortedA {
		if sortedA[i] != sortedB[i] {
			return false
		}
	}
	return true
}

func stringifyAll(items []interface{}) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = stringify(item)
	}
	return out
}
