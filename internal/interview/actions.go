// Package interview provides auto-action dispatch for question side effects.
package interview

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/intakeloop/intakeloop/internal/models"
)

// ActionExecutor is the external collaborator that performs enrichment
// operations (crawl, keyword generation, competitor discovery, and so on).
// Implementations should not let panics escape, but the dispatcher guards
// against them anyway.
type ActionExecutor interface {
	Execute(ctx context.Context, actionName string, params map[string]interface{}, session *models.InterviewSession) (interface{}, error)
}

// Dispatcher runs a question's declared auto-actions for a trigger phase.
type Dispatcher struct {
	executor ActionExecutor
}

// NewDispatcher creates a Dispatcher delegating to the given executor.
func NewDispatcher(executor ActionExecutor) *Dispatcher {
	return &Dispatcher{executor: executor}
}

// RunAutoActions dispatches every auto-action on the question whose trigger
// phase matches, in declaration order, and returns one result per action
// name. A failed or panicking action is recorded as an error result; it never
// stops later actions or the surrounding flow.
func (d *Dispatcher) RunAutoActions(ctx context.Context, q *models.Question, session *models.InterviewSession, phase models.TriggerPhase) map[string]models.ActionResult {
	results := make(map[string]models.ActionResult)
	if d.executor == nil || len(q.AutoActions) == 0 {
		return results
	}

	for _, action := range q.AutoActions {
		if action.OnComplete || action.Phase() != phase {
			continue
		}
		results[action.ActionName] = d.runOne(ctx, action, q, session)
	}
	return results
}

// RunDisplayActions dispatches the question's display-phase auto-actions
// whose results are not yet recorded in external data. The current question
// is served on every read of the session; enrichment fires only the first
// time.
func (d *Dispatcher) RunDisplayActions(ctx context.Context, q *models.Question, session *models.InterviewSession) map[string]models.ActionResult {
	results := make(map[string]models.ActionResult)
	if d.executor == nil || len(q.AutoActions) == 0 {
		return results
	}

	for _, action := range q.AutoActions {
		if action.OnComplete || action.Phase() != models.TriggerPhaseDisplay {
			continue
		}
		if _, ok := session.ExternalData[action.ActionName]; ok {
			continue
		}
		results[action.ActionName] = d.runOne(ctx, action, q, session)
	}
	return results
}

// RunCompletionActions dispatches the question's onComplete auto-actions.
// Called when the session transitions to COMPLETED.
func (d *Dispatcher) RunCompletionActions(ctx context.Context, questions []models.Question, session *models.InterviewSession) map[string]models.ActionResult {
	results := make(map[string]models.ActionResult)
	if d.executor == nil {
		return results
	}
	for i := range questions {
		q := &questions[i]
		for _, action := range q.AutoActions {
			if !action.OnComplete {
				continue
			}
			results[action.ActionName] = d.runOne(ctx, action, q, session)
		}
	}
	return results
}

// runOne executes a single action, converting any error or panic into an
// ActionResult so the fire-and-forget contract holds at the type level.
func (d *Dispatcher) runOne(ctx context.Context, action models.AutoAction, q *models.Question, session *models.InterviewSession) (result models.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatcher: auto-action panicked", "action", action.ActionName, "questionID", q.ID, "panic", r)
			result = models.ActionResult{Success: false, Error: fmt.Sprintf("action panicked: %v", r)}
		}
	}()

	// Input value is the just-submitted response for this question's field
	// key, falling back to a raw lookup by question id for legacy data.
	value := session.Responses[q.FieldKey]
	if value == nil {
		value = session.Responses[q.ID]
	}

	params := map[string]interface{}{
		"url":      value,
		"response": value,
	}
	for k, v := range action.Params {
		params[k] = v
	}

	slog.Debug("Dispatcher: running auto-action", "action", action.ActionName, "questionID", q.ID, "phase", action.Phase())
	data, err := d.executor.Execute(ctx, action.ActionName, params, session)
	if err != nil {
		slog.Warn("Dispatcher: auto-action failed", "action", action.ActionName, "questionID", q.ID, "error", err)
		return models.ActionResult{Success: false, Error: err.Error()}
	}
	slog.Debug("Dispatcher: auto-action succeeded", "action", action.ActionName, "questionID", q.ID)
	return models.ActionResult{Success: true, Result: data}
}
