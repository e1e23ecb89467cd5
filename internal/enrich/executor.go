// Package enrich implements the action executor behind the interview's
// auto-actions: site crawling, keyword generation, competitor discovery, and
// writing-style analysis.
//
// The flow engine only sees the executor through its interface; handlers here
// are the shipped reference collaborators.
package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/intakeloop/intakeloop/internal/models"
)

// Enrichment source names. Auto-actions reference these, and their results
// land in the session's external data under the same key.
const (
	ActionCrawlWebsite     = "crawlWebsite"
	ActionGenerateKeywords = "generateKeywords"
	ActionFindCompetitors  = models.ExternalKeyCompetitors
	ActionAnalyzeStyle     = "analyzeWritingStyle"
)

// Handler performs one enrichment operation.
type Handler func(ctx context.Context, params map[string]interface{}, session *models.InterviewSession) (interface{}, error)

// Registry maps action names to handlers and implements the engine's
// ActionExecutor contract.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates an action name with a handler.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Execute runs the named action. Unknown actions are an error the dispatcher
// records as a failed result; they never block the flow.
func (r *Registry) Execute(ctx context.Context, actionName string, params map[string]interface{}, session *models.InterviewSession) (interface{}, error) {
	h, ok := r.handlers[actionName]
	if !ok {
		slog.Warn("Registry: unknown action", "action", actionName)
		return nil, fmt.Errorf("unknown action %q", actionName)
	}
	slog.Debug("Registry: executing action", "action", actionName)
	return h(ctx, params, session)
}

// paramString extracts a string parameter, tolerating absent or non-string
// values.
func paramString(params map[string]interface{}, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
