// Package questions loads and validates YAML question packs.
//
// A pack defines the ordered interview; it is validated once at load time so
// the engine never re-interprets raw configuration. Malformed conditions are
// tolerated (they evaluate fail-open), but structural defects that would make
// the ordering ambiguous are rejected outright.
package questions

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/intakeloop/intakeloop/internal/models"
	"github.com/intakeloop/intakeloop/internal/store"
)

// packEntry wraps a question with pack-only fields.
type packEntry struct {
	models.Question `yaml:",inline"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"isActive"`
}

// pack is the top-level YAML document.
type pack struct {
	Questions []packEntry `yaml:"questions"`
}

// Load reads and validates a question pack file.
func Load(path string) ([]models.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question pack %s: %w", path, err)
	}
	questions, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid question pack %s: %w", path, err)
	}
	return questions, nil
}

// Parse validates a question pack document.
//
// Rejected outright: missing or duplicate ids, duplicate order values among
// active questions, unknown question types. Logged but tolerated: unknown
// condition operators (fail-open at evaluation) and unknown trigger phases
// (treated as submit).
func Parse(data []byte) ([]models.Question, error) {
	var p pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(p.Questions) == 0 {
		return nil, fmt.Errorf("question pack is empty")
	}

	seenIDs := make(map[string]bool)
	seenOrders := make(map[int]string)
	questions := make([]models.Question, 0, len(p.Questions))

	for i, entry := range p.Questions {
		q := entry.Question
		q.IsActive = entry.Active == nil || *entry.Active

		if q.ID == "" {
			return nil, fmt.Errorf("question at index %d has no id", i)
		}
		if seenIDs[q.ID] {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		seenIDs[q.ID] = true

		if !models.IsValidQuestionType(q.Type) {
			return nil, fmt.Errorf("question %q: %w: %q", q.ID, models.ErrInvalidQuestionType, q.Type)
		}

		// Ties in the total ordering are undefined behavior; refuse them at
		// the door rather than guessing.
		if q.IsActive {
			if other, ok := seenOrders[q.Order]; ok {
				return nil, fmt.Errorf("%w: questions %q and %q both have order %d", models.ErrDuplicateOrder, other, q.ID, q.Order)
			}
			seenOrders[q.Order] = q.ID
		}

		q.ShowCondition.Normalize()
		for _, op := range q.ShowCondition.UnknownOperators() {
			slog.Warn("Question pack: unknown condition operator, will fail open", "questionID", q.ID, "operator", op)
		}
		for _, action := range q.AutoActions {
			if action.ActionName == "" {
				return nil, fmt.Errorf("question %q has an auto-action with no action name", q.ID)
			}
			if action.TriggerPhase != "" && action.TriggerPhase != models.TriggerPhaseSubmit && action.TriggerPhase != models.TriggerPhaseDisplay {
				slog.Warn("Question pack: unknown trigger phase, treating as submit", "questionID", q.ID, "action", action.ActionName, "phase", action.TriggerPhase)
			}
		}

		questions = append(questions, q)
	}

	slog.Debug("Question pack parsed", "total", len(questions))
	return questions, nil
}

// Seed upserts the pack's questions into the store.
func Seed(st store.Store, questions []models.Question) error {
	for _, q := range questions {
		if err := st.UpsertQuestion(q); err != nil {
			return fmt.Errorf("failed to seed question %q: %w", q.ID, err)
		}
	}
	slog.Info("Question pack seeded", "count", len(questions))
	return nil
}
