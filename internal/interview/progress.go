package interview

import (
	"math"

	"github.com/intakeloop/intakeloop/internal/models"
)

// ComputeProgress summarizes completion over the currently visible questions.
//
// Deterministic and mutation-free so it can be called speculatively for a
// progress bar. IsComplete mirrors the stored session status rather than
// recomputing it, since completion is also gated by explicit side effects.
func ComputeProgress(activeQuestions []models.Question, session *models.InterviewSession) models.Progress {
	total := 0
	completed := 0
	for i := range activeQuestions {
		q := &activeQuestions[i]
		if !ShouldShowQuestion(q, session.Responses) {
			continue
		}
		total++
		// Fieldless questions record their acknowledgement under the
		// question id, so check the same key submissions save under.
		if session.HasResponse(saveKeyFor(q)) {
			completed++
		}
	}

	percentage := 0
	if total > 0 {
		percentage = int(math.Round(100 * float64(completed) / float64(total)))
	}

	return models.Progress{
		Total:      total,
		Completed:  completed,
		Percentage: percentage,
		IsComplete: session.Status == models.SessionStatusCompleted,
	}
}
