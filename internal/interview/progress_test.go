package interview

import (
	"testing"

	"github.com/intakeloop/intakeloop/internal/models"
)

func progressQuestions() []models.Question {
	return []models.Question{
		{ID: "name", Order: 1, Type: models.QuestionTypeText, FieldKey: "name"},
		{ID: "website", Order: 2, Type: models.QuestionTypeText, FieldKey: "url"},
		{ID: "channels", Order: 3, Type: models.QuestionTypeMultiSelect, FieldKey: "channels",
			ShowCondition: &models.Condition{Operator: models.OperatorEquals, Field: "hasContent", Value: true}},
		{ID: "frequency", Order: 4, Type: models.QuestionTypeSlider, FieldKey: "frequency"},
	}
}

func TestComputeProgressCountsVisibleOnly(t *testing.T) {
	session := models.NewInterviewSession("s1", "cust")
	session.Responses["name"] = "Acme"

	// channels is hidden (hasContent unset): 3 visible, 1 answered.
	p := ComputeProgress(progressQuestions(), session)
	if p.Total != 3 || p.Completed != 1 || p.Percentage != 33 {
		t.Errorf("expected 1/3 answered at 33%%, got %+v", p)
	}

	// Answering the gate makes channels visible: 4 visible, 2 answered.
	session.Responses["hasContent"] = true
	p = ComputeProgress(progressQuestions(), session)
	if p.Total != 4 || p.Completed != 2 || p.Percentage != 50 {
		t.Errorf("expected 2/4 answered at 50%%, got %+v", p)
	}
}

func TestComputeProgressRounding(t *testing.T) {
	questions := []models.Question{
		{ID: "a", Type: models.QuestionTypeText, FieldKey: "a"},
		{ID: "b", Type: models.QuestionTypeText, FieldKey: "b"},
		{ID: "c", Type: models.QuestionTypeText, FieldKey: "c"},
	}
	session := models.NewInterviewSession("s1", "cust")
	session.Responses["a"] = "x"
	session.Responses["b"] = "y"

	if p := ComputeProgress(questions, session); p.Percentage != 67 {
		t.Errorf("2/3 should round to 67, got %d", p.Percentage)
	}
}

func TestComputeProgressEmpty(t *testing.T) {
	session := models.NewInterviewSession("s1", "cust")
	p := ComputeProgress(nil, session)
	if p.Total != 0 || p.Completed != 0 || p.Percentage != 0 {
		t.Errorf("no visible questions should yield zero progress, got %+v", p)
	}
}

func TestComputeProgressFieldlessQuestion(t *testing.T) {
	questions := []models.Question{
		{ID: "welcome", Type: models.QuestionTypeGreeting},
		{ID: "name", Type: models.QuestionTypeText, FieldKey: "name"},
	}
	session := models.NewInterviewSession("s1", "cust")
	session.Responses["name"] = "Acme"

	// A question with no field key saves its acknowledgement under the
	// question id; until acknowledged it counts toward total only.
	p := ComputeProgress(questions, session)
	if p.Total != 2 || p.Completed != 1 {
		t.Errorf("expected 1/2, got %+v", p)
	}

	session.Responses["welcome"] = true
	p = ComputeProgress(questions, session)
	if p.Total != 2 || p.Completed != 2 || p.Percentage != 100 {
		t.Errorf("expected 2/2 at 100%%, got %+v", p)
	}
}

func TestComputeProgressIsCompleteMirrorsStatus(t *testing.T) {
	session := models.NewInterviewSession("s1", "cust")
	if p := ComputeProgress(nil, session); p.IsComplete {
		t.Error("fresh session should not report complete")
	}
	session.Status = models.SessionStatusCompleted
	if p := ComputeProgress(nil, session); !p.IsComplete {
		t.Error("completed session should report complete")
	}
}

func TestComputeProgressDoesNotMutate(t *testing.T) {
	session := models.NewInterviewSession("s1", "cust")
	session.Responses["name"] = "Acme"
	before := len(session.Responses)

	ComputeProgress(progressQuestions(), session)

	if len(session.Responses) != before {
		t.Error("progress computation must not touch responses")
	}
}
