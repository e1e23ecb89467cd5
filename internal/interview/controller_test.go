package interview

import (
	"context"
	"errors"
	"testing"

	"github.com/intakeloop/intakeloop/internal/models"
	"github.com/intakeloop/intakeloop/internal/store"
)

func testQuestions() []models.Question {
	return []models.Question{
		{ID: "welcome", Order: 1, Type: models.QuestionTypeGreeting, IsActive: true},
		{ID: "website", Order: 2, Type: models.QuestionTypeText, InputKind: models.InputKindURL,
			FieldKey: "url", Validation: models.ValidationRules{Required: true}, IsActive: true,
			AutoActions: []models.AutoAction{{ActionName: "crawlWebsite", TriggerPhase: "submit"}}},
		{ID: "has-content", Order: 3, Type: models.QuestionTypeConfirm, FieldKey: "hasContent", IsActive: true},
		{ID: "channels", Order: 4, Type: models.QuestionTypeMultiSelect, FieldKey: "channels", IsActive: true,
			ShowCondition: &models.Condition{Operator: models.OperatorEquals, Field: "hasContent", Value: true}},
		{ID: "keywords", Order: 5, Type: models.QuestionTypeMultiSelect, FieldKey: "keywords", IsActive: true,
			AutoActions: []models.AutoAction{{ActionName: models.ExternalKeyCompetitors, TriggerPhase: "submit"}}},
	}
}

func newTestController(t *testing.T, exec ActionExecutor, questions []models.Question) (*Controller, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	for _, q := range questions {
		if err := st.UpsertQuestion(q); err != nil {
			t.Fatalf("seed question %s: %v", q.ID, err)
		}
	}
	c := NewController(st, NewValidator(nil), NewDispatcher(exec))
	return c, st
}

func mustSubmit(t *testing.T, c *Controller, customerID, questionID string, value interface{}) *models.SubmitResult {
	t.Helper()
	result, payload, err := c.Submit(context.Background(), customerID, models.SubmitRequest{QuestionID: questionID, Value: value})
	if err != nil {
		t.Fatalf("submit %s: %v", questionID, err)
	}
	if payload != nil {
		t.Fatalf("submit %s: unexpected validation failure: %s", questionID, payload.Error)
	}
	return result
}

func TestCurrentSessionLazyCreate(t *testing.T) {
	c, st := newTestController(t, nil, testQuestions())

	view, err := c.CurrentSession(context.Background(), "cust")
	if err != nil {
		t.Fatalf("CurrentSession: %v", err)
	}
	if view.Session.Status != models.SessionStatusNotStarted {
		t.Errorf("fresh session should be NOT_STARTED, got %s", view.Session.Status)
	}
	if view.CurrentQuestion == nil || view.CurrentQuestion.ID != "welcome" {
		t.Errorf("current question should be the first, got %+v", view.CurrentQuestion)
	}

	// The session is persisted, and a second read reuses it.
	stored, err := st.GetActiveSession("cust")
	if err != nil || stored == nil {
		t.Fatalf("expected a persisted session, got %v (%v)", stored, err)
	}
	again, err := c.CurrentSession(context.Background(), "cust")
	if err != nil {
		t.Fatalf("second CurrentSession: %v", err)
	}
	if again.Session.ID != view.Session.ID {
		t.Errorf("second read should reuse the session: %s vs %s", again.Session.ID, view.Session.ID)
	}
}

func TestSubmitWithoutSession(t *testing.T) {
	c, _ := newTestController(t, nil, testQuestions())

	_, _, err := c.Submit(context.Background(), "cust", models.SubmitRequest{QuestionID: "welcome"})
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("submit must not materialize a session, got %v", err)
	}
}

func TestSubmitUnknownAndInactiveQuestion(t *testing.T) {
	questions := testQuestions()
	questions = append(questions, models.Question{ID: "retired", Order: 9, Type: models.QuestionTypeText, FieldKey: "old"})
	c, _ := newTestController(t, nil, questions)
	if _, err := c.CurrentSession(context.Background(), "cust"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := c.Submit(context.Background(), "cust", models.SubmitRequest{QuestionID: "nope"}); !errors.Is(err, models.ErrQuestionNotFound) {
		t.Errorf("unknown question: got %v", err)
	}
	if _, _, err := c.Submit(context.Background(), "cust", models.SubmitRequest{QuestionID: "retired"}); !errors.Is(err, models.ErrQuestionInactive) {
		t.Errorf("inactive question: got %v", err)
	}
}

func TestSubmitValidationFailureLeavesSessionUntouched(t *testing.T) {
	c, st := newTestController(t, nil, testQuestions())
	if _, err := c.CurrentSession(context.Background(), "cust"); err != nil {
		t.Fatal(err)
	}

	result, payload, err := c.Submit(context.Background(), "cust", models.SubmitRequest{QuestionID: "website", Value: nil})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result != nil || payload == nil {
		t.Fatalf("expected a validation payload, got result=%v payload=%v", result, payload)
	}

	session, _ := st.GetActiveSession("cust")
	if len(session.Responses) != 0 || session.Status != models.SessionStatusNotStarted {
		t.Errorf("failed validation must not mutate the session, got %+v", session)
	}
}

func TestSubmitSkipValidation(t *testing.T) {
	c, _ := newTestController(t, nil, testQuestions())
	if _, err := c.CurrentSession(context.Background(), "cust"); err != nil {
		t.Fatal(err)
	}

	_, payload, err := c.Submit(context.Background(), "cust", models.SubmitRequest{QuestionID: "website", Value: "not a url at all", SkipValidation: true})
	if err != nil || payload != nil {
		t.Errorf("skipValidation should bypass the pipeline, got payload=%v err=%v", payload, err)
	}
}

func TestSubmitAdvancesAndSkipsHiddenQuestions(t *testing.T) {
	exec := newStubExecutor()
	c, _ := newTestController(t, exec, testQuestions())
	if _, err := c.CurrentSession(context.Background(), "cust"); err != nil {
		t.Fatal(err)
	}

	result := mustSubmit(t, c, "cust", "welcome", nil)
	if result.NextQuestion == nil || result.NextQuestion.ID != "website" {
		t.Fatalf("after welcome expected website, got %+v", result.NextQuestion)
	}
	if result.Session.Status != models.SessionStatusInProgress {
		t.Errorf("first answer should move the session to IN_PROGRESS, got %s", result.Session.Status)
	}

	mustSubmit(t, c, "cust", "website", "example.com")

	// Answering the gate false hides channels, so keywords is next.
	result = mustSubmit(t, c, "cust", "has-content", false)
	if result.NextQuestion == nil || result.NextQuestion.ID != "keywords" {
		t.Errorf("channels should be hidden, expected keywords next, got %+v", result.NextQuestion)
	}
}

func TestSubmitCompletesInterview(t *testing.T) {
	exec := newStubExecutor()
	exec.results[models.ExternalKeyCompetitors] = []string{"rival.com"}
	c, st := newTestController(t, exec, testQuestions())
	if _, err := c.CurrentSession(context.Background(), "cust"); err != nil {
		t.Fatal(err)
	}

	mustSubmit(t, c, "cust", "welcome", nil)
	mustSubmit(t, c, "cust", "website", "example.com")
	mustSubmit(t, c, "cust", "has-content", false)
	result := mustSubmit(t, c, "cust", "keywords", []interface{}{"seo", "content"})

	if !result.IsComplete || result.NextQuestion != nil {
		t.Fatalf("last answer should complete the interview, got %+v", result)
	}
	if result.Progress.Percentage != 100 {
		t.Errorf("finished interview should report 100%%, got %+v", result.Progress)
	}
	session, _ := st.GetSession(result.Session.ID)
	if session.Status != models.SessionStatusCompleted || session.CompletedAt == nil {
		t.Errorf("expected COMPLETED with a completion time, got %+v", session)
	}
	if session.CurrentQuestionID != "" {
		t.Errorf("completion should clear the cursor, got %q", session.CurrentQuestionID)
	}

	// Submitting into a completed interview is rejected.
	_, _, err := c.Submit(context.Background(), "cust", models.SubmitRequest{QuestionID: "welcome"})
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("completed session should reject submits, got %v", err)
	}
}

func TestSubmitStoresActionResults(t *testing.T) {
	exec := newStubExecutor()
	exec.results["crawlWebsite"] = map[string]interface{}{"title": "Acme"}
	c, st := newTestController(t, exec, testQuestions())
	if _, err := c.CurrentSession(context.Background(), "cust"); err != nil {
		t.Fatal(err)
	}

	mustSubmit(t, c, "cust", "website", "example.com")

	session, _ := st.GetActiveSession("cust")
	raw, ok := session.ExternalData["crawlWebsite"]
	if !ok {
		t.Fatalf("action result should be stored under the action name, got %v", session.ExternalData)
	}
	result, ok := raw.(models.ActionResult)
	if !ok || !result.Success {
		t.Errorf("stored result should be a successful ActionResult, got %#v", raw)
	}
}

func TestSubmitURLChangeInvalidatesDownstream(t *testing.T) {
	exec := newStubExecutor()
	exec.results[models.ExternalKeyCompetitors] = []string{"rival.com"}
	c, st := newTestController(t, exec, testQuestions())
	if _, err := c.CurrentSession(context.Background(), "cust"); err != nil {
		t.Fatal(err)
	}

	mustSubmit(t, c, "cust", "welcome", nil)
	mustSubmit(t, c, "cust", "website", "example.com")
	mustSubmit(t, c, "cust", "has-content", true)
	mustSubmit(t, c, "cust", "channels", []interface{}{"blog"})

	// Changing the website wipes every other response and all external data.
	result := mustSubmit(t, c, "cust", "website", "other.com")

	session, _ := st.GetActiveSession("cust")
	if session.Responses["url"] != "other.com" {
		t.Errorf("new URL should survive, got %v", session.Responses["url"])
	}
	for key := range session.Responses {
		if key != "url" {
			t.Errorf("response %q should have been invalidated", key)
		}
	}
	if _, ok := session.ExternalData[models.ExternalKeyCompetitors]; ok {
		t.Error("external data from the old site should be gone")
	}
	// The crawl for the new URL runs after the wipe and is kept.
	if _, ok := session.ExternalData["crawlWebsite"]; !ok {
		t.Error("fresh crawl result for the new URL should be stored")
	}
	// The scan restarts from the top: welcome is unanswered again.
	if result.NextQuestion == nil || result.NextQuestion.ID != "welcome" {
		t.Errorf("cursor should reset to the first unanswered question, got %+v", result.NextQuestion)
	}
}

func TestSubmitSameURLDoesNotInvalidate(t *testing.T) {
	c, st := newTestController(t, nil, testQuestions())
	if _, err := c.CurrentSession(context.Background(), "cust"); err != nil {
		t.Fatal(err)
	}

	mustSubmit(t, c, "cust", "website", "example.com")
	mustSubmit(t, c, "cust", "has-content", true)
	mustSubmit(t, c, "cust", "website", "example.com")

	session, _ := st.GetActiveSession("cust")
	if session.Responses["hasContent"] != true {
		t.Errorf("unchanged URL must not invalidate other responses, got %v", session.Responses)
	}
}

func TestApplyInvalidationKeywordSet(t *testing.T) {
	c, _ := newTestController(t, nil, testQuestions())
	session := models.NewInterviewSession("s1", "cust")
	session.ExternalData[models.ExternalKeyCompetitors] = models.ActionResult{Success: true}
	session.ExternalData["crawlWebsite"] = models.ActionResult{Success: true}

	// Same set in a different order is not a change.
	c.applyInvalidation(session, models.FieldKeyKeywords, []interface{}{"x", "y"}, []interface{}{"y", "x"})
	if _, ok := session.ExternalData[models.ExternalKeyCompetitors]; !ok {
		t.Error("reordered keyword set must not invalidate competitor suggestions")
	}

	// A genuinely different set drops the competitor suggestions only.
	c.applyInvalidation(session, models.FieldKeyKeywords, []interface{}{"x", "y"}, []interface{}{"x", "z"})
	if _, ok := session.ExternalData[models.ExternalKeyCompetitors]; ok {
		t.Error("changed keyword set should drop competitor suggestions")
	}
	if _, ok := session.ExternalData["crawlWebsite"]; !ok {
		t.Error("keyword change must not touch unrelated external data")
	}
}

func TestApplyInvalidationFirstAnswerIsNotAChange(t *testing.T) {
	c, _ := newTestController(t, nil, testQuestions())
	session := models.NewInterviewSession("s1", "cust")
	session.Responses["url"] = "example.com"
	session.Responses["name"] = "Acme"

	c.applyInvalidation(session, models.FieldKeyWebsiteURL, nil, "example.com")
	if session.Responses["name"] != "Acme" {
		t.Error("initial answer must not trigger the cascade")
	}
}

func TestNextQuestionMonotonicity(t *testing.T) {
	c, _ := newTestController(t, nil, testQuestions())
	questions := testQuestions()

	session := models.NewInterviewSession("s1", "cust")
	session.Responses["url"] = "example.com"
	session.Responses["hasContent"] = true
	session.Responses["channels"] = []interface{}{"blog"}
	session.CurrentQuestionID = "keywords"

	// hasContent flips false, hiding channels, but channels is behind the
	// cursor and already answered. The scan never goes backwards.
	session.Responses["hasContent"] = false
	next, _ := c.nextQuestion(questions, session)
	if next == nil || next.ID != "keywords" {
		t.Errorf("expected keywords, got %+v", next)
	}
}

func TestNextQuestionDeactivatedCursor(t *testing.T) {
	c, _ := newTestController(t, nil, testQuestions())
	questions := testQuestions()

	session := models.NewInterviewSession("s1", "cust")
	session.Responses["welcome"] = true
	session.Responses["url"] = "example.com"
	session.CurrentQuestionID = "gone-question"

	// Unknown cursor restarts from the top; answered questions are skipped.
	next, _ := c.nextQuestion(questions, session)
	if next == nil || next.ID != "has-content" {
		t.Errorf("expected has-content, got %+v", next)
	}
}

func TestAbandonLifecycle(t *testing.T) {
	c, st := newTestController(t, nil, testQuestions())

	if err := c.Abandon(context.Background(), "cust"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("abandon without a session: got %v", err)
	}

	view, err := c.CurrentSession(context.Background(), "cust")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Abandon(context.Background(), "cust"); err != nil {
		t.Fatalf("Abandon: %v", err)
	}

	abandoned, _ := st.GetSession(view.Session.ID)
	if abandoned.Status != models.SessionStatusAbandoned {
		t.Errorf("expected ABANDONED, got %s", abandoned.Status)
	}

	// An abandoned session is terminal; the next read starts fresh.
	fresh, err := c.CurrentSession(context.Background(), "cust")
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Session.ID == view.Session.ID {
		t.Error("abandoned session should not be resumed")
	}
}

func TestResetRoundTrip(t *testing.T) {
	c, st := newTestController(t, nil, testQuestions())
	view, err := c.CurrentSession(context.Background(), "cust")
	if err != nil {
		t.Fatal(err)
	}
	mustSubmit(t, c, "cust", "website", "example.com")

	id, err := c.Reset(context.Background(), "cust")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if id != view.Session.ID {
		t.Errorf("reset should keep the session id, got %s vs %s", id, view.Session.ID)
	}

	session, _ := st.GetSession(id)
	if session.Status != models.SessionStatusNotStarted || len(session.Responses) != 0 || len(session.ExternalData) != 0 {
		t.Errorf("reset should wipe the session, got %+v", session)
	}
	if session.CurrentQuestionID != "" || session.CompletedAt != nil {
		t.Errorf("reset should clear cursor and completion, got %+v", session)
	}
	messages, _ := st.ListMessages(id, models.DefaultTranscriptWindow, 0)
	if len(messages) != 0 {
		t.Errorf("reset should clear the transcript, got %d messages", len(messages))
	}
}

func TestResetWithoutSessionCreatesOne(t *testing.T) {
	c, st := newTestController(t, nil, testQuestions())
	id, err := c.Reset(context.Background(), "cust")
	if err != nil || id == "" {
		t.Fatalf("Reset: id=%q err=%v", id, err)
	}
	if session, _ := st.GetSession(id); session == nil {
		t.Error("reset should persist the created session")
	}
}

func TestProgressEndpointSpeculative(t *testing.T) {
	c, st := newTestController(t, nil, testQuestions())

	p, err := c.Progress(context.Background(), "cust")
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.Completed != 0 {
		t.Errorf("no session should mean no progress, got %+v", p)
	}
	if session, _ := st.GetActiveSession("cust"); session != nil {
		t.Error("progress must not materialize a session")
	}
}

func TestSubmitRecordsTranscript(t *testing.T) {
	c, st := newTestController(t, nil, testQuestions())
	view, err := c.CurrentSession(context.Background(), "cust")
	if err != nil {
		t.Fatal(err)
	}

	mustSubmit(t, c, "cust", "website", "example.com")

	messages, _ := st.ListMessages(view.Session.ID, models.DefaultTranscriptWindow, 0)
	if len(messages) != 1 || messages[0].Content != "example.com" {
		t.Errorf("expected one transcript entry with the raw answer, got %+v", messages)
	}
}

func TestCurrentSessionRunsDisplayActions(t *testing.T) {
	exec := newStubExecutor()
	exec.results["showHint"] = "hint"
	questions := []models.Question{
		{ID: "intro", Order: 1, Type: models.QuestionTypeGreeting, IsActive: true,
			AutoActions: []models.AutoAction{{ActionName: "showHint", TriggerPhase: "display"}}},
	}
	c, st := newTestController(t, exec, questions)

	if _, err := c.CurrentSession(context.Background(), "cust"); err != nil {
		t.Fatal(err)
	}

	if len(exec.calls) != 1 || exec.calls[0] != "showHint" {
		t.Fatalf("expected the display action to fire, got %v", exec.calls)
	}
	session, _ := st.GetActiveSession("cust")
	if _, ok := session.ExternalData["showHint"]; !ok {
		t.Error("display action result should be persisted")
	}
}

func TestCurrentSessionDisplayActionsFireOncePerQuestion(t *testing.T) {
	exec := newStubExecutor()
	exec.results["showHint"] = "hint"
	questions := []models.Question{
		{ID: "intro", Order: 1, Type: models.QuestionTypeGreeting, IsActive: true,
			AutoActions: []models.AutoAction{{ActionName: "showHint", TriggerPhase: "display"}}},
	}
	c, _ := newTestController(t, exec, questions)

	for i := 0; i < 3; i++ {
		if _, err := c.CurrentSession(context.Background(), "cust"); err != nil {
			t.Fatal(err)
		}
	}

	if len(exec.calls) != 1 {
		t.Fatalf("display action fired %d times across 3 reads, want 1", len(exec.calls))
	}
}
