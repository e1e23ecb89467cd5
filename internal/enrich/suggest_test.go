package enrich

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/intakeloop/intakeloop/internal/models"
)

// stubGenAI returns a canned chat completion and records the prompt.
type stubGenAI struct {
	response string
	err      error
	lastUser string
}

func (s *stubGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	if len(messages) > 0 {
		if user := messages[len(messages)-1].OfUser; user != nil {
			s.lastUser = user.Content.OfString.Value
		}
	}
	return s.response, s.err
}

func (s *stubGenAI) SuggestWebsite(ctx context.Context, input string) (*models.WebsiteSuggestion, error) {
	return nil, fmt.Errorf("not used")
}

func siteSession() *models.InterviewSession {
	session := models.NewInterviewSession("s1", "cust")
	session.Responses[models.FieldKeyWebsiteURL] = "example.com"
	return session
}

func TestKeywordsHandler(t *testing.T) {
	stub := &stubGenAI{response: "```json\n{\"keywords\": [\"widgets\", \"acme\"]}\n```"}
	s := NewSuggester(stub)

	result, err := s.KeywordsHandler(context.Background(), map[string]interface{}{}, siteSession())
	if err != nil {
		t.Fatalf("KeywordsHandler: %v", err)
	}
	keywords, ok := result.([]string)
	if !ok || len(keywords) != 2 || keywords[0] != "widgets" {
		t.Errorf("unexpected keywords %v", result)
	}
}

func TestKeywordsHandlerNoContext(t *testing.T) {
	s := NewSuggester(&stubGenAI{})
	session := models.NewInterviewSession("s1", "cust")
	if _, err := s.KeywordsHandler(context.Background(), map[string]interface{}{}, session); err == nil {
		t.Error("missing site context should error")
	}
}

func TestCompetitorsHandlerIncludesKeywords(t *testing.T) {
	stub := &stubGenAI{response: `{"competitors": [{"name": "Rival", "domain": "rival.com"}]}`}
	s := NewSuggester(stub)
	session := siteSession()
	session.Responses[models.FieldKeyKeywords] = []interface{}{"widgets", "acme"}

	result, err := s.CompetitorsHandler(context.Background(), map[string]interface{}{}, session)
	if err != nil {
		t.Fatalf("CompetitorsHandler: %v", err)
	}
	competitors, ok := result.([]Competitor)
	if !ok || len(competitors) != 1 || competitors[0].Domain != "rival.com" {
		t.Errorf("unexpected competitors %v", result)
	}
	if !strings.Contains(stub.lastUser, "widgets") {
		t.Errorf("prompt should carry the keyword selection, got %q", stub.lastUser)
	}
}

func TestStyleHandler(t *testing.T) {
	stub := &stubGenAI{response: `{"tone": "playful", "formality": "casual", "traits": ["punchy"]}`}
	s := NewSuggester(stub)
	session := siteSession()
	session.ExternalData[ActionCrawlWebsite] = map[string]interface{}{"text_sample": "We make widgets!"}

	result, err := s.StyleHandler(context.Background(), map[string]interface{}{}, session)
	if err != nil {
		t.Fatalf("StyleHandler: %v", err)
	}
	style, ok := result.(StyleAnalysis)
	if !ok || style.Tone != "playful" || style.Formality != "casual" {
		t.Errorf("unexpected style %+v", result)
	}
}

func TestGenerateJSONErrors(t *testing.T) {
	s := NewSuggester(&stubGenAI{err: fmt.Errorf("rate limited")})
	if _, err := s.KeywordsHandler(context.Background(), map[string]interface{}{}, siteSession()); err == nil {
		t.Error("generation failure should surface as an error")
	}

	s = NewSuggester(&stubGenAI{response: "I cannot answer that."})
	if _, err := s.KeywordsHandler(context.Background(), map[string]interface{}{}, siteSession()); err == nil {
		t.Error("non-JSON output should surface as an error")
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r, NewCrawler(), NewSuggester(&stubGenAI{response: `{"keywords": []}`}))

	for _, name := range []string{ActionCrawlWebsite, ActionGenerateKeywords, ActionFindCompetitors, ActionAnalyzeStyle} {
		if _, ok := r.handlers[name]; !ok {
			t.Errorf("action %s should be registered", name)
		}
	}
}

func TestSiteContext(t *testing.T) {
	session := siteSession()
	session.ExternalData[ActionCrawlWebsite] = map[string]interface{}{"title": "Acme"}

	ctx := siteContext(map[string]interface{}{}, session)
	if !strings.Contains(ctx, "example.com") || !strings.Contains(ctx, "Acme") {
		t.Errorf("context should carry the URL and crawl data, got %q", ctx)
	}

	// An explicit url param wins over the stored response.
	ctx = siteContext(map[string]interface{}{"url": "override.com"}, session)
	if !strings.Contains(ctx, "override.com") {
		t.Errorf("param url should win, got %q", ctx)
	}
}
