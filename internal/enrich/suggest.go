package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/intakeloop/intakeloop/internal/genai"
	"github.com/intakeloop/intakeloop/internal/models"
)

// Suggester implements the AI-backed enrichment actions: keyword generation,
// competitor discovery, and writing-style analysis.
type Suggester struct {
	client genai.ClientInterface
}

// NewSuggester creates a Suggester on top of a GenAI client.
func NewSuggester(client genai.ClientInterface) *Suggester {
	return &Suggester{client: client}
}

// RegisterDefaults wires the standard enrichment actions into a registry.
func RegisterDefaults(r *Registry, crawler *Crawler, suggester *Suggester) {
	r.Register(ActionCrawlWebsite, crawler.CrawlHandler)
	r.Register(ActionGenerateKeywords, suggester.KeywordsHandler)
	r.Register(ActionFindCompetitors, suggester.CompetitorsHandler)
	r.Register(ActionAnalyzeStyle, suggester.StyleHandler)
}

const keywordsSystemPrompt = `You are a marketing keyword strategist. Given information about a company's website, propose 8-12 search keywords a customer would use to find it.

Respond with only a JSON object: {"keywords": ["...", "..."]}`

// KeywordsHandler proposes search keywords from crawled site content.
func (s *Suggester) KeywordsHandler(ctx context.Context, params map[string]interface{}, session *models.InterviewSession) (interface{}, error) {
	input := siteContext(params, session)
	if input == "" {
		return nil, fmt.Errorf("no site context available for keyword generation")
	}
	var out struct {
		Keywords []string `json:"keywords"`
	}
	if err := s.generateJSON(ctx, keywordsSystemPrompt, input, &out); err != nil {
		return nil, err
	}
	slog.Debug("Suggester: keywords generated", "count", len(out.Keywords))
	return out.Keywords, nil
}

const competitorsSystemPrompt = `You are a market researcher. Given a company's website and the keywords that describe it, list 3-6 likely competitors with their domains.

Respond with only a JSON object: {"competitors": [{"name": "...", "domain": "..."}]}`

// Competitor is one competitor suggestion.
type Competitor struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// CompetitorsHandler proposes competitors. Competitor results are a function
// of the keyword selection, which is why a changed keyword set invalidates
// exactly this entry in external data.
func (s *Suggester) CompetitorsHandler(ctx context.Context, params map[string]interface{}, session *models.InterviewSession) (interface{}, error) {
	input := siteContext(params, session)
	if keywords, ok := session.Responses[models.FieldKeyKeywords]; ok {
		input += "\nKeywords: " + stringifyValue(keywords)
	}
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("no site context available for competitor discovery")
	}
	var out struct {
		Competitors []Competitor `json:"competitors"`
	}
	if err := s.generateJSON(ctx, competitorsSystemPrompt, input, &out); err != nil {
		return nil, err
	}
	slog.Debug("Suggester: competitors found", "count", len(out.Competitors))
	return out.Competitors, nil
}

const styleSystemPrompt = `You are a brand voice analyst. Given text sampled from a company's website, describe its writing style.

Respond with only a JSON object: {"tone": "...", "formality": "casual"|"neutral"|"formal", "traits": ["...", "..."]}`

// StyleAnalysis is the stored shape of a writing-style result.
type StyleAnalysis struct {
	Tone      string   `json:"tone"`
	Formality string   `json:"formality"`
	Traits    []string `json:"traits,omitempty"`
}

// StyleHandler analyzes the writing style of crawled site text.
func (s *Suggester) StyleHandler(ctx context.Context, params map[string]interface{}, session *models.InterviewSession) (interface{}, error) {
	input := siteContext(params, session)
	if input == "" {
		return nil, fmt.Errorf("no site text available for style analysis")
	}
	var out StyleAnalysis
	if err := s.generateJSON(ctx, styleSystemPrompt, input, &out); err != nil {
		return nil, err
	}
	slog.Debug("Suggester: style analyzed", "tone", out.Tone)
	return out, nil
}

// generateJSON runs a chat completion and decodes the JSON object reply.
func (s *Suggester) generateJSON(ctx context.Context, systemPrompt, userInput string, out interface{}) error {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userInput),
	}
	content, err := s.client.GenerateWithMessages(ctx, messages)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	cleaned := content
	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("failed to parse generation output: %w", err)
	}
	return nil
}

// siteContext assembles the prompt input from the submitted value and any
// prior crawl result in external data.
func siteContext(params map[string]interface{}, session *models.InterviewSession) string {
	var b strings.Builder
	if url := paramString(params, "url"); url != "" {
		fmt.Fprintf(&b, "Website: %s\n", url)
	} else if url, ok := session.Responses[models.FieldKeyWebsiteURL].(string); ok && url != "" {
		fmt.Fprintf(&b, "Website: %s\n", url)
	}
	if crawl, ok := session.ExternalData[ActionCrawlWebsite]; ok {
		fmt.Fprintf(&b, "Crawled content: %s\n", stringifyValue(crawl))
	}
	return strings.TrimSpace(b.String())
}

func stringifyValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
