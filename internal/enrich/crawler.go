package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/intakeloop/intakeloop/internal/models"
)

// Crawl limits. The crawler fetches a single page; deep crawling belongs to
// a dedicated service, not the interview path.
const (
	crawlTimeout     = 15 * time.Second
	maxCrawlBodySize = 512 * 1024
)

var (
	titleRegex       = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	descriptionRegex = regexp.MustCompile(`(?is)<meta\s+name=["']description["']\s+content=["']([^"']*)["']`)
	tagRegex         = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
)

// CrawlResult is the shape stored in external data for a crawled site.
type CrawlResult struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	TextSample  string `json:"text_sample,omitempty"`
	StatusCode  int    `json:"status_code"`
	FetchedAt   string `json:"fetched_at"`
}

// Crawler fetches a site's homepage and extracts basic content.
type Crawler struct {
	client *resty.Client
}

// NewCrawler creates a crawler with sane timeouts and redirect handling.
func NewCrawler() *Crawler {
	client := resty.New().
		SetTimeout(crawlTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "intakeloop-crawler/1.0")
	return &Crawler{client: client}
}

// CrawlHandler adapts the crawler to the registry's Handler shape.
func (c *Crawler) CrawlHandler(ctx context.Context, params map[string]interface{}, _ *models.InterviewSession) (interface{}, error) {
	target := paramString(params, "url")
	if target == "" {
		return nil, fmt.Errorf("no url to crawl")
	}
	return c.Crawl(ctx, target)
}

// Crawl fetches the page and extracts title, meta description, and a text
// sample for downstream writing-style analysis.
func (c *Crawler) Crawl(ctx context.Context, target string) (*CrawlResult, error) {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	slog.Debug("Crawler: fetching", "url", target)
	resp, err := c.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("fetch of %s returned status %d", target, resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > maxCrawlBodySize {
		body = body[:maxCrawlBodySize]
	}
	html := string(body)

	result := &CrawlResult{
		URL:        target,
		StatusCode: resp.StatusCode(),
		FetchedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if m := titleRegex.FindStringSubmatch(html); len(m) > 1 {
		result.Title = cleanText(m[1])
	}
	if m := descriptionRegex.FindStringSubmatch(html); len(m) > 1 {
		result.Description = cleanText(m[1])
	}
	result.TextSample = textSample(html, 2000)

	slog.Debug("Crawler: fetched", "url", target, "status", result.StatusCode, "title", result.Title)
	return result, nil
}

// textSample strips markup and returns up to n characters of page text.
func textSample(html string, n int) string {
	text := tagRegex.ReplaceAllString(html, " ")
	text = cleanText(text)
	if len(text) > n {
		text = text[:n]
	}
	return text
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
