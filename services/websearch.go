package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"knowledge-assistant/internal/logger"
	"knowledge-assistant/models"
)

// WebFallbackDisclaimer prefixes rendered web results so the user knows
// the local corpus had no answer.
const WebFallbackDisclaimer = "I couldn't find this in my local data, but here's what the web says:"

// WebSearchService queries the DuckDuckGo HTML endpoint when local
// retrieval comes up empty. Best effort by contract: every failure
// degrades to an empty result set and the caller falls back to the
// canonical unknown response.
type WebSearchService struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	maxN     int
}

func NewWebSearchService(endpoint string, timeout time.Duration, maxResults int) *WebSearchService {
	if endpoint == "" {
		endpoint = "https://html.duckduckgo.com/html/"
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if maxResults <= 0 {
		maxResults = 3
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "WebSearch",
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && counts.TotalFailures*2 >= counts.Requests
		},
	})

	return &WebSearchService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker:  breaker,
		maxN:     maxResults,
	}
}

// Search returns up to n results for query, or nil on any failure.
func (ws *WebSearchService) Search(ctx context.Context, query string, n int) []models.WebResult {
	tracer := otel.Tracer("websearch")
	ctx, span := tracer.Start(ctx, "websearch.search")
	defer span.End()

	if n <= 0 || n > ws.maxN {
		n = ws.maxN
	}

	out, err := ws.breaker.Execute(func() (interface{}, error) {
		return ws.fetch(ctx, query, n)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("websearch.failed", true))
		logger.Warn("Web search fallback failed", "query", query, "error", err.Error())
		return nil
	}

	results := out.([]models.WebResult)
	span.SetAttributes(attribute.Int("websearch.results", len(results)))
	return results
}

func (ws *WebSearchService) fetch(ctx context.Context, query string, n int) ([]models.WebResult, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; knowledge-assistant/1.0)")

	resp, err := ws.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search provider returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	return parseResults(doc, n), nil
}

// parseResults walks DuckDuckGo's .result blocks and extracts title,
// snippet, and target URL.
func parseResults(doc *goquery.Document, n int) []models.WebResult {
	var results []models.WebResult
	doc.Find("div.result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		snippet := strings.TrimSpace(s.Find(".result__snippet").First().Text())

		if title == "" || href == "" {
			return true
		}
		results = append(results, models.WebResult{
			Title:   title,
			Snippet: snippet,
			URL:     resolveRedirect(href),
		})
		return len(results) < n
	})
	return results
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links to the
// target URL; unrecognized hrefs pass through unchanged.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

// Render formats results as a disclaimer plus a short bulleted list.
func (ws *WebSearchService) Render(results []models.WebResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(WebFallbackDisclaimer)
	for _, r := range results {
		b.WriteString("\n- ")
		b.WriteString(r.Title)
		if r.Snippet != "" {
			b.WriteString(": ")
			b.WriteString(r.Snippet)
		}
		if r.URL != "" {
			b.WriteString(" (")
			b.WriteString(r.URL)
			b.WriteString(")")
		}
	}
	return b.String()
}
