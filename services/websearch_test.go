package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"knowledge-assistant/models"
)

const searchResultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Frefunds">Refund policies explained</a>
  <div class="result__snippet">Most stores allow returns within 30 days.</div>
</div>
<div class="result">
  <a class="result__a" href="https://example.org/warranty">Warranty basics</a>
  <div class="result__snippet">What a warranty covers.</div>
</div>
<div class="result">
  <a class="result__a" href="https://example.net/third">Third result</a>
  <div class="result__snippet">Extra.</div>
</div>
</body></html>`

func TestSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.FormValue("q") == "" {
			http.Error(w, "missing query", http.StatusBadRequest)
			return
		}
		w.Write([]byte(searchResultsPage))
	}))
	defer srv.Close()

	ws := NewWebSearchService(srv.URL, 2*time.Second, 3)
	results := ws.Search(context.Background(), "refund policy", 2)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Refund policies explained" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].URL != "https://example.com/refunds" {
		t.Errorf("redirect not unwrapped, url = %q", results[0].URL)
	}
	if results[1].URL != "https://example.org/warranty" {
		t.Errorf("plain url mangled, got %q", results[1].URL)
	}
}

func TestSearchFailureReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ws := NewWebSearchService(srv.URL, time.Second, 3)
	if results := ws.Search(context.Background(), "anything", 3); results != nil {
		t.Fatalf("provider error should yield nil, got %v", results)
	}
}

func TestSearchUnreachableProvider(t *testing.T) {
	ws := NewWebSearchService("http://127.0.0.1:1", time.Second, 3)
	if results := ws.Search(context.Background(), "anything", 3); results != nil {
		t.Fatalf("network error should yield nil, got %v", results)
	}
}

func TestRenderResults(t *testing.T) {
	ws := NewWebSearchService("", time.Second, 3)

	if got := ws.Render(nil); got != "" {
		t.Fatalf("Render(nil) = %q, want empty", got)
	}

	out := ws.Render([]models.WebResult{
		{Title: "Refunds", Snippet: "30 days.", URL: "https://example.com"},
		{Title: "Warranty", Snippet: "", URL: "https://example.org"},
	})
	if !strings.HasPrefix(out, WebFallbackDisclaimer) {
		t.Errorf("rendering must open with the disclaimer, got %q", out)
	}
	if !strings.Contains(out, "- Refunds: 30 days. (https://example.com)") {
		t.Errorf("missing first bullet in %q", out)
	}
	if !strings.Contains(out, "- Warranty (https://example.org)") {
		t.Errorf("missing snippetless bullet in %q", out)
	}
}
