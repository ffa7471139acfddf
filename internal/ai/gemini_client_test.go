package ai

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/time/rate"
)

func TestTokenCounterBudget(t *testing.T) {
	tc := &TokenCounter{limits: RateLimits{RPM: 2, TPM: 100}}

	if !tc.CanConsume(50, 1) {
		t.Fatal("first request within budget should be allowed")
	}
	tc.RecordUsage(50, 1)

	if !tc.CanConsume(50, 1) {
		t.Fatal("second request exactly at budget should be allowed")
	}
	tc.RecordUsage(50, 1)

	if tc.CanConsume(1, 1) {
		t.Fatal("request over the per-minute budget should be rejected")
	}
}

// Embed must refuse before touching the provider once the per-minute
// budget is spent; a nil underlying client panics if the call leaks
// through.
func TestEmbedRejectsWhenBudgetExhausted(t *testing.T) {
	gc := &GeminiClient{
		embedModel:   "text-embedding-004",
		rateLimiter:  rate.NewLimiter(rate.Inf, 1),
		tokenCounter: &TokenCounter{limits: RateLimits{RPM: 0, TPM: 0}},
	}

	vec, err := gc.Embed(context.Background(), "some chunk text")
	if err == nil {
		t.Fatal("expected an error once the minute budget is exhausted")
	}
	if !strings.Contains(err.Error(), "minute budget exhausted") {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec != nil {
		t.Fatalf("expected no vector, got %v", vec)
	}
}

func TestEmbedStopsOnRateLimiterError(t *testing.T) {
	gc := &GeminiClient{
		embedModel:   "text-embedding-004",
		rateLimiter:  rate.NewLimiter(0, 0), // zero burst, Wait always errors
		tokenCounter: &TokenCounter{limits: RateLimits{RPM: 100, TPM: 100000}},
	}

	if _, err := gc.Embed(context.Background(), "some chunk text"); err == nil {
		t.Fatal("expected the rate limiter error to propagate")
	}
}
