package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// ErrGenerationUnavailable is returned when the model cannot be reached
// (circuit open, provider error, timeout). Callers map it to the canned
// error response; it never reaches the end user as-is.
var ErrGenerationUnavailable = errors.New("generation model unavailable")

type GeminiClient struct {
	apiKey       string
	model        string
	embedModel   string
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
	client       *genai.Client
	tier         string

	// genSlots caps concurrent generation calls; the model is the
	// throughput bottleneck for the whole pipeline.
	genSlots chan struct{}
}

type TokenCounter struct {
	mu              sync.Mutex
	minuteTokens    int
	minuteRequests  int
	lastMinuteReset time.Time
	limits          RateLimits
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
}

// Options configures the client beyond the API key.
type Options struct {
	Model       string
	EmbedModel  string
	Tier        string
	Concurrency int
}

func NewGeminiClient(apiKey string, opts Options) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = "text-embedding-004"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	// Configure rate limits based on tier
	limits := getRateLimits(opts.Tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	return &GeminiClient{
		apiKey:       apiKey,
		model:        opts.Model,
		embedModel:   opts.EmbedModel,
		breaker:      breaker,
		rateLimiter:  rateLimiter,
		tokenCounter: &TokenCounter{limits: limits},
		client:       client,
		tier:         opts.Tier,
		genSlots:     make(chan struct{}, opts.Concurrency),
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000}
	default:
		return RateLimits{RPM: 10, TPM: 250000}
	}
}

// Generate sends the fully assembled prompt to the generation model and
// returns the plain text of the first candidate. The call is bounded by
// ctx, the per-minute limits, the circuit breaker, and the concurrency
// slots; a canceled ctx frees the slot without blocking.
func (gc *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate")
	defer span.End()

	// Acquire a generation slot or give up with the caller's deadline.
	select {
	case gc.genSlots <- struct{}{}:
		defer func() { <-gc.genSlots }()
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, ctx.Err())
	}

	// Estimate tokens BEFORE making request
	estimatedTokens := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", gc.model),
	)

	if !gc.tokenCounter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", fmt.Errorf("%w: provider minute budget exhausted", ErrGenerationUnavailable)
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(0.0)
		model.SetMaxOutputTokens(1024)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			return nil, err
		}

		// Get ACTUAL token usage from response
		gc.tokenCounter.RecordUsage(extractTokenUsage(resp), 1)
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	text := extractText(result.(*genai.GenerateContentResponse))
	if text == "" {
		return "", fmt.Errorf("%w: empty candidate", ErrGenerationUnavailable)
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return text, nil
}

// Embed returns the embedding vector for text. Deterministic for
// identical input; failures propagate so the caller can treat them as a
// cache miss that could not be satisfied. Bulk ingestion makes this the
// highest-volume provider call, so it shares the per-minute limits and
// circuit breaker with Generate.
func (gc *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.embed")
	defer span.End()

	estimatedTokens := estimateTokens(text)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", gc.embedModel),
	)

	if !gc.tokenCounter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, fmt.Errorf("embedding rejected: provider minute budget exhausted")
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.EmbeddingModel(gc.embedModel)
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			return nil, err
		}

		gc.tokenCounter.RecordUsage(estimatedTokens, 1)
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		return nil, err
	}

	resp := result.(*genai.EmbedContentResponse)
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding returned for text of length %d", len(text))
	}

	return resp.Embedding.Values, nil
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
}

// Rough estimation: 1 token ≈ 4 characters for Gemini.
func estimateTokens(prompt string) int {
	estimated := len(prompt) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

// Extract token usage from Gemini response
func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	return estimateTokens(extractText(resp))
}

func extractText(resp *genai.GenerateContentResponse) string {
	totalText := ""
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					totalText += string(text)
				}
			}
		}
	}
	return totalText
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
