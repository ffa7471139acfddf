package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"knowledge-assistant/internal/logger"
	"knowledge-assistant/internal/telemetry"
	"knowledge-assistant/models"
)

const promptTemplate = `Answer only from these snippets. If you don't know, say "I don't know."
Respond in a %s tone.

SNIPPETS:
%s

QUESTION:
%s

ANSWER:
`

// Retriever finds relevant chunks for a question. Satisfied by
// RetrievalService.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]models.ScoredChunk, error)
}

// Generator produces text from a prompt. Satisfied by ai.GeminiClient.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// WebSearcher is the best-effort fallback provider. Satisfied by
// WebSearchService.
type WebSearcher interface {
	Search(ctx context.Context, query string, n int) []models.WebResult
	Render(results []models.WebResult) string
}

// AssistantService is the top-level entry point. Answer composes rate
// limiting, sanitization, intent classification, retrieval, web
// fallback, generation, and post-processing into one call that never
// returns an error: every failure maps to a canned response plus a
// FailureKind carried on the Result for logging and metrics.
type AssistantService struct {
	limiter   *RateLimiter
	intents   *IntentService
	retriever Retriever
	searcher  WebSearcher
	generator Generator
	post      *PostProcessor
	metrics   *telemetry.Metrics

	topK       int
	tone       string
	genTimeout time.Duration
}

func NewAssistantService(
	limiter *RateLimiter,
	intents *IntentService,
	retriever Retriever,
	searcher WebSearcher,
	generator Generator,
	post *PostProcessor,
	metrics *telemetry.Metrics,
	topK int,
	tone string,
	genTimeout time.Duration,
) *AssistantService {
	if topK <= 0 {
		topK = 5
	}
	if tone == "" {
		tone = "friendly and concise"
	}
	if genTimeout <= 0 {
		genTimeout = 30 * time.Second
	}
	return &AssistantService{
		limiter:    limiter,
		intents:    intents,
		retriever:  retriever,
		searcher:   searcher,
		generator:  generator,
		post:       post,
		metrics:    metrics,
		topK:       topK,
		tone:       tone,
		genTimeout: genTimeout,
	}
}

// Answer processes one question for one user.
func (as *AssistantService) Answer(ctx context.Context, question, userID string) models.Result {
	tracer := otel.Tracer("assistant")
	ctx, span := tracer.Start(ctx, "assistant.answer")
	defer span.End()

	result := as.answer(ctx, question, userID)

	span.SetAttributes(
		attribute.String("assistant.intent", result.Intent.String()),
		attribute.String("assistant.failure", string(result.Kind)),
	)
	as.metrics.CountAnswer(ctx, result.Intent.String())
	if result.Failed() {
		as.metrics.CountFailure(ctx, string(result.Kind))
		logger.Warn("Recovered failure",
			"kind", string(result.Kind),
			"user_id", userID,
			"question", question)
	}
	return result
}

func (as *AssistantService) answer(ctx context.Context, question, userID string) models.Result {
	sanitized, err := as.post.Sanitize(question)
	if err != nil {
		return models.Result{Answer: ResponseInvalidInput, Kind: models.FailureInvalidInput}
	}

	if !as.limiter.Allow(userID) {
		return models.Result{Answer: ResponseRateLimited, Kind: models.FailureRateLimited}
	}

	intent := as.intents.Classify(sanitized)
	if !intent.NeedsRetrieval() {
		return models.Result{Answer: as.intents.Respond(intent), Intent: intent}
	}

	start := time.Now()
	chunks, err := as.retriever.Retrieve(ctx, sanitized, as.topK)
	if as.metrics != nil {
		as.metrics.RetrievalDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		logger.Error("Retrieval failed", "user_id", userID, "error", err.Error())
		if answer, ok := as.webFallback(ctx, sanitized); ok {
			return models.Result{Answer: answer, Intent: intent, Kind: models.FailureRetrievalUnavailable}
		}
		return models.Result{Answer: ResponseUnknown, Intent: intent, Kind: models.FailureRetrievalUnavailable}
	}
	if len(chunks) == 0 {
		if answer, ok := as.webFallback(ctx, sanitized); ok {
			return models.Result{Answer: answer, Intent: intent}
		}
		return models.Result{Answer: ResponseUnknown, Intent: intent, Kind: models.FailureFallbackUnavailable}
	}

	prompt := as.buildPrompt(chunks, sanitized)

	genCtx, cancel := context.WithTimeout(ctx, as.genTimeout)
	defer cancel()
	start = time.Now()
	raw, err := as.generator.Generate(genCtx, prompt)
	if as.metrics != nil {
		as.metrics.GenerationTime.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		logger.Error("Generation failed", "user_id", userID, "error", err.Error())
		return models.Result{Answer: ResponseError, Intent: intent, Kind: models.FailureGenerationFailure}
	}

	if as.post.IsHallucinatedUnknown(raw) {
		return models.Result{Answer: ResponseUnknown, Intent: intent, Sources: sources(chunks)}
	}
	return models.Result{
		Answer:  as.post.TruncateSentences(raw),
		Intent:  intent,
		Sources: sources(chunks),
	}
}

// AnswerAsync runs Answer off the calling goroutine and delivers the
// result on the returned channel. The channel is buffered so an
// abandoned caller never leaks the worker.
func (as *AssistantService) AnswerAsync(ctx context.Context, question, userID string) <-chan models.Result {
	out := make(chan models.Result, 1)
	go func() {
		out <- as.Answer(ctx, question, userID)
		close(out)
	}()
	return out
}

// webFallback runs the best-effort web search and renders its results.
// False when the fallback produced nothing usable.
func (as *AssistantService) webFallback(ctx context.Context, query string) (string, bool) {
	if as.searcher == nil {
		return "", false
	}
	if as.metrics != nil {
		as.metrics.WebFallbacks.Add(ctx, 1)
	}
	results := as.searcher.Search(ctx, query, 0)
	if len(results) == 0 {
		return "", false
	}
	return as.searcher.Render(results), true
}

// buildPrompt joins chunk contents with blank-line separators, each
// prefixed by its source when known.
func (as *AssistantService) buildPrompt(chunks []models.ScoredChunk, question string) string {
	snippets := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		if ch.Source != "" {
			snippets = append(snippets, fmt.Sprintf("[%s] %s", ch.Source, ch.Text))
		} else {
			snippets = append(snippets, ch.Text)
		}
	}
	return fmt.Sprintf(promptTemplate, as.tone, strings.Join(snippets, "\n\n"), question)
}

func sources(chunks []models.ScoredChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	var out []string
	for _, ch := range chunks {
		if ch.Source == "" {
			continue
		}
		if _, ok := seen[ch.Source]; ok {
			continue
		}
		seen[ch.Source] = struct{}{}
		out = append(out, ch.Source)
	}
	return out
}
