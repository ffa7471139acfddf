package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"knowledge-assistant/models"
)

type fakeGenerator struct {
	calls  int
	answer string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeRetriever struct {
	calls  int
	chunks []models.ScoredChunk
	err    error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, question string, k int) ([]models.ScoredChunk, error) {
	f.calls++
	return f.chunks, f.err
}

type fakeSearcher struct {
	calls   int
	results []models.WebResult
}

func (f *fakeSearcher) Search(ctx context.Context, query string, n int) []models.WebResult {
	f.calls++
	return f.results
}

func (f *fakeSearcher) Render(results []models.WebResult) string {
	return WebFallbackDisclaimer + "\n- " + results[0].Title
}

type assistantFixture struct {
	svc       *AssistantService
	retriever *fakeRetriever
	generator *fakeGenerator
	searcher  *fakeSearcher
	limiter   *RateLimiter
}

func newAssistantFixture(retriever *fakeRetriever, generator *fakeGenerator, searcher *fakeSearcher) *assistantFixture {
	limiter, _ := newTestLimiter(10, time.Minute)
	svc := NewAssistantService(
		limiter,
		NewIntentService(),
		retriever,
		searcher,
		generator,
		NewPostProcessor(500),
		nil,
		5,
		"friendly and concise",
		5*time.Second,
	)
	return &assistantFixture{
		svc:       svc,
		retriever: retriever,
		generator: generator,
		searcher:  searcher,
		limiter:   limiter,
	}
}

func TestAnswerGreetingSkipsGeneration(t *testing.T) {
	fx := newAssistantFixture(&fakeRetriever{}, &fakeGenerator{answer: "unused"}, &fakeSearcher{})

	res := fx.svc.Answer(context.Background(), "hello", "user-1")

	pool := make(map[string]bool)
	for _, r := range GreetingPool() {
		pool[r] = true
	}
	if !pool[res.Answer] {
		t.Errorf("answer %q not in the greeting pool", res.Answer)
	}
	if res.Failed() {
		t.Errorf("greeting should not be a failure, kind = %s", res.Kind)
	}
	if fx.generator.calls != 0 {
		t.Errorf("generation invoked %d times for a greeting", fx.generator.calls)
	}
	if fx.retriever.calls != 0 {
		t.Errorf("retrieval invoked %d times for a greeting", fx.retriever.calls)
	}
}

func TestAnswerFactualQuestion(t *testing.T) {
	retriever := &fakeRetriever{chunks: []models.ScoredChunk{
		{Chunk: models.Chunk{Text: "Refunds are accepted within 30 days.", Source: "faq.csv"}, Score: 0.8},
	}}
	generator := &fakeGenerator{answer: "Refunds are accepted within 30 days. Bring your receipt. Some exclusions apply."}
	fx := newAssistantFixture(retriever, generator, &fakeSearcher{})

	res := fx.svc.Answer(context.Background(), "what is the refund policy", "user-1")

	if res.Failed() {
		t.Fatalf("unexpected failure kind %s", res.Kind)
	}
	if res.Answer != "Refunds are accepted within 30 days. Bring your receipt." {
		t.Errorf("answer not truncated to two sentences: %q", res.Answer)
	}
	if res.Intent != models.IntentFactualQuestion {
		t.Errorf("intent = %s, want factual_question", res.Intent)
	}
	if len(res.Sources) != 1 || res.Sources[0] != "faq.csv" {
		t.Errorf("sources = %v, want [faq.csv]", res.Sources)
	}
}

func TestAnswerEmptyQuestion(t *testing.T) {
	fx := newAssistantFixture(&fakeRetriever{}, &fakeGenerator{}, &fakeSearcher{})

	res := fx.svc.Answer(context.Background(), "", "user-1")
	if res.Kind != models.FailureInvalidInput {
		t.Fatalf("kind = %s, want invalid_input", res.Kind)
	}
	if res.Answer != ResponseInvalidInput {
		t.Errorf("answer = %q, want the invalid-input canned response", res.Answer)
	}
}

func TestAnswerRateLimit(t *testing.T) {
	fx := newAssistantFixture(&fakeRetriever{chunks: []models.ScoredChunk{
		{Chunk: models.Chunk{Text: "x"}, Score: 0.9},
	}}, &fakeGenerator{answer: "Fine."}, &fakeSearcher{})

	for i := 0; i < 10; i++ {
		res := fx.svc.Answer(context.Background(), "what about returns", "user-1")
		if res.Kind == models.FailureRateLimited {
			t.Fatalf("call %d limited too early", i+1)
		}
	}
	res := fx.svc.Answer(context.Background(), "what about returns", "user-1")
	if res.Kind != models.FailureRateLimited {
		t.Fatalf("11th rapid call kind = %s, want rate_limited", res.Kind)
	}
	if res.Answer != ResponseRateLimited {
		t.Errorf("answer = %q, want the rate-limit canned response", res.Answer)
	}
}

func TestAnswerHallucinatedUnknownOverride(t *testing.T) {
	retriever := &fakeRetriever{chunks: []models.ScoredChunk{
		{Chunk: models.Chunk{Text: "irrelevant"}, Score: 0.7},
	}}
	generator := &fakeGenerator{answer: "I'm sorry, I could not find that in the snippets provided."}
	fx := newAssistantFixture(retriever, generator, &fakeSearcher{})

	res := fx.svc.Answer(context.Background(), "what is the meaning of life", "user-1")
	if res.Answer != ResponseUnknown {
		t.Errorf("answer = %q, want the canonical unknown response", res.Answer)
	}
	if res.Failed() {
		t.Errorf("hallucination override is not a failure, kind = %s", res.Kind)
	}
}

func TestAnswerWebFallbackOnEmptyRetrieval(t *testing.T) {
	searcher := &fakeSearcher{results: []models.WebResult{{Title: "Web answer", URL: "https://example.com"}}}
	fx := newAssistantFixture(&fakeRetriever{}, &fakeGenerator{}, searcher)

	res := fx.svc.Answer(context.Background(), "something obscure nobody indexed", "user-1")
	if !strings.HasPrefix(res.Answer, WebFallbackDisclaimer) {
		t.Errorf("answer should carry the web disclaimer, got %q", res.Answer)
	}
	if res.Failed() {
		t.Errorf("successful fallback is not a failure, kind = %s", res.Kind)
	}
	if fx.generator.calls != 0 {
		t.Errorf("generation invoked %d times on the fallback path", fx.generator.calls)
	}
}

func TestAnswerUnknownWhenFallbackEmpty(t *testing.T) {
	fx := newAssistantFixture(&fakeRetriever{}, &fakeGenerator{}, &fakeSearcher{})

	res := fx.svc.Answer(context.Background(), "something obscure nobody indexed", "user-1")
	if res.Answer != ResponseUnknown {
		t.Errorf("answer = %q, want unknown", res.Answer)
	}
	if res.Kind != models.FailureFallbackUnavailable {
		t.Errorf("kind = %s, want fallback_unavailable", res.Kind)
	}
}

func TestAnswerRetrievalErrorFallsBack(t *testing.T) {
	searcher := &fakeSearcher{results: []models.WebResult{{Title: "Web answer"}}}
	fx := newAssistantFixture(&fakeRetriever{err: errors.New("index down")}, &fakeGenerator{}, searcher)

	res := fx.svc.Answer(context.Background(), "tell me about shipping", "user-1")
	if res.Kind != models.FailureRetrievalUnavailable {
		t.Fatalf("kind = %s, want retrieval_unavailable", res.Kind)
	}
	if !strings.HasPrefix(res.Answer, WebFallbackDisclaimer) {
		t.Errorf("answer should come from the web fallback, got %q", res.Answer)
	}
}

func TestAnswerGenerationFailure(t *testing.T) {
	retriever := &fakeRetriever{chunks: []models.ScoredChunk{
		{Chunk: models.Chunk{Text: "x"}, Score: 0.9},
	}}
	fx := newAssistantFixture(retriever, &fakeGenerator{err: errors.New("model timeout")}, &fakeSearcher{})

	res := fx.svc.Answer(context.Background(), "tell me about shipping", "user-1")
	if res.Kind != models.FailureGenerationFailure {
		t.Fatalf("kind = %s, want generation_failure", res.Kind)
	}
	if res.Answer != ResponseError {
		t.Errorf("answer = %q, want the canonical error response", res.Answer)
	}
}

func TestAnswerPromptAssembly(t *testing.T) {
	retriever := &fakeRetriever{chunks: []models.ScoredChunk{
		{Chunk: models.Chunk{Text: "First snippet.", Source: "a.csv"}, Score: 0.9},
		{Chunk: models.Chunk{Text: "Second snippet.", Source: "b.pdf"}, Score: 0.8},
	}}
	var captured string
	generator := &fakeGenerator{answer: "Answer."}
	fx := newAssistantFixture(retriever, generator, &fakeSearcher{})
	fx.svc.generator = generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		captured = prompt
		return "Answer.", nil
	})

	fx.svc.Answer(context.Background(), "what do the snippets say", "user-1")

	for _, want := range []string{
		`say "I don't know."`,
		"friendly and concise",
		"[a.csv] First snippet.\n\n[b.pdf] Second snippet.",
		"QUESTION:\nwhat do the snippets say",
		"ANSWER:",
	} {
		if !strings.Contains(captured, want) {
			t.Errorf("prompt missing %q:\n%s", want, captured)
		}
	}
}

func TestAnswerAsync(t *testing.T) {
	fx := newAssistantFixture(&fakeRetriever{}, &fakeGenerator{}, &fakeSearcher{})

	select {
	case res := <-fx.svc.AnswerAsync(context.Background(), "bye", "user-1"):
		if res.Answer != ResponseFarewell {
			t.Errorf("answer = %q, want farewell", res.Answer)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AnswerAsync did not deliver a result")
	}
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
