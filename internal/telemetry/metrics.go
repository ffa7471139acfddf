package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	AnswersTotal      metric.Int64Counter
	RecoveredFailures metric.Int64Counter
	RetrievalDuration metric.Float64Histogram
	GenerationTime    metric.Float64Histogram
	WebFallbacks      metric.Int64Counter
	CacheHits         metric.Int64Counter
	ChunksIndexed     metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("knowledge-assistant")

	answersTotal, err := meter.Int64Counter(
		"assistant.answers.total",
		metric.WithDescription("Total answered questions, labeled by intent"),
	)
	if err != nil {
		return nil, err
	}

	recoveredFailures, err := meter.Int64Counter(
		"assistant.failures.recovered",
		metric.WithDescription("Recovered failures, labeled by taxonomy kind"),
	)
	if err != nil {
		return nil, err
	}

	retrievalDuration, err := meter.Float64Histogram(
		"retrieval.duration",
		metric.WithDescription("Similarity retrieval duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	generationTime, err := meter.Float64Histogram(
		"generation.duration",
		metric.WithDescription("Generation model call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	webFallbacks, err := meter.Int64Counter(
		"websearch.fallbacks.total",
		metric.WithDescription("Web-search fallback invocations"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"cache.hits.total",
		metric.WithDescription("Cache hits, labeled by cache name"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"ingestion.chunks.indexed",
		metric.WithDescription("Chunks upserted into the vector index"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		AnswersTotal:      answersTotal,
		RecoveredFailures: recoveredFailures,
		RetrievalDuration: retrievalDuration,
		GenerationTime:    generationTime,
		WebFallbacks:      webFallbacks,
		CacheHits:         cacheHits,
		ChunksIndexed:     chunksIndexed,
	}, nil
}

// CountAnswer records one answered question. Safe on a nil receiver so
// callers without telemetry wired can pass nil.
func (m *Metrics) CountAnswer(ctx context.Context, intent string) {
	if m == nil {
		return
	}
	m.AnswersTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intent)))
}

// CountFailure records one recovered failure by taxonomy kind.
func (m *Metrics) CountFailure(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.RecoveredFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// CountCacheHit records a hit on the named cache.
func (m *Metrics) CountCacheHit(ctx context.Context, cache string) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", cache)))
}
