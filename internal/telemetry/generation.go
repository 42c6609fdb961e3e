package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	generationDurationName = "streamrelay.generation.duration"
	generationRetriesName  = "streamrelay.generation.retries"
	generationChunksName   = "streamrelay.generation.chunks"
)

// Generations run from sub-second tool calls to multi-minute streams.
var generationBuckets = []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

// GenerationMetrics records generations as OTel instruments. Its method set
// matches the recorder the chat service reports to.
type GenerationMetrics struct {
	duration metric.Float64Histogram
	retries  metric.Int64Counter
	chunks   metric.Int64Counter
}

// NewGenerationMetrics creates the instruments on meter.
func NewGenerationMetrics(meter metric.Meter) (*GenerationMetrics, error) {
	duration, err := meter.Float64Histogram(generationDurationName,
		metric.WithDescription("Duration of a generation, retries included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(generationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", generationDurationName, err)
	}
	retries, err := meter.Int64Counter(generationRetriesName,
		metric.WithDescription("Generation attempts discarded and retried"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", generationRetriesName, err)
	}
	chunks, err := meter.Int64Counter(generationChunksName,
		metric.WithDescription("Chunks delivered to callers"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", generationChunksName, err)
	}
	return &GenerationMetrics{duration: duration, retries: retries, chunks: chunks}, nil
}

func (g *GenerationMetrics) RecordGeneration(provider, model, status string, duration time.Duration) {
	g.duration.Record(context.Background(), duration.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.String("status", status),
	))
}

func (g *GenerationMetrics) RecordRetry(provider string) {
	g.retries.Add(context.Background(), 1, metric.WithAttributes(attribute.String("provider", provider)))
}

func (g *GenerationMetrics) RecordChunk(provider, kind string) {
	g.chunks.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}
