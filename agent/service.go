package agent

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/streamrelay/internal/ctxkeys"
	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/llm/providers"
	"github.com/BaSui01/streamrelay/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/BaSui01/streamrelay/agent"

// Recorder receives generation metrics. internal/metrics.Collector and
// internal/telemetry.GenerationMetrics implement it.
type Recorder interface {
	RecordGeneration(provider, model, status string, duration time.Duration)
	RecordRetry(provider string)
	RecordChunk(provider, kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordGeneration(string, string, string, time.Duration) {}
func (nopRecorder) RecordRetry(string)                                     {}
func (nopRecorder) RecordChunk(string, string)                             {}

// Recorders fans every event out to rs. Nil entries are skipped.
func Recorders(rs ...Recorder) Recorder {
	var out multiRecorder
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return nopRecorder{}
	case 1:
		return out[0]
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) RecordGeneration(provider, model, status string, d time.Duration) {
	for _, r := range m {
		r.RecordGeneration(provider, model, status, d)
	}
}

func (m multiRecorder) RecordRetry(provider string) {
	for _, r := range m {
		r.RecordRetry(provider)
	}
}

func (m multiRecorder) RecordChunk(provider, kind string) {
	for _, r := range m {
		r.RecordChunk(provider, kind)
	}
}

// ChatRequest names the task and thread of one chat turn. Input, when set,
// is appended as the newest user message without being stored.
type ChatRequest struct {
	Task     string `json:"task"`
	ThreadID string `json:"thread_id"`
	Input    string `json:"input,omitempty"`
}

// Service runs generations: assemble, route, retry, stream.
type Service struct {
	assembler *Assembler
	providers *llm.ProviderRegistry
	retry     providers.RetryConfig
	recorder  Recorder
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewService wires a Service. A nil recorder disables metrics.
func NewService(assembler *Assembler, registry *llm.ProviderRegistry, retry providers.RetryConfig, recorder Recorder, logger *zap.Logger) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		assembler: assembler,
		providers: registry,
		retry:     retry,
		recorder:  recorder,
		tracer:    otel.Tracer(tracerName),
		logger:    logger.With(zap.String("component", "chat_service")),
	}
}

// WithTracer replaces the tracer generation spans are started on.
func (s *Service) WithTracer(tracer trace.Tracer) *Service {
	if tracer != nil {
		s.tracer = tracer
	}
	return s
}

// Stream starts one generation. Orchestration errors (unknown task or tool,
// no provider for the model) are returned directly; everything the provider
// reports arrives as a terminal chunk.
func (s *Service) Stream(ctx context.Context, req ChatRequest) (<-chan llm.StreamChunk, error) {
	payload, err := s.assembler.Assemble(ctx, req.Task, req.ThreadID)
	if err != nil {
		return nil, err
	}
	genReq := payload.Request()
	if req.Input != "" {
		genReq.Messages = append(genReq.Messages, types.NewUserMessage(req.Input))
	}

	provider, model, err := s.providers.Resolve(payload.ModelID)
	if err != nil {
		return nil, err
	}
	genReq.Model = model

	ctx, span := s.tracer.Start(ctx, "generation", trace.WithAttributes(
		attribute.String("task", payload.Task),
		attribute.String("thread_id", req.ThreadID),
		attribute.String("provider", provider.Name()),
		attribute.String("model", model),
		attribute.Int("tools", len(genReq.Tools)),
	))

	logger := s.logger.With(requestFields(ctx, req)...)
	wrapped := providers.NewRetryableProvider(provider, s.retry, logger).
		WithObserver(func(name string, attempt int, err error) {
			s.recorder.RecordRetry(name)
			span.AddEvent("retry", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.String("error", err.Error()),
			))
		})

	start := time.Now()
	upstream, err := wrapped.GenerateResponse(ctx, genReq)
	if err != nil {
		s.finish(logger, span, provider.Name(), model, start, err)
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		var failure error
		for chunk := range upstream {
			if chunk.Err != nil {
				failure = chunk.Err
			} else {
				kind := "text"
				if chunk.IsToolCall() {
					kind = "tool_call"
				}
				s.recorder.RecordChunk(provider.Name(), kind)
			}
			if !llm.Send(ctx, out, chunk) {
				// drain so the wrapper goroutine can exit
				for range upstream {
				}
				failure = ctx.Err()
				break
			}
		}
		if failure == nil && ctx.Err() != nil {
			failure = ctx.Err()
		}
		s.finish(logger, span, provider.Name(), model, start, failure)
	}()
	return out, nil
}

func (s *Service) finish(logger *zap.Logger, span trace.Span, provider, model string, start time.Time, err error) {
	defer span.End()
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = "cancelled"
	default:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("generation failed",
			zap.String("provider", provider),
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Error(err))
	}
	s.recorder.RecordGeneration(provider, model, status, time.Since(start))
}

func requestFields(ctx context.Context, req ChatRequest) []zap.Field {
	fields := []zap.Field{zap.String("thread_id", req.ThreadID)}
	if id, ok := ctxkeys.RequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", id))
	}
	return fields
}
