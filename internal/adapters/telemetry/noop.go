package telemetry

import (
	"context"

	"go.trai.ch/requery/internal/core/ports"
)

// NoopTracer is a ports.Tracer that records nothing. It is the default for
// callers that configure no tracer.
type NoopTracer struct{}

// NewNoop creates a no-op tracer.
func NewNoop() ports.Tracer {
	return NoopTracer{}
}

// Start implements ports.Tracer.
func (NoopTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, NoopSpan{}
}

// Shutdown implements ports.Tracer.
func (NoopTracer) Shutdown(context.Context) error { return nil }

// NoopSpan is the span returned by NoopTracer.
type NoopSpan struct{}

// End implements ports.Span.
func (NoopSpan) End() {}

// RecordError implements ports.Span.
func (NoopSpan) RecordError(error) {}

// SetAttribute implements ports.Span.
func (NoopSpan) SetAttribute(string, any) {}
