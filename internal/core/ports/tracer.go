package ports

import "context"

// SpanConfig holds configuration applied when starting a span.
type SpanConfig struct {
	// Attributes are set on the span at start time.
	Attributes map[string]any
}

// SpanOption configures a span at start time.
type SpanOption func(*SpanConfig)

// WithAttribute sets an attribute on the span at start time.
func WithAttribute(key string, value any) SpanOption {
	return func(cfg *SpanConfig) {
		if cfg.Attributes == nil {
			cfg.Attributes = make(map[string]any)
		}
		cfg.Attributes[key] = value
	}
}

// Span represents a single traced operation.
type Span interface {
	// End completes the span.
	End()

	// RecordError records an error against the span.
	RecordError(err error)

	// SetAttribute sets a single attribute on the span.
	SetAttribute(key string, value any)
}

// Tracer creates spans around cache operations.
//
//go:generate mockgen -source=tracer.go -destination=mocks/mock_tracer.go -package=mocks
type Tracer interface {
	// Start creates a new span as a child of the span in ctx, if any.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// Shutdown flushes and releases tracer resources.
	Shutdown(ctx context.Context) error
}
