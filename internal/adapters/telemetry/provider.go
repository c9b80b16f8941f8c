package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/zerr"
)

// Setup installs a tracer provider that writes spans to w and returns a
// tracer bound to it. Shutdown on the returned tracer flushes the provider.
func Setup(name string, w io.Writer) (*OTelTracer, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrTracerSetupFailed.Error())
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	return &OTelTracer{
		tracer: provider.Tracer(name),
		shutdown: func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		},
	}, nil
}
