// Package trace owns the process tracer. Every decorator in the repo opens
// its spans through StartSpan so tracing can be switched off in one place.
package trace

import (
	"context"
	"io"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "investor-agent"

var (
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	enabled  bool
	sink     io.Closer
)

type settings struct {
	version string
	writer  io.Writer
	ratio   float64
}

type Option func(*settings)

// WithVersion stamps service.version on every span.
func WithVersion(v string) Option {
	return func(s *settings) { s.version = v }
}

// WithWriter sends spans to w instead of stdout. TRACE_FILE still wins.
func WithWriter(w io.Writer) Option {
	return func(s *settings) { s.writer = w }
}

// Init installs the span exporter unless LOG_TRACING_ENABLED is "false".
// TRACE_FILE appends spans to a file and TRACE_SAMPLE_RATIO (0 to 1) keeps
// only a share of root spans.
func Init(opts ...Option) error {
	enabled = os.Getenv("LOG_TRACING_ENABLED") != "false"
	if !enabled {
		return nil
	}

	s := settings{version: "dev", writer: os.Stdout, ratio: 1}
	for _, opt := range opts {
		opt(&s)
	}
	if r, err := strconv.ParseFloat(os.Getenv("TRACE_SAMPLE_RATIO"), 64); err == nil && r >= 0 && r <= 1 {
		s.ratio = r
	}
	if path := os.Getenv("TRACE_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		s.writer, sink = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(s.writer), stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName), semconv.ServiceVersion(s.version)),
	)
	if err != nil {
		return err
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.ratio))),
	)
	otel.SetTracerProvider(provider)
	tracer = provider.Tracer(serviceName)
	return nil
}

// Shutdown flushes pending spans and closes TRACE_FILE.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	err := provider.Shutdown(ctx)
	provider, tracer = nil, nil
	if sink != nil {
		_ = sink.Close()
		sink = nil
	}
	return err
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

func Enabled() bool {
	return enabled
}

// GetTraceFields returns the ids of the span in ctx, if any.
func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
