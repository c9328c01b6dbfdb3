package tracing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/config"
)

// instrumentationName prefixes every named tracer.
const instrumentationName = "github.com/hadijannat/Nano-Wasm-Edge-Connector"

// Tracer owns the tracer provider and hands out named tracers.
type Tracer struct {
	config   *config.TracingConfig
	provider trace.TracerProvider
	sdk      *sdktrace.TracerProvider
	enabled  bool
}

// Option configures a Tracer.
type Option func(*options)

type options struct {
	exporter sdktrace.SpanExporter
	syncer   bool
}

// WithExporter replaces the OTLP exporter. Spans are exported
// synchronously, which is what tests with an in-memory exporter want.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.exporter = exp
		o.syncer = true
	}
}

// New creates a new Tracer with the given configuration.
//
// If tracing is disabled in the config, a noop tracer is returned.
// The tracer must be shut down when no longer needed:
//
//	defer tracer.Shutdown(context.Background())
func New(cfg *config.TracingConfig, version string, opts ...Option) (*Tracer, error) {
	if cfg == nil {
		return nil, errors.New("tracing config is nil")
	}

	t := &Tracer{
		config:  cfg,
		enabled: cfg.Enabled,
	}

	if !cfg.Enabled {
		t.provider = noop.NewTracerProvider()
		return t, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sampler, err := createSampler(cfg.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}

	exporter := o.exporter
	if exporter == nil {
		exporter, err = createOTLPExporter(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create exporter: %w", err)
		}
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	export := sdktrace.WithBatcher(exporter)
	if o.syncer {
		export = sdktrace.WithSyncer(exporter)
	}

	t.sdk = sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	t.provider = t.sdk

	otel.SetTracerProvider(t.sdk)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return t, nil
}

// Tracer returns a tracer for one component, such as "sandbox" or "store".
func (t *Tracer) Tracer(component string) trace.Tracer {
	return t.provider.Tracer(instrumentationName + "/" + component)
}

// Start creates a span on the server tracer.
//
//	ctx, span := tracer.Start(ctx, "operation")
//	defer span.End()
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.Tracer("server").Start(ctx, name, opts...)
}

// Shutdown flushes any pending spans and shuts down the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.enabled || t.sdk == nil {
		return nil
	}
	return t.sdk.Shutdown(ctx)
}

// Enabled returns whether tracing is enabled.
func (t *Tracer) Enabled() bool {
	return t.enabled
}

// createSampler samples root spans by trace ID ratio and follows the
// parent's decision otherwise.
func createSampler(ratio float64) (sdktrace.Sampler, error) {
	if ratio < 0.0 || ratio > 1.0 {
		return nil, fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", ratio)
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
}

// createOTLPExporter creates an OTLP gRPC exporter.
func createOTLPExporter(cfg *config.TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}

	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTracingTimeout
	}
	opts = append(opts, otlptracegrpc.WithTimeout(timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	return exporter, nil
}

// SetError marks the span as failed and records the error.
func SetError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetAttributes(attribute.String("error.message", err.Error()))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the trace ID from the context as a string.
// Returns empty string if no trace context exists.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
