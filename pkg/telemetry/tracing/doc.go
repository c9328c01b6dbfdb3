// Package tracing provides OpenTelemetry tracing for the edge connector.
//
// When tracing is disabled the tracer is a noop and spans cost next to
// nothing. When enabled, spans are batched to an OTLP gRPC collector and
// sampled by trace ID ratio, honoring the parent's decision when the
// request carries a W3C traceparent header.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	engine, err := sandbox.NewEngine(ctx, limits, logger,
//	    sandbox.WithTracer(tracer.Tracer("sandbox")))
//
// Span names: sandbox.evaluate, store.reload, and one server span per
// HTTP route.
package tracing
