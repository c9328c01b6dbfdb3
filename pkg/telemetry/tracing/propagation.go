package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Extract extracts W3C trace context from HTTP headers.
// If no trace context is found in the headers, ctx is returned unchanged.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject writes the trace context of ctx into HTTP headers.
func Inject(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// HTTPMiddleware extracts trace context from incoming requests and echoes
// the trace ID in the X-Trace-ID response header.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := Extract(r.Context(), r.Header)

		if id := TraceID(ctx); id != "" {
			w.Header().Set("X-Trace-ID", id)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
