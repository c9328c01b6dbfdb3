package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/telemetry/logging"
)

const (
	// RequestIDHeader is the HTTP header for request ID.
	RequestIDHeader = "X-Request-ID"

	// maxRequestIDLength bounds client supplied IDs before they reach logs.
	maxRequestIDLength = 128
)

// RequestIDMiddleware generates a unique request ID for each request and adds it to
// the context and response headers. If the client provides a request ID in the
// X-Request-ID header, it will be used instead of generating a new one.
//
// The request ID is:
//   - Added to the request context (see logging.GetRequestID)
//   - Included in the X-Request-ID response header
//   - Attached to every log record written with the request context
//
// Example usage:
//
//	handler = RequestIDMiddleware(handler)
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		ctx := logging.WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
