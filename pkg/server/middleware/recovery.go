package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// RecoveryMiddleware recovers from panics in HTTP handlers and returns a 500
// Internal Server Error response. The body is a denied evaluation so a
// client that only reads "allowed" still fails closed. It logs the panic
// with stack trace but does not expose internal details to clients.
//
// Example usage:
//
//	handler = RecoveryMiddleware(logger)(handler)
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"allowed": false,
					"error":   "internal_error",
					"reason":  "an internal error occurred",
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
