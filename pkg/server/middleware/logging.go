package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// newResponseWriter creates a new response writer wrapper.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code before writing.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write ensures WriteHeader is called if not already done.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingMiddleware logs HTTP requests and responses with structured logging.
// It records method, path, status code and latency. The request ID is added
// by the logger's context handler.
//
// Log format (JSON):
//
//	{
//	  "time": "2026-03-02T10:30:00Z",
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "method": "POST",
//	  "path": "/evaluate",
//	  "status": 200,
//	  "latency_us": 412,
//	  "request_id": "0b6c5c0e-...",
//	  "remote_addr": "192.168.1.100:54321"
//	}
//
// Example usage:
//
//	handler = LoggingMiddleware(logger)(handler)
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			ctx := r.Context()
			rw := newResponseWriter(w)

			logger.DebugContext(ctx, "request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)

			next.ServeHTTP(rw, r)

			logLevel := slog.LevelInfo
			if rw.statusCode >= 500 {
				logLevel = slog.LevelError
			} else if rw.statusCode >= 400 {
				logLevel = slog.LevelWarn
			}

			logger.Log(ctx, logLevel, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"latency_us", time.Since(startTime).Microseconds(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
