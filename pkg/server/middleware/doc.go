// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// # Middleware Chain
//
// The server chains middleware in this order (innermost to outermost):
//
//	handler = Recovery(Tracing(RequestID(Logging(BodyLimit(mux)))))
//
//  1. BodyLimit: Cap request bodies at server.max_body_bytes
//  2. Logging: Log request/response details
//  3. RequestID: Generate and propagate request ID
//  4. Tracing: Extract trace context and start the server span
//  5. Recovery: Recover from panics
//
// RequestID and Tracing sit outside Logging so the completion record carries
// both IDs.
//
// # Request ID
//
// RequestIDMiddleware generates a UUID v4 for each request:
//
//	X-Request-ID: 550e8400-e29b-41d4-a716-446655440000
//
// The request ID is stored with logging.WithRequestID, so every record
// written through the connector logger with the request context carries it.
// A client supplied ID is kept when it is at most 128 bytes long.
package middleware
