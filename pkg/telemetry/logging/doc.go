// Package logging builds the structured slog logger used across the
// connector.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	ctx = logging.WithRequestID(ctx, requestID)
//	logger.InfoContext(ctx, "Evaluation complete", "allowed", true)
//
// Records logged with a context carry the request ID stored in it and,
// when a span is recording, its trace and span IDs.
package logging
