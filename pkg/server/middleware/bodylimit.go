package middleware

import "net/http"

// BodyLimitMiddleware caps request bodies at maxBytes. Reads past the limit
// fail with *http.MaxBytesError.
//
// Example usage:
//
//	handler = BodyLimitMiddleware(65536)(handler)
func BodyLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
