package middleware

import "net/http"

// MaxRequestSize caps request body size; oversized bodies fail on read with
// http.MaxBytesError, surfacing as a decode error in the handler.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
