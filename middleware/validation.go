package middleware

import "net/http"

const DefaultMaxBodyBytes int64 = 1 << 20

// RequestSizeLimitMiddleware caps request bodies at maxSize bytes. Reads past
// the limit fail, which handlers report as a bad request.
func RequestSizeLimitMiddleware(maxSize int64) func(http.Handler) http.Handler {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxSize {
				writeErrorResponse(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}
