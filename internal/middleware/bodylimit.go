package middleware

import (
	"net/http"
)

// DefaultMaxBodySize caps request bodies at 1MB. Every body this API accepts
// is a small JSON document (scan payloads, check-in requests); anything
// bigger is broken or hostile.
const DefaultMaxBodySize = 1 << 20

type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

// Handler rejects oversized bodies up front when Content-Length declares
// them, and wraps the rest in a MaxBytesReader so chunked uploads cannot
// sneak past the cap.
func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.ContentLength > m.maxSize {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
