// Package request assigns each request a correlation ID.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/spwotton/sms/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// Middleware ensures every request carries a request ID: an incoming
// X-Request-ID is trusted, otherwise a fresh UUID is generated. The ID is
// stored in the context and echoed on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(headerRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
