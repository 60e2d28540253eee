package testutil

import (
	"context"
	"net/http"
	"time"

	"github.com/spwotton/sms/pkg/requestcontext"
)

// WithUsername adds an authenticated username to the request context,
// simulating what the auth middleware does for authenticated requests.
func WithUsername(req *http.Request, username string) *http.Request {
	return req.WithContext(requestcontext.WithUsername(req.Context(), username))
}

// WithRequestID adds a request ID to the request context, simulating the
// request middleware.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithRequestTime pins the request time in context so handlers that read
// requestcontext.Now see a deterministic clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
