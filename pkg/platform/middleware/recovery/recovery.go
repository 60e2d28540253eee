// Package recovery converts handler panics into 500 responses instead of
// dropped connections.
package recovery

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	dErrors "github.com/spwotton/sms/pkg/domain-errors"
	"github.com/spwotton/sms/pkg/platform/httputil"
	"github.com/spwotton/sms/pkg/requestcontext"
)

// Middleware recovers panics from downstream handlers, logs the stack, and
// answers with a generic internal error.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				if logger != nil {
					logger.ErrorContext(ctx, "panic recovered",
						"request_id", requestcontext.RequestID(ctx),
						"method", r.Method,
						"path", r.URL.Path,
						"panic", rec,
						"stack", string(debug.Stack()),
					)
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
