// Package recovery turns handler panics into generic JSON 500 responses.
package recovery

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	dErrors "authguard/pkg/domain-errors"
	"authguard/pkg/platform/httputil"
	"authguard/pkg/requestcontext"
)

// Middleware recovers panics, logs the stack server-side and writes an internal_error
// body carrying only the request id.
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
				requestID := requestcontext.RequestID(r.Context())
				logger.ErrorContext(r.Context(), "panic recovered",
					"request_id", requestID,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				httputil.WriteErrorWithRequestID(w, dErrors.New(dErrors.CodeInternal, "internal error"), requestID)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
