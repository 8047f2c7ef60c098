package httpx

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/tasknest/tasknest/internal/observability/metrics"
	"github.com/tasknest/tasknest/internal/observability/statsd"
	"github.com/tasknest/tasknest/internal/procedure"
)

// SessionCookieName is the cookie carrying the opaque session identifier.
const SessionCookieName = "session_id"

// Logging returns a middleware that logs HTTP requests and responses and
// emits request metrics when a sink is configured.
func Logging(logger *slog.Logger, sink statsd.Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", elapsed),
			)
			metrics.EmitHTTPRequest(sink, metrics.HTTPRequest{
				Method:   r.Method,
				Status:   ww.status,
				Duration: elapsed,
			})
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionToken returns a middleware that lifts the session cookie's value
// into the request context for the procedure resolver. The token is not
// validated here; resolution and expiry checks happen in the chain.
func SessionToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				r = r.WithContext(procedure.WithSessionToken(r.Context(), cookie.Value))
			}
			next.ServeHTTP(w, r)
		})
	}
}
