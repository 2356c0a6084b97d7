package httpx

import (
	"log/slog"
	"net/http"
	"time"
)

// ErrorKindHeader is set by handlers on failed responses and copied into the
// access log as error_kind.
const ErrorKindHeader = "X-Error-Kind"

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusCapturingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCapturingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func WithAccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusCapturingResponseWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			attrs := []any{
				"request_id", RequestIDFromContext(r.Context()),
				"tenant_id", r.Header.Get("X-Tenant-Id"),
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if kind := sw.Header().Get(ErrorKindHeader); kind != "" {
				attrs = append(attrs, "error_kind", kind)
			}
			logger.Log(r.Context(), levelFor(sw.status), "http request", attrs...)
		})
	}
}

// Conflicts and retryable failures are expected under contention and log at
// warn; anything else in the 5xx range is an error.
func levelFor(status int) slog.Level {
	switch {
	case status == http.StatusConflict, status == http.StatusServiceUnavailable:
		return slog.LevelWarn
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
