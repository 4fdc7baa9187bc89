// Package logging provides the rotating slog setup and the request logging
// middleware shared by the whole service.
package logging

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Paths polled continuously by orchestrators and scrapers; logging them
// would drown out real traffic.
var unloggedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Rule evaluation runs fully in memory, so a request past this budget
// deserves attention.
const slowRequestThreshold = 500 * time.Millisecond

var loggedResponsePool = sync.Pool{
	New: func() any { return &loggedResponse{status: http.StatusOK} },
}

// LoggingMiddleware logs one structured line per request: request id,
// route, status, size and latency. Client errors log at warn, server
// errors at error.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unloggedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			lr := loggedResponsePool.Get().(*loggedResponse)
			lr.reset(w)
			start := time.Now()

			next.ServeHTTP(lr, r)

			elapsed := time.Since(start)
			logger.Log(r.Context(), levelFor(lr.status), "HTTP request", requestAttrs(r, lr, elapsed)...)

			loggedResponsePool.Put(lr)
		})
	}
}

// levelFor maps the response status to a log level so failing requests
// stand out in the stream
func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func requestAttrs(r *http.Request, lr *loggedResponse, elapsed time.Duration) []any {
	requestID, ok := r.Context().Value(middleware.RequestIDKey).(string)
	if !ok || requestID == "" {
		requestID = "unknown"
	}

	attrs := make([]any, 0, 18)
	attrs = append(attrs,
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
	)

	// Empty queries stay off the line entirely
	if r.URL.RawQuery != "" {
		attrs = append(attrs, "query", r.URL.RawQuery)
	}

	attrs = append(attrs,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"status_code", lr.status,
		"bytes_written", lr.bytes,
		"duration_ms", elapsed.Milliseconds(),
	)

	if elapsed >= slowRequestThreshold {
		attrs = append(attrs, "slow", true)
	}

	return attrs
}

// loggedResponse captures the status code and body size for the log line
// while delegating to the real writer. Instances are pooled, reset before
// every use.
type loggedResponse struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (l *loggedResponse) reset(w http.ResponseWriter) {
	l.ResponseWriter = w
	l.status = http.StatusOK
	l.bytes = 0
}

func (l *loggedResponse) WriteHeader(status int) {
	l.status = status
	l.ResponseWriter.WriteHeader(status)
}

func (l *loggedResponse) Write(p []byte) (int, error) {
	n, err := l.ResponseWriter.Write(p)
	l.bytes += n
	return n, err
}
