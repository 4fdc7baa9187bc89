package logging

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

// captureLogger returns an info-level text logger writing into the builder
func captureLogger() (*slog.Logger, *strings.Builder) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	return logger, &buf
}

// serveThrough pushes one request through the handler. A non-nil requestID
// lands in the context under the chi request id key.
func serveThrough(h http.Handler, method, target string, requestID any) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if requestID != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, requestID))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var okBody = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

func TestLoggingMiddlewarePolledPathsSkipped(t *testing.T) {
	logger, buf := captureLogger()
	handler := LoggingMiddleware(logger)(okBody)

	tests := []struct {
		name       string
		path       string
		wantLogged bool
	}{
		{"health probe stays quiet", "/health", false},
		{"metrics scrape stays quiet", "/metrics", false},
		{"api traffic is logged", "/api/v1/drugs", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			rr := serveThrough(handler, http.MethodGet, tt.path, "req-1")
			if rr.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rr.Code)
			}

			if logged := buf.Len() > 0; logged != tt.wantLogged {
				t.Errorf("expected logged=%v for %s, got output: %q", tt.wantLogged, tt.path, buf.String())
			}
			if tt.wantLogged {
				if !strings.Contains(buf.String(), "HTTP request") {
					t.Errorf("log should contain 'HTTP request', got: %s", buf.String())
				}
				if !strings.Contains(buf.String(), tt.path) {
					t.Errorf("log should contain path, got: %s", buf.String())
				}
			}
		})
	}
}

func TestLoggingMiddlewareRequestID(t *testing.T) {
	logger, buf := captureLogger()
	handler := LoggingMiddleware(logger)(okBody)

	t.Run("string id is carried through", func(t *testing.T) {
		buf.Reset()
		serveThrough(handler, http.MethodGet, "/lookup", "req-abc")
		if !strings.Contains(buf.String(), "request_id=req-abc") {
			t.Errorf("log should carry the request id, got: %s", buf.String())
		}
	})

	// The context value is typed any; a non-string entry must not panic
	t.Run("non-string id falls back to unknown", func(t *testing.T) {
		buf.Reset()
		serveThrough(handler, http.MethodGet, "/lookup", 12345)
		if !strings.Contains(buf.String(), "request_id=unknown") {
			t.Errorf("log should contain request_id=unknown for non-string ID, got: %s", buf.String())
		}
	})

	t.Run("missing id falls back to unknown", func(t *testing.T) {
		buf.Reset()
		serveThrough(handler, http.MethodGet, "/lookup", nil)
		if !strings.Contains(buf.String(), "request_id=unknown") {
			t.Errorf("log should contain request_id=unknown without the id middleware, got: %s", buf.String())
		}
	})
}

func TestLoggingMiddlewareQueryAttr(t *testing.T) {
	logger, buf := captureLogger()
	handler := LoggingMiddleware(logger)(okBody)

	t.Run("no query params", func(t *testing.T) {
		buf.Reset()
		serveThrough(handler, http.MethodGet, "/lookup", "req-1")
		if strings.Contains(buf.String(), "query=") {
			t.Errorf("log should not contain 'query=' field when empty, got: %s", buf.String())
		}
	})

	t.Run("with query params", func(t *testing.T) {
		buf.Reset()
		serveThrough(handler, http.MethodGet, "/lookup?foo=bar&baz=qux", "req-2")
		if !strings.Contains(buf.String(), "query=") {
			t.Errorf("log should contain 'query=' field when present, got: %s", buf.String())
		}
		if !strings.Contains(buf.String(), "foo=bar") {
			t.Errorf("log should contain query value, got: %s", buf.String())
		}
	})
}

// TestLoggingMiddlewareCapturesResponse verifies status code and bytes written
// are recorded through the pooled response wrapper
func TestLoggingMiddlewareCapturesResponse(t *testing.T) {
	logger, buf := captureLogger()
	mw := LoggingMiddleware(logger)

	t.Run("explicit status code", func(t *testing.T) {
		buf.Reset()
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("not found"))
		}))
		serveThrough(handler, http.MethodGet, "/api/v1/drugs/azithromycin", "req-404")

		for _, want := range []string{"status_code=404", "bytes_written=9", "level=WARN"} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("log should contain %s, got: %s", want, buf.String())
			}
		}
	})

	t.Run("server error logs at error level", func(t *testing.T) {
		buf.Reset()
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		serveThrough(handler, http.MethodPost, "/api/v1/assess", "req-500")

		for _, want := range []string{"status_code=500", "level=ERROR"} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("log should contain %s, got: %s", want, buf.String())
			}
		}
	})

	t.Run("implicit 200 on write", func(t *testing.T) {
		buf.Reset()
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		}))
		serveThrough(handler, http.MethodGet, "/api/v1/drugs", "req-200")

		if !strings.Contains(buf.String(), "status_code=200") {
			t.Errorf("log should contain status_code=200, got: %s", buf.String())
		}
	})
}

func TestLoggedResponse(t *testing.T) {
	recorder := httptest.NewRecorder()

	lr := &loggedResponse{ResponseWriter: recorder}

	lr.WriteHeader(http.StatusNotFound)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, recorder.Code)
	}

	data := []byte("test data")
	n, err := lr.Write(data)
	if err != nil {
		t.Errorf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}

	// The recorder keeps the first status even if a handler misbehaves
	lr.WriteHeader(http.StatusInternalServerError)
	if recorder.Code != http.StatusNotFound {
		t.Error("Status should not be changed after first write")
	}

	if lr.bytes != len(data) {
		t.Errorf("Expected bytes %d, got %d", len(data), lr.bytes)
	}
}
