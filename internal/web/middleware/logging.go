// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gradebook/internal/logging"
)

type fieldsKey struct{}

// requestFields collects values that are only known inside the route
// handlers but belong on the request's log entry.
type requestFields struct {
	owner string
	runID string
}

func fieldsFrom(ctx context.Context) *requestFields {
	f, _ := ctx.Value(fieldsKey{}).(*requestFields)
	return f
}

// SetRunID tags the request's log entry with the import run it started or
// read.
func SetRunID(ctx context.Context, runID string) {
	if f := fieldsFrom(ctx); f != nil {
		f.runID = runID
	}
}

// Logger writes one entry per request once the response is done.
//
// Entries carry the request ID, method, matched route, status, bytes
// written, duration and client IP, plus the owner and run_id when the
// handler set them. Server errors log at error level and client errors at
// warn; health checks drop to debug.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		fields := &requestFields{}
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), fieldsKey{}, fields)))

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		attrs := []any{
			"method", r.Method,
			"route", route,
			"status", ww.status,
			"bytes", ww.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ClientIPFrom(r.Context()),
		}
		if fields.owner != "" {
			attrs = append(attrs, "owner", fields.owner)
		}
		if fields.runID != "" {
			attrs = append(attrs, "run_id", fields.runID)
		}

		logging.FromContext(r.Context()).Log(r.Context(), levelFor(r.URL.Path, ww.status), "request", attrs...)
	})
}

func levelFor(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case path == "/health":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// responseWriter records the status and body size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.NewResponseController reach the Flusher for the
// progress stream.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
