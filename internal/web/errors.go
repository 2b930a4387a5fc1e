package web

// errors.go maps service errors to HTTP responses. The technical error is
// logged with the request ID; the client gets the user message from
// core.MapError as JSON, or as an alert partial for HTMX requests.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/gradebook/internal/core"
	"github.com/JonMunkholm/gradebook/internal/web/templates"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errNoFile      = errors.New("no file provided")
	errFileTooBig  = errors.New("file too large")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
	// Fields lists the offending inputs of a validation error.
	Fields []string `json:"fields,omitempty"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var (
		verr *core.ValidationError
		perr *core.ParseError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &perr),
		errors.Is(err, core.ErrInvalidOwner),
		errors.Is(err, core.ErrUnrecognizedBatch),
		errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrStageNotFound),
		errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case core.IsPrecondition(err), errors.Is(err, core.ErrNoValidRows):
		return http.StatusUnprocessableEntity
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid record kind"):
		return http.StatusBadRequest
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "violates unique"):
		return http.StatusConflict
	case strings.Contains(msg, "foreign key"):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its user-facing form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request error", attrs...)
	} else {
		slog.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
			slog.Error("render error alert", "error", err)
		}
		return
	}

	body := ErrorResponse{Error: msg.Message, Action: msg.Action, Code: msg.Code}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		body.Fields = append(append(body.Fields, verr.Missing...), verr.Invalid...)
	}
	writeJSON(w, status, body)
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg.Message, Action: msg.Action, Code: msg.Code}); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
