package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/damsync/internal/damsync"
	"github.com/sells-group/damsync/internal/feed"
	"github.com/sells-group/damsync/internal/reconcile"
	"github.com/sells-group/damsync/internal/store"
)

// errorBody is the JSON error payload.
type errorBody struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorBody{
		Status:  status,
		Error:   http.StatusText(status),
		Message: err.Error(),
		Path:    r.URL.Path,
	})
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Status:  http.StatusBadRequest,
		Error:   http.StatusText(http.StatusBadRequest),
		Message: msg,
		Path:    r.URL.Path,
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, damsync.ErrUnknownDam):
		return http.StatusNotFound
	case errors.Is(err, damsync.ErrInvalidDate),
		errors.Is(err, damsync.ErrInvalidRange),
		errors.Is(err, reconcile.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, feed.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// optionalDate treats blank input and the literal "string" as absent.
func optionalDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "string" {
		return ""
	}
	return s
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
