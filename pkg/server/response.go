package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/janitor/pkg/cleanup"
)

// StatusFor maps an engine error to its HTTP status.
func StatusFor(err error) int {
	var (
		validation *cleanup.ValidationError
		notFound   *cleanup.NotFoundError
		conflict   *cleanup.ConflictError
		missing    *cleanup.HandlerMissingError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the error's status. Server-side failures are
// logged in full and reported with a generic message.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	code := StatusFor(err)
	resp := errorResponse{Error: err.Error()}

	var conflict *cleanup.ConflictError
	if errors.As(err, &conflict) {
		resp.RunID = conflict.RunID
	}

	if code >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "rpc failed", "action", action, "error", err)
		if code == http.StatusInternalServerError {
			resp.Error = "internal error"
		}
	} else {
		s.logger.DebugContext(ctx, "rpc rejected", "action", action, "status", code, "error", err)
	}
	s.writeJSON(w, action, code, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, action string, code int, body any) {
	if s.metrics != nil && action != "" {
		s.metrics.RecordRPC(action, code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
