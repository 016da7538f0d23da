package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mercator-hq/janitor/pkg/cleanup"
	"mercator-hq/janitor/pkg/telemetry/logging"
)

// Actions accepted by the RPC endpoint.
const (
	ActionList   = "list"
	ActionStart  = "start"
	ActionScan   = "scan"
	ActionTick   = "tick"
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionStop   = "stop"
)

// Request is the body of an RPC call.
type Request struct {
	Action     string `json:"action"`
	ItemID     string `json:"itemId,omitempty"`
	RunID      string `json:"runId,omitempty"`
	CutoffDate string `json:"cutoffDate,omitempty"`
	BatchSize  int    `json:"batchSize,omitempty"`
}

type listResponse struct {
	Success bool                     `json:"success"`
	Items   []cleanup.CategoryStatus `json:"items"`
}

type runResponse struct {
	Success bool           `json:"success"`
	RunID   string         `json:"runId"`
	Status  cleanup.Status `json:"status"`
}

type scanResponse struct {
	Success  bool  `json:"success"`
	Estimate int64 `json:"estimate"`
}

type tickResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	*cleanup.TickResult
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	RunID   string `json:"runId,omitempty"`
}

// handleRPC decodes one request and dispatches on its action.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeJSON(w, "", http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req Request
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, "", http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		s.writeError(r.Context(), w, "", cleanup.NewValidationError("body", "malformed JSON"))
		return
	}

	action := strings.ToLower(strings.TrimSpace(req.Action))
	ctx := r.Context()
	if req.RunID != "" {
		ctx = logging.WithRunID(ctx, req.RunID)
	}
	if req.ItemID != "" {
		ctx = logging.WithCategory(ctx, req.ItemID)
	}

	switch action {
	case ActionList:
		s.handleList(ctx, w)
	case ActionStart:
		s.handleStart(ctx, w, req)
	case ActionScan:
		s.handleScan(ctx, w, req)
	case ActionTick:
		s.handleTick(ctx, w, req)
	case ActionPause, ActionResume, ActionStop:
		s.handleTransition(ctx, w, action, req)
	case "":
		s.writeError(ctx, w, "unknown", cleanup.NewValidationError("action", "is required"))
	default:
		s.writeError(ctx, w, "unknown", cleanup.NewValidationError("action", fmt.Sprintf("unknown action %q", req.Action)))
	}
}

func (s *Server) handleList(ctx context.Context, w http.ResponseWriter) {
	items, err := s.controller.List(ctx)
	if err != nil {
		s.writeError(ctx, w, ActionList, err)
		return
	}
	if items == nil {
		items = []cleanup.CategoryStatus{}
	}
	s.writeJSON(w, ActionList, http.StatusOK, listResponse{Success: true, Items: items})
}

func (s *Server) handleStart(ctx context.Context, w http.ResponseWriter, req Request) {
	run, err := s.controller.Start(ctx, req.ItemID)
	if err != nil {
		s.writeError(ctx, w, ActionStart, err)
		return
	}
	s.writeJSON(w, ActionStart, http.StatusOK, runResponse{Success: true, RunID: run.ID, Status: run.Status})
}

func (s *Server) handleScan(ctx context.Context, w http.ResponseWriter, req Request) {
	cutoff, err := ParseCutoff(req.CutoffDate)
	if err != nil {
		s.writeError(ctx, w, ActionScan, err)
		return
	}
	estimate, err := s.controller.Scan(ctx, req.ItemID, cutoff)
	if err != nil {
		s.writeError(ctx, w, ActionScan, err)
		return
	}
	s.writeJSON(w, ActionScan, http.StatusOK, scanResponse{Success: true, Estimate: estimate})
}

func (s *Server) handleTick(ctx context.Context, w http.ResponseWriter, req Request) {
	cutoff, err := ParseCutoff(req.CutoffDate)
	if err != nil {
		s.writeError(ctx, w, ActionTick, err)
		return
	}

	result, err := s.controller.Tick(ctx, req.RunID, cleanup.TickOptions{
		BatchSize: req.BatchSize,
		Cutoff:    cutoff,
	})
	if err != nil {
		var missing *cleanup.HandlerMissingError
		if errors.As(err, &missing) && result != nil {
			s.logger.WarnContext(ctx, "tick failed terminally", "error", err)
			s.writeJSON(w, ActionTick, http.StatusUnprocessableEntity, tickResponse{Error: err.Error(), TickResult: result})
			return
		}
		s.writeError(ctx, w, ActionTick, err)
		return
	}
	s.writeJSON(w, ActionTick, http.StatusOK, tickResponse{Success: true, TickResult: result})
}

func (s *Server) handleTransition(ctx context.Context, w http.ResponseWriter, action string, req Request) {
	var (
		run *cleanup.Run
		err error
	)
	switch action {
	case ActionPause:
		run, err = s.controller.Pause(ctx, req.RunID)
	case ActionResume:
		run, err = s.controller.Resume(ctx, req.RunID)
	default:
		run, err = s.controller.Stop(ctx, req.RunID)
	}
	if err != nil {
		s.writeError(ctx, w, action, err)
		return
	}
	s.writeJSON(w, action, http.StatusOK, runResponse{Success: true, RunID: run.ID, Status: run.Status})
}

// ParseCutoff parses an RFC 3339 timestamp or a YYYY-MM-DD date (midnight
// UTC). An empty string means no override.
func ParseCutoff(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return &t, nil
	}
	return nil, cleanup.NewValidationError("cutoffDate", fmt.Sprintf("%q is neither RFC 3339 nor YYYY-MM-DD", s))
}
