package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/changeling-watch/internal/history"
	"github.com/nerrad567/changeling-watch/internal/status"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status     status.Status `json:"status"`
	ObservedAt time.Time     `json:"observed_at"`
}

// HistoryResponse is the body of GET /history.
type HistoryResponse struct {
	Transitions []history.Entry `json:"transitions"`
	Count       int             `json:"count"`
}

// handleStatus returns the most recent status line the watcher has seen.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st, at, ok := s.tracker.Last()
	if !ok {
		writeNotFound(w, "no status received yet")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: st, ObservedAt: at})
}

// handleHistory returns recent state transitions, newest first.
//
// Query parameters:
//   - limit: maximum entries (default 50, capped at 200)
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history is not enabled")
		return
	}

	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("reading history", "error", err, "request_id", requestIDFrom(r.Context()))
		writeInternalError(w, "failed to read history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Transitions: entries, Count: len(entries)})
}
