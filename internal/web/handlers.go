package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/repofactor/repofactor/internal/analytics"
	"github.com/repofactor/repofactor/internal/db"
)

const defaultRunLimit = 50

// handleRuns lists recent runs with their event counts and outcomes,
// newest first. ?limit= caps the result.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.db.RecentRuns(limit)
	if err != nil {
		s.serverError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []db.RunSummary{}
	}
	s.writeJSON(w, runs)
}

// handleRunDetail returns the full persisted state of one run.
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request, runID string) {
	ps, err := s.store.Get(runID)
	if err != nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, ps)
}

// handleRunEvents returns the event trail for one run, oldest first.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request, runID string) {
	events, err := s.db.RunEvents(runID)
	if err != nil {
		s.serverError(w, "run events", err)
		return
	}
	if events == nil {
		events = []db.RunEvent{}
	}
	s.writeJSON(w, events)
}

// handleRunCalls returns every backend invocation recorded for one run.
func (s *Server) handleRunCalls(w http.ResponseWriter, r *http.Request, runID string) {
	calls, err := s.db.AgentCalls(runID)
	if err != nil {
		s.serverError(w, "agent calls", err)
		return
	}
	if calls == nil {
		calls = []db.AgentCall{}
	}
	s.writeJSON(w, calls)
}

// handleAnalytics returns aggregate statistics across all recorded runs.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := analytics.BuildReport(s.db)
	if err != nil {
		s.serverError(w, "analytics", err)
		return
	}
	s.writeJSON(w, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.log.Warn(op, zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}
