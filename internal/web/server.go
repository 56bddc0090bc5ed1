// Package web serves a read-only JSON API over the run store and the event
// database, for watching integration runs from a browser or script.
package web

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/repofactor/repofactor/internal/db"
	"github.com/repofactor/repofactor/internal/pipeline"
)

// Server exposes run state and event history over HTTP. It never mutates
// anything; all writes go through the orchestrator.
type Server struct {
	store *pipeline.Store
	db    *db.DB
	addr  string
	log   *zap.Logger

	// poll is the event stream's database polling interval.
	poll time.Duration
}

// NewServer creates a Server listening on addr. A nil logger disables logging.
func NewServer(store *pipeline.Store, database *db.DB, addr string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		store: store,
		db:    database,
		addr:  addr,
		log:   log,
		poll:  2 * time.Second,
	}
}

// Handler returns the route table. Split out from Start so tests can drive
// the server through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", get(s.handleRuns))
	mux.HandleFunc("/api/runs/", get(s.routeRun))
	mux.HandleFunc("/api/analytics", get(s.handleAnalytics))
	mux.HandleFunc("/api/events/stream", get(s.handleEventStream))
	return mux
}

// Start registers routes and listens until the process exits.
func (s *Server) Start() error {
	s.log.Info("status server listening", zap.String("addr", s.addr))
	return http.ListenAndServe(s.addr, s.Handler())
}

func (s *Server) routeRun(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handleRunDetail(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "events":
		s.handleRunEvents(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "calls":
		s.handleRunCalls(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func get(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}
