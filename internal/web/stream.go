package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// handleEventStream serves a Server-Sent Events tail of the run event log.
// It polls the database on a fixed interval and sends every event newer than
// the last one delivered. By default the stream starts at the current end of
// the log; ?after=N replays everything after event id N, and ?run= restricts
// the stream to a single run.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	lastID, err := s.maxEventID()
	if err != nil {
		s.serverError(w, "event stream", err)
		return
	}
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid after", http.StatusBadRequest)
			return
		}
		lastID = n
	}
	runID := r.URL.Query().Get("run")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering if present

	sendDone := func(reason string) {
		fmt.Fprintf(w, "event: done\ndata: %s\n\n", reason)
		flusher.Flush()
	}

	tick := time.NewTicker(s.poll)
	defer tick.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
		}

		events, err := s.eventsAfter(lastID, runID, 100)
		if err != nil {
			sendDone("database error")
			return
		}
		if len(events) == 0 {
			continue
		}

		for _, e := range events {
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: run_event\ndata: %s\n\n", e.ID, data)
			lastID = e.ID
		}
		flusher.Flush()
	}
}
