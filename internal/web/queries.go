package web

import (
	"database/sql"
	"fmt"

	"github.com/repofactor/repofactor/internal/db"
)

// eventsAfter returns run events with an id greater than lastID, oldest
// first. A non-empty runID restricts the result to that run.
func (s *Server) eventsAfter(lastID int, runID string, limit int) ([]db.RunEvent, error) {
	query := `SELECT id, run_id, event, stage, action, retry, detail, timestamp
	          FROM run_events WHERE id > ?`
	args := []interface{}{lastID}
	if runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Conn().Query(s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("events after %d: %w", lastID, err)
	}
	defer rows.Close()

	var events []db.RunEvent
	for rows.Next() {
		var e db.RunEvent
		var stage, action, detail sql.NullString
		var retry sql.NullInt64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Event, &stage, &action, &retry, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Stage = stage.String
		e.Action = action.String
		e.Retry = int(retry.Int64)
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// maxEventID returns the highest run event id, or 0 for an empty table.
func (s *Server) maxEventID() (int, error) {
	var id sql.NullInt64
	err := s.db.Conn().QueryRow(`SELECT MAX(id) FROM run_events`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("max event id: %w", err)
	}
	return int(id.Int64), nil
}
