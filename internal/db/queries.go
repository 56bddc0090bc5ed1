package db

import (
	"database/sql"
	"fmt"
)

// Event names accepted by the run_events table.
const (
	EventDecision        = "decision"
	EventStageComplete   = "stage_complete"
	EventStageFailed     = "stage_failed"
	EventResearchApplied = "research_applied"
	EventTerminal        = "terminal"
)

// RunEvent represents a row in the run_events table.
type RunEvent struct {
	ID        int    `json:"id"`
	RunID     string `json:"run_id"`
	Event     string `json:"event"`
	Stage     string `json:"stage"`
	Action    string `json:"action"`
	Retry     int    `json:"retry"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

// AgentCall represents a row in the agent_calls table.
type AgentCall struct {
	ID         int    `json:"id"`
	RunID      string `json:"run_id"`
	Agent      string `json:"agent"`
	Model      string `json:"model,omitempty"`
	Attempt    int    `json:"attempt"`
	DurationMs int    `json:"duration_ms"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// RunSummary aggregates the event rows of a single run.
type RunSummary struct {
	RunID      string `json:"run_id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Events     int    `json:"events"`
	Outcome    string `json:"outcome,omitempty"`
}

// LogRunEvent inserts a run event.
func (d *DB) LogRunEvent(runID, event, stage, action string, retry int, detail string) error {
	_, err := d.conn.Exec(
		d.Rebind(`INSERT INTO run_events (run_id, event, stage, action, retry, detail, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		runID, event, stage, action, retry, detail, now(),
	)
	if err != nil {
		return fmt.Errorf("log run event: %w", err)
	}
	return nil
}

// LogAgentCall inserts an agent call record.
func (d *DB) LogAgentCall(runID, agent, model string, attempt int, durationMs int64, success bool, errMsg string) error {
	_, err := d.conn.Exec(
		d.Rebind(`INSERT INTO agent_calls (run_id, agent, model, attempt, duration_ms, success, error, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		runID, agent, model, attempt, durationMs, success, errMsg, now(),
	)
	if err != nil {
		return fmt.Errorf("log agent call: %w", err)
	}
	return nil
}

// RunEvents returns all events for a run in insertion order.
func (d *DB) RunEvents(runID string) ([]RunEvent, error) {
	rows, err := d.conn.Query(
		d.Rebind(`SELECT id, run_id, event, stage, action, retry, detail, timestamp
		 FROM run_events WHERE run_id = ? ORDER BY id`),
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get run events: %w", err)
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var e RunEvent
		var stage, action, detail sql.NullString
		var retry sql.NullInt64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Event, &stage, &action, &retry, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		if stage.Valid {
			e.Stage = stage.String
		}
		if action.Valid {
			e.Action = action.String
		}
		if retry.Valid {
			e.Retry = int(retry.Int64)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// AgentCalls returns all agent calls for a run in insertion order.
func (d *DB) AgentCalls(runID string) ([]AgentCall, error) {
	rows, err := d.conn.Query(
		d.Rebind(`SELECT id, run_id, agent, model, attempt, duration_ms, success, error, timestamp
		 FROM agent_calls WHERE run_id = ? ORDER BY id`),
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get agent calls: %w", err)
	}
	defer rows.Close()

	var calls []AgentCall
	for rows.Next() {
		var c AgentCall
		var model, errMsg sql.NullString
		var durationMs sql.NullInt64
		if err := rows.Scan(&c.ID, &c.RunID, &c.Agent, &model, &c.Attempt, &durationMs, &c.Success, &errMsg, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan agent call: %w", err)
		}
		if model.Valid {
			c.Model = model.String
		}
		if durationMs.Valid {
			c.DurationMs = int(durationMs.Int64)
		}
		if errMsg.Valid {
			c.Error = errMsg.String
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// RecentRuns returns per-run summaries, newest first. The outcome column
// holds the action recorded by the run's terminal event, empty while a
// run is still in flight.
func (d *DB) RecentRuns(limit int) ([]RunSummary, error) {
	rows, err := d.conn.Query(
		d.Rebind(`SELECT run_id,
		        MIN(timestamp) AS started_at,
		        MAX(timestamp) AS finished_at,
		        COUNT(*) AS events,
		        MAX(CASE WHEN event = 'terminal' THEN action END) AS outcome
		 FROM run_events
		 GROUP BY run_id
		 ORDER BY MIN(id) DESC
		 LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var outcome sql.NullString
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Events, &outcome); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		if outcome.Valid {
			r.Outcome = outcome.String
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
