// Package analytics computes run statistics from the event log.
package analytics

import (
	"database/sql"
	"fmt"
	"math"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// Report bundles every statistic the analytics command renders.
type Report struct {
	Outcomes []OutcomeCount `json:"outcomes"`
	Agents   []AgentUsage   `json:"agents"`
	Research ResearchStats  `json:"research"`
}

// OutcomeCount aggregates finished runs by terminal action.
type OutcomeCount struct {
	Outcome    string  `json:"outcome"`
	Runs       int     `json:"runs"`
	AvgRetries float64 `json:"avg_retries"`
}

// AgentUsage aggregates the call rows for one agent.
type AgentUsage struct {
	Agent         string  `json:"agent"`
	Calls         int     `json:"calls"`
	Successes     int     `json:"successes"`
	SuccessRate   float64 `json:"success_rate_pct"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// ResearchStats measures how often a research cycle rescued the run: a
// cycle counts as recovered when the implementation attempt it triggered
// succeeded.
type ResearchStats struct {
	Cycles        int     `json:"cycles"`
	Recovered     int     `json:"recovered"`
	Effectiveness float64 `json:"effectiveness_pct"`
}

// BuildReport assembles the full analytics report.
func BuildReport(database DB) (*Report, error) {
	outcomes, err := QueryOutcomes(database)
	if err != nil {
		return nil, err
	}
	agents, err := QueryAgentUsage(database)
	if err != nil {
		return nil, err
	}
	research, err := QueryResearchEffectiveness(database)
	if err != nil {
		return nil, err
	}
	return &Report{Outcomes: outcomes, Agents: agents, Research: research}, nil
}

// QueryOutcomes returns finished-run counts and average retry depth per
// terminal action.
func QueryOutcomes(database DB) ([]OutcomeCount, error) {
	rows, err := database.Conn().Query(`
		SELECT action, COUNT(*) as runs, AVG(COALESCE(retry, 0)) as avg_retries
		FROM run_events
		WHERE event = 'terminal'
		GROUP BY action
		ORDER BY action`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var results []OutcomeCount
	for rows.Next() {
		var oc OutcomeCount
		var action sql.NullString
		if err := rows.Scan(&action, &oc.Runs, &oc.AvgRetries); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		oc.Outcome = action.String
		oc.AvgRetries = math.Round(oc.AvgRetries*10) / 10
		results = append(results, oc)
	}
	return results, rows.Err()
}

// QueryAgentUsage returns call counts, success rates, and average
// duration per agent.
func QueryAgentUsage(database DB) ([]AgentUsage, error) {
	rows, err := database.Conn().Query(`
		SELECT agent,
			COUNT(*) as calls,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as successes,
			AVG(COALESCE(duration_ms, 0)) as avg_duration_ms
		FROM agent_calls
		GROUP BY agent
		ORDER BY agent`)
	if err != nil {
		return nil, fmt.Errorf("query agent usage: %w", err)
	}
	defer rows.Close()

	var results []AgentUsage
	for rows.Next() {
		var au AgentUsage
		if err := rows.Scan(&au.Agent, &au.Calls, &au.Successes, &au.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("scan agent usage: %w", err)
		}
		au.SuccessRate = pct(au.Successes, au.Calls)
		au.AvgDurationMs = math.Round(au.AvgDurationMs*10) / 10
		results = append(results, au)
	}
	return results, rows.Err()
}

// QueryResearchEffectiveness pairs each research_applied event with the
// implementation event that followed it in the same run.
func QueryResearchEffectiveness(database DB) (ResearchStats, error) {
	rows, err := database.Conn().Query(`
		SELECT run_id, event, action
		FROM run_events
		WHERE event IN ('research_applied', 'stage_complete', 'stage_failed')
		ORDER BY run_id, id`)
	if err != nil {
		return ResearchStats{}, fmt.Errorf("query research effectiveness: %w", err)
	}
	defer rows.Close()

	var stats ResearchStats
	pending := map[string]bool{}
	for rows.Next() {
		var runID, event string
		var action sql.NullString
		if err := rows.Scan(&runID, &event, &action); err != nil {
			return ResearchStats{}, fmt.Errorf("scan research event: %w", err)
		}

		switch event {
		case "research_applied":
			stats.Cycles++
			pending[runID] = true
		case "stage_complete":
			if pending[runID] && action.String == "implementation" {
				stats.Recovered++
				pending[runID] = false
			}
		case "stage_failed":
			pending[runID] = false
		}
	}
	if err := rows.Err(); err != nil {
		return ResearchStats{}, err
	}

	stats.Effectiveness = pct(stats.Recovered, stats.Cycles)
	return stats, nil
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
