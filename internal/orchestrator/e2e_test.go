package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/repofactor/repofactor/internal/agent"
	"github.com/repofactor/repofactor/internal/db"
	"github.com/repofactor/repofactor/internal/pipeline"
)

type e2eEnv struct {
	orch     *Orchestrator
	store    *pipeline.Store
	database *db.DB
	progress *bytes.Buffer
	agents   testAgents
}

func setupE2E(t *testing.T, agents testAgents) *e2eEnv {
	t.Helper()

	store := pipeline.NewStore(t.TempDir())
	database, err := db.Open("sqlite3", filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("migrate event log: %v", err)
	}

	progress := &bytes.Buffer{}
	orch := New(agents.set(), store, database, zap.NewNop())
	orch.SetProgress(progress)
	orch.SetModel("codellama/CodeLlama-34b-Instruct-hf")

	return &e2eEnv{orch: orch, store: store, database: database, progress: progress, agents: agents}
}

// TestE2E_HappyPath drives a full run against the event log and the run
// store: analysis → implementation → diff → done, then checks every row
// and artifact the run should have left behind.
func TestE2E_HappyPath(t *testing.T) {
	env := setupE2E(t, happyAgents())
	st := newRunState()

	t.Log("Step 1: drive the run to completion")
	res, err := env.orch.Run(context.Background(), st, testInput())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.FinalStage != pipeline.StageDone {
		t.Fatalf("final stage = %s, want done", res.FinalStage)
	}

	t.Log("Step 2: verify the event trail")
	events, err := env.database.RunEvents(st.RunID)
	if err != nil {
		t.Fatalf("run events: %v", err)
	}
	want := []struct {
		event  string
		stage  string
		action string
	}{
		{db.EventDecision, "start", "analysis"},
		{db.EventStageComplete, "analysis_complete", "analysis"},
		{db.EventDecision, "analysis_complete", "implementation"},
		{db.EventStageComplete, "implementation_complete", "implementation"},
		{db.EventDecision, "implementation_complete", "diff"},
		{db.EventStageComplete, "diff_complete", "diff"},
		{db.EventDecision, "diff_complete", "done"},
		{db.EventTerminal, "done", "done"},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, w := range want {
		e := events[i]
		if e.Event != w.event || e.Stage != w.stage || e.Action != w.action {
			t.Errorf("event %d = (%s, %s, %s), want (%s, %s, %s)",
				i, e.Event, e.Stage, e.Action, w.event, w.stage, w.action)
		}
	}

	t.Log("Step 3: verify the agent call rows")
	calls, err := env.database.AgentCalls(st.RunID)
	if err != nil {
		t.Fatalf("agent calls: %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("got %d agent calls, want 3", len(calls))
	}
	for i, name := range []string{"analysis", "implementation", "diff"} {
		if calls[i].Agent != name || !calls[i].Success {
			t.Errorf("call %d = %+v, want successful %s", i, calls[i], name)
		}
		if calls[i].Model != "codellama/CodeLlama-34b-Instruct-hf" {
			t.Errorf("call %d model = %q", i, calls[i].Model)
		}
	}

	t.Log("Step 4: verify run summary and artifacts")
	runs, err := env.database.RecentRuns(10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != st.RunID || runs[0].Outcome != "done" {
		t.Errorf("recent runs = %+v", runs)
	}

	raw, err := env.store.ReadStageArtifact(st.RunID, "analysis", 1, "response.json")
	if err != nil {
		t.Fatalf("read analysis artifact: %v", err)
	}
	var ar agent.AnalysisResult
	if err := json.Unmarshal(raw, &ar); err != nil {
		t.Fatalf("parse analysis artifact: %v", err)
	}
	if len(ar.AffectedFiles) != 1 {
		t.Errorf("artifact affected files = %d", len(ar.AffectedFiles))
	}

	out := env.progress.String()
	if !strings.Contains(out, "  → ") {
		t.Error("progress output missing the arrow prefix")
	}
	if !strings.Contains(out, "run finished: done") {
		t.Errorf("progress output = %q", out)
	}
}

// TestE2E_RetryLoopExhausted drives the failure path: every
// implementation attempt fails, research runs between attempts, and the
// run ends in report_failure with the full event trail recorded.
func TestE2E_RetryLoopExhausted(t *testing.T) {
	agents := happyAgents()
	agents.implementer.script = []implStep{{res: implFailure()}}
	env := setupE2E(t, agents)
	st := newRunState()

	t.Log("Step 1: drive the run to exhaustion")
	res, err := env.orch.Run(context.Background(), st, testInput())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.FinalStage != pipeline.StageReportFailure || res.RetryCount != 3 {
		t.Fatalf("result = %+v", res)
	}

	t.Log("Step 2: tally the event trail")
	events, err := env.database.RunEvents(st.RunID)
	if err != nil {
		t.Fatalf("run events: %v", err)
	}
	counts := map[string]int{}
	for _, e := range events {
		counts[e.Event]++
	}
	wantCounts := map[string]int{
		db.EventDecision:        9,
		db.EventStageComplete:   1,
		db.EventStageFailed:     4,
		db.EventResearchApplied: 3,
		db.EventTerminal:        1,
	}
	for event, n := range wantCounts {
		if counts[event] != n {
			t.Errorf("%s events = %d, want %d", event, counts[event], n)
		}
	}

	t.Log("Step 3: verify call rows and outcome")
	calls, err := env.database.AgentCalls(st.RunID)
	if err != nil {
		t.Fatalf("agent calls: %v", err)
	}
	if len(calls) != 8 {
		t.Errorf("got %d agent calls, want 8 (1 analysis + 4 implementation + 3 research)", len(calls))
	}
	succeeded := 0
	for _, c := range calls {
		if c.Success {
			succeeded++
		}
	}
	// Analysis and the three research calls succeed; the four
	// implementation attempts are recorded as failures.
	if succeeded != 4 {
		t.Errorf("successful calls = %d, want 4", succeeded)
	}

	runs, err := env.database.RecentRuns(10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Outcome != "report_failure" {
		t.Errorf("recent runs = %+v", runs)
	}

	if !strings.Contains(env.progress.String(), "run finished: report_failure") {
		t.Errorf("progress output = %q", env.progress.String())
	}
}
