// Package orchestrator drives an integration run through the pipeline.
// Each iteration snapshots the state, asks the decision function for the
// next action, invokes the matching agent, and folds the result back into
// the state. The orchestrator is the only writer of PipelineState.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/repofactor/repofactor/internal/agent"
	"github.com/repofactor/repofactor/internal/db"
	"github.com/repofactor/repofactor/internal/pipeline"
)

// Result keys in PipelineState.Results, one per agent.
const (
	resultAnalysis       = "analysis"
	resultImplementation = "implementation"
	resultResearch       = "research"
	resultDiff           = "diff"
)

const defaultLogTail = 10

// AgentSet bundles the four agents the driver can invoke.
type AgentSet struct {
	Analyzer    agent.Analyzer
	Implementer agent.Implementer
	Researcher  agent.Researcher
	Differ      agent.Differ
}

// Input is the working set for a run: the snapshot of the repository the
// agents operate on. Files holds the original content; implementation
// always starts from it, never from a previous attempt's output.
type Input struct {
	RepoName string
	Files    map[string]string
	Stack    []string
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID      string                     `json:"run_id"`
	FinalStage pipeline.Stage             `json:"final_stage"`
	Status     string                     `json:"status"`
	RetryCount int                        `json:"retry_count"`
	LastError  string                     `json:"last_error,omitempty"`
	Results    map[string]json.RawMessage `json:"results,omitempty"`
}

// Orchestrator composes the run loop over a set of agents.
type Orchestrator struct {
	agents    AgentSet
	store     *pipeline.Store
	events    *db.DB
	log       *zap.Logger
	progress  io.Writer
	logTail   int
	model     string
	stopAfter pipeline.Stage
}

// New creates an Orchestrator. The event log may be nil, in which case no
// event rows are written.
func New(agents AgentSet, store *pipeline.Store, events *db.DB, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		agents:  agents,
		store:   store,
		events:  events,
		log:     log,
		logTail: defaultLogTail,
	}
}

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (o *Orchestrator) SetProgress(w io.Writer) {
	o.progress = w
}

// SetLogTail bounds how many execution-log lines are forwarded to research.
func (o *Orchestrator) SetLogTail(n int) {
	if n > 0 {
		o.logTail = n
	}
}

// SetModel records the backend model name on agent call rows.
func (o *Orchestrator) SetModel(model string) {
	o.model = model
}

// SetStopAfter makes Run return once the state reaches the given stage
// instead of driving on to a terminal. The run stays in_progress.
func (o *Orchestrator) SetStopAfter(stage pipeline.Stage) {
	o.stopAfter = stage
}

// logf prints a progress line if a progress writer is configured.
func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.progress != nil {
		fmt.Fprintf(o.progress, "  → "+format+"\n", args...)
	}
}

// Run drives the state to a terminal stage and returns the run summary.
// The returned error covers only setup problems; agent failures and
// cancellation are folded into the state and reported in the result.
func (o *Orchestrator) Run(ctx context.Context, st *pipeline.PipelineState, in Input) (*RunResult, error) {
	if st.RunID == "" {
		return nil, fmt.Errorf("run has no id")
	}

	st.Status = "in_progress"
	o.save(st)
	o.logf("run %s: %s", st.RunID, st.RepoURL)

	for {
		snap := st.Snapshot()
		action := pipeline.Decide(snap)
		o.event(st, db.EventDecision, string(snap.Stage), string(action), snap.Retry, "")
		o.log.Info("decision",
			zap.String("run_id", st.RunID),
			zap.String("stage", string(snap.Stage)),
			zap.Int("retry", snap.Retry),
			zap.String("action", string(action)))

		if action.IsTerminal() {
			o.finish(st, terminalStage(action))
			return o.result(st), nil
		}

		if err := ctx.Err(); err != nil {
			o.cancelRun(st, err)
			return o.result(st), nil
		}

		switch action {
		case pipeline.ActionAnalysis:
			o.runAnalysis(ctx, st, in)
		case pipeline.ActionImplementation:
			o.runImplementation(ctx, st, in)
		case pipeline.ActionResearch:
			o.runResearch(ctx, st)
		case pipeline.ActionDiff:
			o.runDiff(ctx, st)
		}

		o.save(st)
		if st.CurrentStage.IsTerminal() {
			return o.result(st), nil
		}
		if o.stopAfter != "" && st.CurrentStage == o.stopAfter {
			o.logf("stopping after %s", st.CurrentStage)
			return o.result(st), nil
		}
	}
}

func (o *Orchestrator) runAnalysis(ctx context.Context, st *pipeline.PipelineState, in Input) {
	o.logf("analyzing repository %s", st.RepoURL)

	start := time.Now()
	res, err := o.agents.Analyzer.Analyze(ctx, agent.AnalysisRequest{
		RepoURL:      st.RepoURL,
		RepoName:     in.RepoName,
		Instructions: st.AccumulatedInstructions,
		Files:        in.Files,
		Stack:        in.Stack,
	})
	outcome, errMsg := callOutcome(err)
	o.call(st, "analysis", 1, time.Since(start), outcome, errMsg)

	if err != nil {
		if canceled(err) {
			o.cancelRun(st, err)
			return
		}
		// No retry budget exists for analysis.
		st.LastErrorMessage = err.Error()
		o.logf("analysis failed: %v", err)
		o.finish(st, pipeline.StageReportFailure)
		return
	}

	_ = st.StoreResult(resultAnalysis, res)
	o.artifact(st, "analysis", 1, "response.json", res)
	st.CurrentStage = pipeline.StageAnalysisComplete
	o.event(st, db.EventStageComplete, string(st.CurrentStage), "analysis", st.RetryCount,
		fmt.Sprintf("%d files affected", len(res.AffectedFiles)))
	o.logf("analysis complete: %d files affected", len(res.AffectedFiles))
}

func (o *Orchestrator) runImplementation(ctx context.Context, st *pipeline.PipelineState, in Input) {
	attempt := st.RetryCount + 1
	o.logf("implementing changes (attempt %d)", attempt)

	start := time.Now()
	res, err := o.agents.Implementer.Implement(ctx, agent.ImplementationRequest{
		Instructions: st.AccumulatedInstructions,
		Files:        in.Files,
		Targets:      o.analysisTargets(st),
	})
	outcome, errMsg := callOutcome(err)
	if err == nil && !res.Success {
		outcome, errMsg = "fail", res.ErrorMessage
	}
	o.call(st, "implementation", attempt, time.Since(start), outcome, errMsg)

	if err != nil {
		if canceled(err) {
			o.cancelRun(st, err)
			return
		}
		// Transport and parse failures consume the retry budget just like
		// semantic failures.
		st.RecordFailure(err.Error(), nil)
		o.event(st, db.EventStageFailed, string(st.CurrentStage), "implementation", st.RetryCount, err.Error())
		o.logf("implementation failed: %v", err)
		return
	}

	_ = st.StoreResult(resultImplementation, res)
	o.artifact(st, "implementation", attempt, "response.json", res)

	if !res.Success {
		if len(res.ExecutionLogs) > 0 {
			o.artifact(st, "implementation", attempt, "logs.txt", strings.Join(res.ExecutionLogs, "\n"))
		}
		st.RecordFailure(res.ErrorMessage, res.ExecutionLogs)
		o.event(st, db.EventStageFailed, string(st.CurrentStage), "implementation", st.RetryCount, res.ErrorMessage)
		o.logf("implementation failed: %s", res.ErrorMessage)
		return
	}

	st.CurrentStage = pipeline.StageImplementationComplete
	o.event(st, db.EventStageComplete, string(st.CurrentStage), "implementation", st.RetryCount,
		fmt.Sprintf("%d files modified", len(res.ModifiedFiles)))
	o.logf("implementation complete: %d files modified", len(res.ModifiedFiles))
}

func (o *Orchestrator) runResearch(ctx context.Context, st *pipeline.PipelineState) {
	cycle := st.RetryCount + 1
	o.logf("researching failure (cycle %d/%d)", cycle, pipeline.MaxRetries)

	start := time.Now()
	res, err := o.agents.Researcher.Research(ctx, agent.ResearchRequest{
		RepoURL:       st.RepoURL,
		Instructions:  st.OriginalInstructions,
		ErrorMessage:  st.LastErrorMessage,
		ExecutionLogs: tail(st.ExecutionLogs, o.logTail),
	})
	outcome, errMsg := callOutcome(err)
	o.call(st, "research", cycle, time.Since(start), outcome, errMsg)

	if err != nil {
		if canceled(err) {
			o.cancelRun(st, err)
			return
		}
		// Research has no budget of its own. A backend that cannot answer
		// the research prompt will not answer the retry either.
		st.LastErrorMessage = err.Error()
		o.logf("research failed: %v", err)
		o.finish(st, pipeline.StageReportFailure)
		return
	}

	_ = st.StoreResult(resultResearch, res)
	o.artifact(st, "research", cycle, "response.json", res)

	best := res.Best()
	if best == nil {
		st.ApplyResearch("", "research")
		o.event(st, db.EventResearchApplied, string(st.CurrentStage), "research", st.RetryCount, "no usable solution")
		o.logf("research found no usable solution, retrying unchanged")
		return
	}

	text := best.Description
	if best.CodeSnippet != "" {
		text += "\n\n" + best.CodeSnippet
	}
	st.ApplyResearch(text, "research")
	o.event(st, db.EventResearchApplied, string(st.CurrentStage), "research", st.RetryCount, firstLine(best.Description))
	o.logf("research applied: %s", firstLine(best.Description))
}

func (o *Orchestrator) runDiff(ctx context.Context, st *pipeline.PipelineState) {
	o.logf("computing diff")

	impl, ok := o.implementationResult(st)
	if !ok {
		st.LastErrorMessage = "no implementation result to diff"
		o.finish(st, pipeline.StageReportFailure)
		return
	}

	base := make(map[string]string, len(impl.ModifiedFiles))
	mod := make(map[string]string, len(impl.ModifiedFiles))
	for _, f := range impl.ModifiedFiles {
		base[f.Path] = f.OriginalContent
		mod[f.Path] = f.ModifiedContent
	}

	start := time.Now()
	res, err := o.agents.Differ.Diff(ctx, agent.DiffRequest{Base: base, Modified: mod})
	outcome, errMsg := callOutcome(err)
	o.call(st, "diff", 1, time.Since(start), outcome, errMsg)

	if err != nil {
		if canceled(err) {
			o.cancelRun(st, err)
			return
		}
		st.LastErrorMessage = err.Error()
		o.logf("diff failed: %v", err)
		o.finish(st, pipeline.StageReportFailure)
		return
	}

	_ = st.StoreResult(resultDiff, res)
	o.artifact(st, "diff", 1, "response.json", res)
	st.CurrentStage = pipeline.StageDiffComplete
	o.event(st, db.EventStageComplete, string(st.CurrentStage), "diff", st.RetryCount, res.Summary)
	o.logf("%s", res.Summary)
}

// finish moves the run to a terminal stage, persists it, and records the
// terminal event.
func (o *Orchestrator) finish(st *pipeline.PipelineState, stage pipeline.Stage) {
	st.Finish(stage)
	o.save(st)
	o.event(st, db.EventTerminal, string(stage), string(stageAction(stage)), st.RetryCount, st.LastErrorMessage)
	o.log.Info("run finished",
		zap.String("run_id", st.RunID),
		zap.String("stage", string(stage)),
		zap.Int("retry", st.RetryCount))
	o.logf("run finished: %s (retries %d)", stage, st.RetryCount)
}

// cancelRun folds a context error into the state and finishes the run.
// Results stored before the cancellation stay in place.
func (o *Orchestrator) cancelRun(st *pipeline.PipelineState, err error) {
	st.LastErrorMessage = "canceled: " + err.Error()
	o.logf("run canceled: %v", err)
	o.finish(st, pipeline.StageReportFailure)
}

// analysisTargets extracts the affected-file plan from the stored analysis
// result. A missing or unreadable result means implementation falls back
// to every file in the snapshot.
func (o *Orchestrator) analysisTargets(st *pipeline.PipelineState) []agent.AffectedFile {
	raw, ok := st.Results[resultAnalysis]
	if !ok {
		return nil
	}
	var res agent.AnalysisResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil
	}
	return res.AffectedFiles
}

func (o *Orchestrator) implementationResult(st *pipeline.PipelineState) (*agent.ImplementationResult, bool) {
	raw, ok := st.Results[resultImplementation]
	if !ok {
		return nil, false
	}
	var res agent.ImplementationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false
	}
	return &res, true
}

func (o *Orchestrator) result(st *pipeline.PipelineState) *RunResult {
	return &RunResult{
		RunID:      st.RunID,
		FinalStage: st.CurrentStage,
		Status:     st.Status,
		RetryCount: st.RetryCount,
		LastError:  st.LastErrorMessage,
		Results:    st.Results,
	}
}

func (o *Orchestrator) save(st *pipeline.PipelineState) {
	if o.store == nil {
		return
	}
	if err := o.store.Save(st); err != nil {
		o.log.Warn("save run state", zap.String("run_id", st.RunID), zap.Error(err))
	}
}

func (o *Orchestrator) event(st *pipeline.PipelineState, event, stage, action string, retry int, detail string) {
	if o.events == nil {
		return
	}
	if err := o.events.LogRunEvent(st.RunID, event, stage, action, retry, detail); err != nil {
		o.log.Warn("log run event", zap.String("event", event), zap.Error(err))
	}
}

// call records one agent invocation in the event log and the run history.
func (o *Orchestrator) call(st *pipeline.PipelineState, agentName string, attempt int, d time.Duration, outcome, errMsg string) {
	st.RecordAttempt(agentName, attempt, outcome, d, errMsg)

	if o.events != nil {
		if err := o.events.LogAgentCall(st.RunID, agentName, o.model, attempt, d.Milliseconds(), outcome == "success", errMsg); err != nil {
			o.log.Warn("log agent call", zap.String("agent", agentName), zap.Error(err))
		}
	}
}

// callOutcome classifies an agent call error for the audit records.
func callOutcome(err error) (outcome, errMsg string) {
	switch {
	case err == nil:
		return "success", ""
	case canceled(err):
		return "canceled", err.Error()
	default:
		return "fail", err.Error()
	}
}

// artifact persists one named stage artifact, pretty-printed when given a
// non-string value.
func (o *Orchestrator) artifact(st *pipeline.PipelineState, stage string, attempt int, name string, v interface{}) {
	if o.store == nil {
		return
	}
	var data []byte
	switch val := v.(type) {
	case string:
		data = []byte(val)
	case []byte:
		data = val
	default:
		var err error
		data, err = json.MarshalIndent(v, "", "  ")
		if err != nil {
			o.log.Warn("marshal artifact", zap.String("name", name), zap.Error(err))
			return
		}
	}
	if err := o.store.SaveStageArtifact(st.RunID, stage, attempt, name, data); err != nil {
		o.log.Warn("save artifact", zap.String("name", name), zap.Error(err))
	}
}

func terminalStage(a pipeline.Action) pipeline.Stage {
	if a == pipeline.ActionDone {
		return pipeline.StageDone
	}
	return pipeline.StageReportFailure
}

func stageAction(s pipeline.Stage) pipeline.Action {
	if s == pipeline.StageDone {
		return pipeline.ActionDone
	}
	return pipeline.ActionReportFailure
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// tail returns the last n entries of logs.
func tail(logs []string, n int) []string {
	if n <= 0 || len(logs) <= n {
		return logs
	}
	return logs[len(logs)-n:]
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
