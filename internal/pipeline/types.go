package pipeline

import "encoding/json"

// Stage is a named point in the pipeline's control-flow graph.
type Stage string

const (
	StageStart                  Stage = "start"
	StageAnalysisComplete       Stage = "analysis_complete"
	StageImplementationComplete Stage = "implementation_complete"
	StageImplementationFailed   Stage = "implementation_failed"
	StageImplementationRetry    Stage = "implementation_retry"
	StageDiffComplete           Stage = "diff_complete"
	StageReportFailure          Stage = "report_failure"
	StageDone                   Stage = "done"
)

// MaxRetries is the ceiling on research→implementation retry cycles. Once the
// retry count reaches it, the only reachable terminal stage is report_failure.
const MaxRetries = 3

// ValidStages lists every stage in the pipeline graph.
var ValidStages = []Stage{
	StageStart,
	StageAnalysisComplete,
	StageImplementationComplete,
	StageImplementationFailed,
	StageImplementationRetry,
	StageDiffComplete,
	StageReportFailure,
	StageDone,
}

// IsValidStage checks whether a string names a stage in the pipeline graph.
func IsValidStage(s string) bool {
	for _, st := range ValidStages {
		if string(st) == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the stage ends the run.
func (s Stage) IsTerminal() bool {
	return s == StageReportFailure || s == StageDone
}

// Action is a decision outcome: the agent to invoke next, or a terminal verdict.
type Action string

const (
	ActionAnalysis       Action = "analysis"
	ActionImplementation Action = "implementation"
	ActionResearch       Action = "research"
	ActionDiff           Action = "diff"
	ActionReportFailure  Action = "report_failure"
	ActionDone           Action = "done"
)

// IsTerminal reports whether the action ends the run loop.
func (a Action) IsTerminal() bool {
	return a == ActionReportFailure || a == ActionDone
}

// PipelineState is the top-level persisted state for a single integration run.
// The orchestrator is its only writer; everything else reads.
type PipelineState struct {
	RunID                   string                     `json:"run_id"`
	RepoURL                 string                     `json:"repo_url"`
	CurrentStage            Stage                      `json:"current_stage"`
	RetryCount              int                        `json:"retry_count"`
	LastErrorMessage        string                     `json:"last_error_message,omitempty"`
	ExecutionLogs           []string                   `json:"execution_logs"`
	OriginalInstructions    string                     `json:"original_instructions"`
	AccumulatedInstructions string                     `json:"accumulated_instructions"`
	RecoveryNotes           []RecoveryNote             `json:"recovery_notes"`
	Results                 map[string]json.RawMessage `json:"results"`
	Attempts                []AttemptRecord            `json:"attempts"`
	Status                  string                     `json:"status"` // "pending", "in_progress", "completed", "failed"
	CreatedAt               string                     `json:"created_at"`
	UpdatedAt               string                     `json:"updated_at"`
}

// RecoveryNote is one unit of research-derived guidance appended to the
// instructions after a failed implementation attempt, tagged with the retry
// cycle that produced it.
type RecoveryNote struct {
	Retry     int    `json:"retry"`
	Source    string `json:"source"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// AttemptRecord records the outcome of one agent invocation.
type AttemptRecord struct {
	Agent    string `json:"agent"`
	Attempt  int    `json:"attempt"`
	Outcome  string `json:"outcome"` // "success", "fail", "canceled"
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}
