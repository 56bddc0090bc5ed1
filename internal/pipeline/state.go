package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewState creates the state for a fresh integration run. The accumulated
// instructions start equal to the original instructions and only ever grow.
func NewState(repoURL string, instructions string) *PipelineState {
	now := time.Now().UTC().Format(time.RFC3339)
	return &PipelineState{
		RunID:                   uuid.NewString(),
		RepoURL:                 repoURL,
		CurrentStage:            StageStart,
		RetryCount:              0,
		ExecutionLogs:           []string{},
		OriginalInstructions:    instructions,
		AccumulatedInstructions: instructions,
		RecoveryNotes:           []RecoveryNote{},
		Results:                 map[string]json.RawMessage{},
		Attempts:                []AttemptRecord{},
		Status:                  "pending",
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// RecordFailure captures a failed implementation attempt. The message lands in
// last_error_message verbatim (overwriting any prior failure), the produced
// logs are appended to execution_logs, and the stage moves to
// implementation_failed.
func (ps *PipelineState) RecordFailure(msg string, logs []string) {
	ps.LastErrorMessage = msg
	ps.ExecutionLogs = append(ps.ExecutionLogs, logs...)
	ps.CurrentStage = StageImplementationFailed
}

// ApplyResearch starts a retry cycle. A non-empty note is recorded in
// recovery_notes and appended to the accumulated instructions under a
// delimited marker; an empty note leaves the instructions unchanged. Either
// way the retry count increments exactly once and the stage moves to
// implementation_retry.
func (ps *PipelineState) ApplyResearch(text string, source string) {
	ps.RetryCount++
	if text != "" {
		note := RecoveryNote{
			Retry:     ps.RetryCount,
			Source:    source,
			Text:      text,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		ps.RecoveryNotes = append(ps.RecoveryNotes, note)
		ps.AccumulatedInstructions += FormatRecoveryNote(note)
	}
	ps.CurrentStage = StageImplementationRetry
}

// FormatRecoveryNote renders the delimited block appended to the accumulated
// instructions for one recovery note.
func FormatRecoveryNote(n RecoveryNote) string {
	return fmt.Sprintf("\n\n--- recovery note #%d ---\n%s", n.Retry, n.Text)
}

// StoreResult records a stage's output artifact under key, overwriting any
// entry left by a previous attempt of the same stage. Entries for other
// stages are untouched.
func (ps *PipelineState) StoreResult(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s result: %w", key, err)
	}
	if ps.Results == nil {
		ps.Results = map[string]json.RawMessage{}
	}
	ps.Results[key] = data
	return nil
}

// RecordAttempt appends one agent invocation outcome to the run history.
func (ps *PipelineState) RecordAttempt(agent string, attempt int, outcome string, d time.Duration, errMsg string) {
	ps.Attempts = append(ps.Attempts, AttemptRecord{
		Agent:    agent,
		Attempt:  attempt,
		Outcome:  outcome,
		Duration: d.Round(time.Millisecond).String(),
		Error:    errMsg,
	})
}

// Finish moves the run to a terminal stage and sets the matching final status.
func (ps *PipelineState) Finish(stage Stage) {
	ps.CurrentStage = stage
	switch stage {
	case StageDone:
		ps.Status = "completed"
	case StageReportFailure:
		ps.Status = "failed"
	}
}
