package pipeline

// Snapshot is the read-only view of a run that the decision function sees.
// It carries only the two fields a decision may depend on; nothing else in
// PipelineState can influence the outcome.
type Snapshot struct {
	Stage Stage
	Retry int
}

// Snapshot returns the decision view of the state.
func (ps *PipelineState) Snapshot() Snapshot {
	return Snapshot{Stage: ps.CurrentStage, Retry: ps.RetryCount}
}

// Decide maps a stage and retry count to the next action. It is pure and
// total: every input, including an unrecognized stage, yields an action.
// An unreachable stage must never silently proceed, so anything outside the
// known graph routes to report_failure.
func Decide(s Snapshot) Action {
	switch s.Stage {
	case StageStart:
		return ActionAnalysis
	case StageAnalysisComplete:
		return ActionImplementation
	case StageImplementationComplete:
		return ActionDiff
	case StageImplementationFailed:
		if s.Retry < MaxRetries {
			return ActionResearch
		}
		return ActionReportFailure
	case StageImplementationRetry:
		return ActionImplementation
	case StageDiffComplete:
		return ActionDone
	default:
		return ActionReportFailure
	}
}
