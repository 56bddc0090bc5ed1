package pipeline

import "testing"

func TestDecideTable(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
		retry int
		want  Action
	}{
		{"start", StageStart, 0, ActionAnalysis},
		{"analysis complete", StageAnalysisComplete, 0, ActionImplementation},
		{"implementation complete", StageImplementationComplete, 0, ActionDiff},
		{"first failure", StageImplementationFailed, 0, ActionResearch},
		{"second failure", StageImplementationFailed, 1, ActionResearch},
		{"third failure", StageImplementationFailed, 2, ActionResearch},
		{"retries exhausted", StageImplementationFailed, 3, ActionReportFailure},
		{"beyond ceiling", StageImplementationFailed, 4, ActionReportFailure},
		{"retry pending", StageImplementationRetry, 2, ActionImplementation},
		{"diff complete", StageDiffComplete, 0, ActionDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(Snapshot{Stage: tt.stage, Retry: tt.retry})
			if got != tt.want {
				t.Errorf("Decide(%s, %d) = %q, want %q", tt.stage, tt.retry, got, tt.want)
			}
		})
	}
}

func TestDecideRetryBoundary(t *testing.T) {
	// Exactly at the ceiling the pipeline must escalate, not research again.
	got := Decide(Snapshot{Stage: StageImplementationFailed, Retry: MaxRetries})
	if got != ActionReportFailure {
		t.Errorf("Decide at retry == %d = %q, want %q", MaxRetries, got, ActionReportFailure)
	}
	got = Decide(Snapshot{Stage: StageImplementationFailed, Retry: MaxRetries - 1})
	if got != ActionResearch {
		t.Errorf("Decide at retry == %d = %q, want %q", MaxRetries-1, got, ActionResearch)
	}
}

func TestDecideRetryIrrelevantForOtherStages(t *testing.T) {
	// Only implementation_failed consults the retry count; every other stage
	// must map to the same action regardless of it.
	stages := []Stage{
		StageStart,
		StageAnalysisComplete,
		StageImplementationComplete,
		StageImplementationRetry,
		StageDiffComplete,
		StageReportFailure,
		StageDone,
	}
	for _, stage := range stages {
		base := Decide(Snapshot{Stage: stage, Retry: 0})
		for _, retry := range []int{1, 2, 3, 4} {
			got := Decide(Snapshot{Stage: stage, Retry: retry})
			if got != base {
				t.Errorf("Decide(%s, %d) = %q, differs from retry 0 result %q", stage, retry, got, base)
			}
		}
	}
}

func TestDecideUnknownStage(t *testing.T) {
	for _, stage := range []string{"bogus_stage", "", "init", "analysis"} {
		got := Decide(Snapshot{Stage: Stage(stage), Retry: 0})
		if got != ActionReportFailure {
			t.Errorf("Decide(%q) = %q, want %q", stage, got, ActionReportFailure)
		}
	}
}

func TestDecideIdempotent(t *testing.T) {
	for _, stage := range ValidStages {
		for retry := 0; retry <= 4; retry++ {
			snap := Snapshot{Stage: stage, Retry: retry}
			first := Decide(snap)
			second := Decide(snap)
			if first != second {
				t.Errorf("Decide(%s, %d) not stable: %q then %q", stage, retry, first, second)
			}
		}
	}
}

func TestSnapshotCarriesOnlyDecisionFields(t *testing.T) {
	ps := NewState("https://github.com/acme/widgets", "add a widget")
	ps.CurrentStage = StageImplementationFailed
	ps.RetryCount = 2
	ps.LastErrorMessage = "compile error"
	ps.ExecutionLogs = append(ps.ExecutionLogs, "building...")

	snap := ps.Snapshot()
	if snap.Stage != StageImplementationFailed {
		t.Errorf("Snapshot.Stage = %q, want %q", snap.Stage, StageImplementationFailed)
	}
	if snap.Retry != 2 {
		t.Errorf("Snapshot.Retry = %d, want 2", snap.Retry)
	}
}

func TestStageAndActionTerminality(t *testing.T) {
	for _, stage := range ValidStages {
		want := stage == StageReportFailure || stage == StageDone
		if stage.IsTerminal() != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", stage, stage.IsTerminal(), want)
		}
	}
	if !ActionDone.IsTerminal() || !ActionReportFailure.IsTerminal() {
		t.Error("done and report_failure actions must be terminal")
	}
	for _, a := range []Action{ActionAnalysis, ActionImplementation, ActionResearch, ActionDiff} {
		if a.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", a)
		}
	}
}

func TestIsValidStage(t *testing.T) {
	for _, stage := range ValidStages {
		if !IsValidStage(string(stage)) {
			t.Errorf("IsValidStage(%q) = false, want true", stage)
		}
	}
	for _, s := range []string{"bogus_stage", "", "Start", "done "} {
		if IsValidStage(s) {
			t.Errorf("IsValidStage(%q) = true, want false", s)
		}
	}
}
