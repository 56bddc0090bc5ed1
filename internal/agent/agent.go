// Package agent defines the four pipeline agents and their request/result
// contracts. The analysis, implementation, and research agents are backed by
// the reasoning service; the diff agent runs locally. The orchestrator only
// sees the interfaces, so tests substitute hand-rolled fakes.
package agent

import "context"

// Analyzer inspects a repository snapshot and plans the integration.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

// Implementer applies the planned changes file by file.
type Implementer interface {
	Implement(ctx context.Context, req ImplementationRequest) (*ImplementationResult, error)
}

// Researcher investigates an implementation failure and proposes fixes.
type Researcher interface {
	Research(ctx context.Context, req ResearchRequest) (*ResearchResult, error)
}

// Differ computes the unified diff between the original and modified trees.
type Differ interface {
	Diff(ctx context.Context, req DiffRequest) (*DiffResult, error)
}

// AnalysisRequest carries the repository snapshot and the user's task.
type AnalysisRequest struct {
	RepoURL      string
	RepoName     string
	Instructions string
	Files        map[string]string // path → content
	Stack        []string          // detected languages, optional
}

// ImplementationRequest carries the files to modify and the accumulated
// instructions (original task plus any recovery notes from research cycles).
type ImplementationRequest struct {
	Instructions string
	Files        map[string]string // path → current content
	Targets      []AffectedFile    // analysis plan; empty means every file
}

// ResearchRequest describes an implementation failure. ExecutionLogs is
// already bounded to a tail by the caller.
type ResearchRequest struct {
	RepoURL       string
	Instructions  string // original instructions, not the accumulated ones
	ErrorMessage  string
	ExecutionLogs []string
}

// DiffRequest holds the two file trees to compare.
type DiffRequest struct {
	Base     map[string]string
	Modified map[string]string
}
