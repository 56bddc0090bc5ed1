package agent

// Change kinds reported by the analysis agent. Unknown values normalize to
// ChangeModify.
const (
	ChangeModify = "modify"
	ChangeCreate = "create"
	ChangeDelete = "delete"
)

// AffectedFile is one file the analysis expects to change.
type AffectedFile struct {
	Path          string   `json:"path"`
	Reason        string   `json:"reason"`
	ChangeType    string   `json:"change_type"`
	Confidence    float64  `json:"confidence"`
	Dependencies  []string `json:"dependencies,omitempty"`
	ChangesNeeded []string `json:"changes_needed,omitempty"`
}

// AnalysisResult is the analysis agent's integration plan.
type AnalysisResult struct {
	RepoURL             string         `json:"repo_url"`
	RepoName            string         `json:"repo_name"`
	AffectedFiles       []AffectedFile `json:"affected_files"`
	Dependencies        []string       `json:"dependencies"`
	ImportsToAdd        []string       `json:"imports_to_add,omitempty"`
	Risks               []string       `json:"risks,omitempty"`
	ImplementationSteps []string       `json:"implementation_steps,omitempty"`
	EstimatedTime       string         `json:"estimated_time,omitempty"`
}

// ModifiedFile is one file the implementation agent changed.
type ModifiedFile struct {
	Path            string   `json:"path"`
	OriginalContent string   `json:"original_content"`
	ModifiedContent string   `json:"modified_content"`
	ChangesMade     []string `json:"changes_made,omitempty"`
}

// ImplementationResult reports the implementation outcome. Success=false is a
// semantic failure: the call itself worked but the changes did not.
type ImplementationResult struct {
	Success       bool           `json:"success"`
	ModifiedFiles []ModifiedFile `json:"modified_files"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	ExecutionLogs []string       `json:"execution_logs"`
}

// Files returns the modified tree as path → content.
func (r *ImplementationResult) Files() map[string]string {
	out := make(map[string]string, len(r.ModifiedFiles))
	for _, f := range r.ModifiedFiles {
		out[f.Path] = f.ModifiedContent
	}
	return out
}

// Solution is one proposed fix from the research agent. Lower rank is better.
type Solution struct {
	Description string `json:"description"`
	CodeSnippet string `json:"code_snippet,omitempty"`
	Rank        int    `json:"rank"`
}

// ResearchResult is the research agent's set of proposed fixes.
type ResearchResult struct {
	Solutions     []Solution `json:"solutions"`
	SearchQueries []string   `json:"search_queries,omitempty"`
}

// Best returns the lowest-ranked solution, ties broken by order, or nil when
// there are no solutions.
func (r *ResearchResult) Best() *Solution {
	if r == nil || len(r.Solutions) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(r.Solutions); i++ {
		if r.Solutions[i].Rank < r.Solutions[best].Rank {
			best = i
		}
	}
	return &r.Solutions[best]
}

// FileSummary is the per-file accounting for one diffed path.
type FileSummary struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	Note    string `json:"note,omitempty"` // "File Added" or "File Removed"
}

// DiffResult is the diff agent's output.
type DiffResult struct {
	UnifiedDiff   string        `json:"unified_diff"`
	FileSummaries []FileSummary `json:"file_summaries"`
	FilesChanged  int           `json:"files_changed"`
	LinesAdded    int           `json:"lines_added"`
	LinesRemoved  int           `json:"lines_removed"`
	Summary       string        `json:"summary"`
}
