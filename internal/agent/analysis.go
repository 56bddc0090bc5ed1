package agent

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/repofactor/repofactor/internal/backend"
	"github.com/repofactor/repofactor/internal/prompt"
)

const analysisSystem = `You are an expert code integration assistant. Analyze source repositories and produce detailed, practical integration recommendations: the modules involved, the dependencies required, the files that must change, the risks, and clear ordered implementation steps. Be specific and practical.`

// priorityPatterns boost files whose path suggests core functionality.
var priorityPatterns = []string{"main", "app", "core", "api", "model", "agent", "server", "index"}

// BackendAnalyzer is the reasoning-backed Analyzer.
type BackendAnalyzer struct {
	client   backend.Client
	log      *zap.Logger
	maxFiles int
}

// NewAnalyzer returns an Analyzer that sends at most maxFiles file excerpts
// to the backend per request.
func NewAnalyzer(client backend.Client, log *zap.Logger, maxFiles int) *BackendAnalyzer {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &BackendAnalyzer{client: client, log: log, maxFiles: maxFiles}
}

// Analyze plans the integration for the given repository snapshot.
func (a *BackendAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	selected := selectRelevantFiles(req.Files, a.maxFiles)

	p, err := prompt.Build("analysis.md", prompt.Vars{
		"instructions":  req.Instructions,
		"repo_url":      req.RepoURL,
		"repo_name":     req.RepoName,
		"stack":         strings.Join(req.Stack, ", "),
		"file_table":    fileTable(selected),
		"file_excerpts": fileExcerpts(selected),
	})
	if err != nil {
		return nil, fmt.Errorf("building analysis prompt: %w", err)
	}

	a.log.Debug("analysis prompt built",
		zap.Int("files_selected", len(selected)),
		zap.Int("prompt_chars", len(p)))

	raw, err := a.client.Generate(ctx, backend.Request{System: analysisSystem, Prompt: p})
	if err != nil {
		return nil, &CallError{Agent: "analysis", Err: err}
	}

	var res AnalysisResult
	if err := decodeResponse("analysis", raw, &res); err != nil {
		return nil, err
	}
	normalizeAnalysis(&res, req)

	a.log.Info("analysis complete",
		zap.Int("affected_files", len(res.AffectedFiles)),
		zap.Int("dependencies", len(res.Dependencies)))
	return &res, nil
}

// normalizeAnalysis fills the fields models routinely omit so downstream code
// never sees nils or unknown change types.
func normalizeAnalysis(res *AnalysisResult, req AnalysisRequest) {
	if res.RepoURL == "" {
		res.RepoURL = req.RepoURL
	}
	if res.RepoName == "" {
		res.RepoName = req.RepoName
	}
	for i := range res.AffectedFiles {
		f := &res.AffectedFiles[i]
		switch f.ChangeType {
		case ChangeModify, ChangeCreate, ChangeDelete:
		default:
			f.ChangeType = ChangeModify
		}
		if f.Confidence == 0 {
			f.Confidence = 0.5
		}
	}
	if res.AffectedFiles == nil {
		res.AffectedFiles = []AffectedFile{}
	}
	if res.Dependencies == nil {
		res.Dependencies = []string{}
	}
	if res.Risks == nil {
		res.Risks = []string{}
	}
	if res.ImplementationSteps == nil {
		res.ImplementationSteps = []string{}
	}
}

type scoredFile struct {
	path    string
	content string
	score   int
}

// selectRelevantFiles ranks files for the analysis prompt: priority-name
// matches score up, medium files score up, oversized and test files score
// down. The top limit files survive, ordered best first.
func selectRelevantFiles(files map[string]string, limit int) []scoredFile {
	scored := make([]scoredFile, 0, len(files))
	for path, content := range files {
		score := 0
		lower := strings.ToLower(path)

		for _, pat := range priorityPatterns {
			if strings.Contains(lower, pat) {
				score += 10
			}
		}

		size := len(content)
		if size > 500 && size < 5000 {
			score += 5
		} else if size > 10000 {
			score -= 3
		}

		if strings.Contains(lower, "test") {
			score -= 10
		}

		scored = append(scored, scoredFile{path: path, content: content, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].path < scored[j].path
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func fileTable(files []scoredFile) string {
	rows := make([][]string, len(files))
	for i, f := range files {
		rows[i] = []string{f.path, strconv.Itoa(len(f.content))}
	}
	return prompt.EncodeTable("files", []string{"path", "bytes"}, rows)
}

func fileExcerpts(files []scoredFile) string {
	const fence = "```"
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "### %s\n%s\n%s\n%s\n\n", f.path, fence, f.content, fence)
	}
	return strings.TrimRight(b.String(), "\n")
}
