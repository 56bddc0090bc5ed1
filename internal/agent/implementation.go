package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/repofactor/repofactor/internal/backend"
	"github.com/repofactor/repofactor/internal/prompt"
)

const implementSystem = `You are an expert software engineer. Apply the requested change to one file at a time and return the complete modified file content, nothing else.`

// BackendImplementer is the reasoning-backed Implementer. It works file by
// file: per-file failures are recorded in-band and the remaining files still
// run; only cancellation aborts the whole call.
type BackendImplementer struct {
	client backend.Client
	log    *zap.Logger
}

// NewImplementer returns the backend-driven Implementer.
func NewImplementer(client backend.Client, log *zap.Logger) *BackendImplementer {
	return &BackendImplementer{client: client, log: log}
}

// Implement applies the analysis plan to the snapshot files.
func (m *BackendImplementer) Implement(ctx context.Context, req ImplementationRequest) (*ImplementationResult, error) {
	targets := req.Targets
	if len(targets) == 0 {
		targets = allFilesAsTargets(req.Files)
	}

	res := &ImplementationResult{
		Success:       true,
		ModifiedFiles: []ModifiedFile{},
		ExecutionLogs: []string{},
	}
	var errMsgs []string

	for _, target := range targets {
		if ctx.Err() != nil {
			return nil, &CallError{Agent: "implementation", Err: ctx.Err()}
		}

		original, exists := req.Files[target.Path]

		switch target.ChangeType {
		case ChangeDelete:
			if !exists {
				res.ExecutionLogs = append(res.ExecutionLogs,
					fmt.Sprintf("file '%s' already absent, nothing to remove", target.Path))
				continue
			}
			res.ModifiedFiles = append(res.ModifiedFiles, ModifiedFile{
				Path:            target.Path,
				OriginalContent: original,
				ChangesMade:     []string{"file removed"},
			})
			res.ExecutionLogs = append(res.ExecutionLogs,
				fmt.Sprintf("file '%s' removed", target.Path))
			continue

		case ChangeCreate:
			// proceeds with empty original content

		default:
			if !exists {
				errMsgs = append(errMsgs,
					fmt.Sprintf("file '%s' not found in repository", target.Path))
				continue
			}
		}

		modified, err := m.modifyFile(ctx, req.Instructions, target, original)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &CallError{Agent: "implementation", Err: ctx.Err()}
			}
			m.log.Error("file modification failed",
				zap.String("path", target.Path), zap.Error(err))
			errMsgs = append(errMsgs,
				fmt.Sprintf("error processing file '%s': %v", target.Path, err))
			continue
		}

		if modified != "" && modified != original {
			changes := target.ChangesNeeded
			if len(changes) == 0 {
				changes = []string{"modified according to instructions"}
			}
			res.ModifiedFiles = append(res.ModifiedFiles, ModifiedFile{
				Path:            target.Path,
				OriginalContent: original,
				ModifiedContent: modified,
				ChangesMade:     changes,
			})
			res.ExecutionLogs = append(res.ExecutionLogs,
				fmt.Sprintf("file '%s' modified successfully", target.Path))
		} else {
			res.ExecutionLogs = append(res.ExecutionLogs,
				fmt.Sprintf("no changes needed for file '%s'", target.Path))
		}
	}

	if len(errMsgs) > 0 {
		res.Success = false
		res.ErrorMessage = strings.Join(errMsgs, "; ")
	}
	return res, nil
}

func (m *BackendImplementer) modifyFile(ctx context.Context, instructions string, target AffectedFile, original string) (string, error) {
	p, err := prompt.Build("implement.md", prompt.Vars{
		"instructions":   instructions,
		"path":           target.Path,
		"reason":         target.Reason,
		"changes_needed": bulletList(target.ChangesNeeded),
		"content":        original,
	})
	if err != nil {
		return "", fmt.Errorf("building implement prompt: %w", err)
	}

	raw, err := m.client.Generate(ctx, backend.Request{System: implementSystem, Prompt: p})
	if err != nil {
		return "", err
	}
	return extractCode(raw), nil
}

func allFilesAsTargets(files map[string]string) []AffectedFile {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	targets := make([]AffectedFile, len(paths))
	for i, p := range paths {
		targets[i] = AffectedFile{Path: p, ChangeType: ChangeModify}
	}
	return targets
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it)
	}
	return strings.TrimRight(b.String(), "\n")
}
