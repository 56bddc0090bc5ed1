package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// LocalDiffer computes unified diffs between the base and modified trees.
// It runs entirely locally; no backend call is involved.
type LocalDiffer struct{}

// NewDiffer returns the local Differ.
func NewDiffer() *LocalDiffer { return &LocalDiffer{} }

// Diff walks the union of both trees and produces one unified diff plus
// per-file accounting. Unchanged files are skipped.
func (d *LocalDiffer) Diff(ctx context.Context, req DiffRequest) (*DiffResult, error) {
	res := &DiffResult{FileSummaries: []FileSummary{}}
	var out strings.Builder

	for _, path := range unionPaths(req.Base, req.Modified) {
		base := req.Base[path]
		mod := req.Modified[path]
		if base == mod {
			continue
		}

		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        splitLines(base),
			B:        splitLines(mod),
			FromFile: "base/" + path,
			ToFile:   "mod/" + path,
			Context:  3,
		})
		if err != nil {
			return nil, fmt.Errorf("diffing %s: %w", path, err)
		}

		added, removed := countChanges(text)
		summary := FileSummary{Path: path, Added: added, Removed: removed}
		switch {
		case base == "":
			summary.Note = "File Added"
		case mod == "":
			summary.Note = "File Removed"
		}

		res.FileSummaries = append(res.FileSummaries, summary)
		res.FilesChanged++
		res.LinesAdded += added
		res.LinesRemoved += removed

		out.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			out.WriteString("\n")
		}
	}

	res.UnifiedDiff = out.String()
	res.Summary = fmt.Sprintf("%d files changed, %d lines added, %d lines removed",
		res.FilesChanged, res.LinesAdded, res.LinesRemoved)
	return res, nil
}

func unionPaths(base, modified map[string]string) []string {
	seen := make(map[string]bool, len(base)+len(modified))
	for p := range base {
		seen[p] = true
	}
	for p := range modified {
		seen[p] = true
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// splitLines returns nil for empty content so a missing file diffs as a pure
// addition or removal rather than a blank-line change.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return difflib.SplitLines(s)
}

// countChanges counts added and removed lines in a unified diff, excluding
// the +++/--- header lines.
func countChanges(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
