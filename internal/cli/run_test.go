package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/repofactor/repofactor/internal/agent"
	"github.com/repofactor/repofactor/internal/orchestrator"
	"github.com/repofactor/repofactor/internal/pipeline"
)

func TestResolveInstructions(t *testing.T) {
	if _, err := resolveInstructions("", ""); err == nil {
		t.Error("expected error when no instructions are given")
	}
	if _, err := resolveInstructions("do it", "some-file"); err == nil {
		t.Error("expected error when both flags are given")
	}

	got, err := resolveInstructions("add retry support", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "add retry support" {
		t.Errorf("instructions = %q", got)
	}
}

func TestResolveInstructionsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.txt")
	if err := os.WriteFile(path, []byte("  integrate the client\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := resolveInstructions("", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "integrate the client" {
		t.Errorf("instructions = %q", got)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveInstructions("", empty); err == nil {
		t.Error("expected error for empty instructions file")
	}

	if _, err := resolveInstructions("", filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing instructions file")
	}
}

func newOutCmd() (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	return cmd, buf
}

func mustResult(t *testing.T, key string, v interface{}) map[string]json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]json.RawMessage{key: data}
}

func TestReportRunDone(t *testing.T) {
	cmd, buf := newOutCmd()
	res := &orchestrator.RunResult{
		RunID:      "r1",
		FinalStage: pipeline.StageDone,
		Status:     "completed",
		Results: mustResult(t, "diff", &agent.DiffResult{
			UnifiedDiff: "--- base/a.go\n+++ mod/a.go\n",
			Summary:     "1 files changed, 2 lines added, 0 lines removed",
		}),
	}

	if err := reportRun(cmd, res, ""); err != nil {
		t.Fatalf("reportRun() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "+++ mod/a.go") {
		t.Errorf("output missing diff:\n%s", out)
	}
	if !strings.Contains(out, "1 files changed") {
		t.Errorf("output missing summary:\n%s", out)
	}
	if !strings.Contains(out, "Run r1 done") {
		t.Errorf("output missing outcome line:\n%s", out)
	}
}

func TestReportRunFailure(t *testing.T) {
	cmd, buf := newOutCmd()
	res := &orchestrator.RunResult{
		RunID:      "r2",
		FinalStage: pipeline.StageReportFailure,
		Status:     "failed",
		RetryCount: 3,
		LastError:  "tests failed",
	}

	err := reportRun(cmd, res, "")
	if err == nil {
		t.Fatal("expected error for a failed run")
	}
	if !strings.Contains(buf.String(), "Last error: tests failed") {
		t.Errorf("output missing last error:\n%s", buf.String())
	}
}

func TestReportRunDryRun(t *testing.T) {
	cmd, buf := newOutCmd()
	res := &orchestrator.RunResult{
		RunID:      "r3",
		FinalStage: pipeline.StageAnalysisComplete,
		Status:     "in_progress",
		Results: mustResult(t, "analysis", &agent.AnalysisResult{
			AffectedFiles: []agent.AffectedFile{
				{Path: "client.go", ChangeType: agent.ChangeModify, Reason: "add retries"},
			},
			Dependencies: []string{"backoff"},
		}),
	}

	if err := reportRun(cmd, res, ""); err != nil {
		t.Fatalf("reportRun() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Integration plan: 1 files") {
		t.Errorf("output missing plan:\n%s", out)
	}
	if !strings.Contains(out, "client.go") || !strings.Contains(out, "Dry run") {
		t.Errorf("output = %s", out)
	}
}

func TestWriteModifiedFiles(t *testing.T) {
	dir := t.TempDir()
	res := &orchestrator.RunResult{
		Results: mustResult(t, "implementation", &agent.ImplementationResult{
			Success: true,
			ModifiedFiles: []agent.ModifiedFile{
				{Path: "client.go", ModifiedContent: "package widget\n"},
				{Path: "internal/retry/retry.go", ModifiedContent: "package retry\n"},
			},
		}),
	}

	n, err := writeModifiedFiles(res, dir)
	if err != nil {
		t.Fatalf("writeModifiedFiles() error: %v", err)
	}
	if n != 2 {
		t.Errorf("wrote %d files, want 2", n)
	}

	data, err := os.ReadFile(filepath.Join(dir, "internal", "retry", "retry.go"))
	if err != nil {
		t.Fatalf("nested file not written: %v", err)
	}
	if string(data) != "package retry\n" {
		t.Errorf("content = %q", data)
	}
}

func TestWriteModifiedFilesRejectsTraversal(t *testing.T) {
	res := &orchestrator.RunResult{
		Results: mustResult(t, "implementation", &agent.ImplementationResult{
			Success: true,
			ModifiedFiles: []agent.ModifiedFile{
				{Path: "../evil.go", ModifiedContent: "x"},
			},
		}),
	}

	if _, err := writeModifiedFiles(res, t.TempDir()); err == nil {
		t.Fatal("expected error for path escaping the output dir")
	}
}

func TestWriteModifiedFilesRequiresResult(t *testing.T) {
	res := &orchestrator.RunResult{Results: map[string]json.RawMessage{}}
	if _, err := writeModifiedFiles(res, t.TempDir()); err == nil {
		t.Fatal("expected error when no implementation result exists")
	}
}
