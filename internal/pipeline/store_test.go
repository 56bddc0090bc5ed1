package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestStoreCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	ps := NewState("https://github.com/acme/widgets", "add a rate limiter")
	if err := s.Create(ps); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ps.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RunID != ps.RunID {
		t.Errorf("RunID = %q, want %q", got.RunID, ps.RunID)
	}
	if got.RepoURL != "https://github.com/acme/widgets" {
		t.Errorf("RepoURL = %q", got.RepoURL)
	}
	if got.CurrentStage != StageStart {
		t.Errorf("CurrentStage = %q, want %q", got.CurrentStage, StageStart)
	}
	if got.OriginalInstructions != "add a rate limiter" {
		t.Errorf("OriginalInstructions = %q", got.OriginalInstructions)
	}
	if got.Results == nil {
		t.Error("Results map lost in round-trip")
	}
}

func TestStoreCreateDuplicate(t *testing.T) {
	s := newTestStore(t)

	ps := NewState("https://github.com/acme/widgets", "x")
	if err := s.Create(ps); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ps); err == nil {
		t.Fatal("expected error creating duplicate run")
	}
}

func TestStoreCreateWithoutID(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create(&PipelineState{}); err == nil {
		t.Fatal("expected error creating run without id")
	}
}

func TestStoreGetNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("no-such-run"); err == nil {
		t.Fatal("expected error for non-existent run")
	}
}

func TestStoreSaveRoundTrip(t *testing.T) {
	s := newTestStore(t)

	ps := NewState("https://github.com/acme/widgets", "x")
	if err := s.Create(ps); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ps.CurrentStage = StageAnalysisComplete
	ps.Status = "in_progress"
	ps.ExecutionLogs = append(ps.ExecutionLogs, "cloned repository")
	if err := s.Save(ps); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ps.RunID)
	if err != nil {
		t.Fatalf("Get after Save: %v", err)
	}
	if got.CurrentStage != StageAnalysisComplete {
		t.Errorf("CurrentStage = %q, want %q", got.CurrentStage, StageAnalysisComplete)
	}
	if got.Status != "in_progress" {
		t.Errorf("Status = %q, want %q", got.Status, "in_progress")
	}
	if len(got.ExecutionLogs) != 1 {
		t.Errorf("ExecutionLogs has %d entries, want 1", len(got.ExecutionLogs))
	}
	if got.UpdatedAt == "" {
		t.Error("UpdatedAt should be set after Save")
	}
}

func TestStoreUpdate(t *testing.T) {
	s := newTestStore(t)

	ps := NewState("https://github.com/acme/widgets", "x")
	if err := s.Create(ps); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := s.Update(ps.RunID, func(st *PipelineState) {
		st.RetryCount = 2
		st.LastErrorMessage = "still broken"
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := s.Get(ps.RunID)
	if got.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", got.RetryCount)
	}
	if got.LastErrorMessage != "still broken" {
		t.Errorf("LastErrorMessage = %q", got.LastErrorMessage)
	}
}

func TestStoreUpdateNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Update("missing", func(st *PipelineState) { st.Status = "failed" })
	if err == nil {
		t.Fatal("expected error updating non-existent run")
	}
}

func TestStoreList(t *testing.T) {
	s := newTestStore(t)

	a := NewState("https://github.com/acme/a", "x")
	a.CreatedAt = "2026-01-01T00:00:00Z"
	b := NewState("https://github.com/acme/b", "x")
	b.CreatedAt = "2026-01-02T00:00:00Z"
	if err := s.Create(a); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if err := s.Create(b); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	_ = s.Update(b.RunID, func(st *PipelineState) { st.Status = "in_progress" })

	all, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List returned %d, want 2", len(all))
	}
	if all[0].RunID != a.RunID {
		t.Error("List should order oldest first")
	}

	pending, err := s.List("pending")
	if err != nil {
		t.Fatalf("List pending: %v", err)
	}
	if len(pending) != 1 || pending[0].RunID != a.RunID {
		t.Errorf("List pending = %d entries", len(pending))
	}
}

func TestStoreListEmpty(t *testing.T) {
	s := newTestStore(t)
	all, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("List returned %d, want 0", len(all))
	}
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)

	ps := NewState("https://github.com/acme/widgets", "x")
	_ = s.Create(ps)

	if err := s.Delete(ps.RunID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ps.RunID); err == nil {
		t.Fatal("expected error after Delete")
	}
	if err := s.Delete(ps.RunID); err == nil {
		t.Fatal("expected error deleting twice")
	}
}

func TestStoreStageArtifacts(t *testing.T) {
	s := newTestStore(t)

	ps := NewState("https://github.com/acme/widgets", "x")
	_ = s.Create(ps)

	data := []byte("## request\n\nfix the handler\n")
	if err := s.SaveStageArtifact(ps.RunID, "implementation", 2, "request.md", data); err != nil {
		t.Fatalf("SaveStageArtifact: %v", err)
	}

	got, err := s.ReadStageArtifact(ps.RunID, "implementation", 2, "request.md")
	if err != nil {
		t.Fatalf("ReadStageArtifact: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("artifact = %q, want %q", got, data)
	}

	dir := s.attemptDir(ps.RunID, "implementation", 2)
	if _, err := os.Stat(filepath.Join(dir, "request.md")); err != nil {
		t.Errorf("artifact file missing: %v", err)
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")

	if err := writeAtomic(path, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("writeAtomic: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "run.json" {
			t.Errorf("unexpected file remaining: %s", e.Name())
		}
	}
}
