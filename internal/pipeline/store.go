package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Store manages run state on disk. Each run gets its own directory holding
// run.json plus per-stage artifacts under stages/<stage>/attempt-<n>/.
type Store struct {
	baseDir string // defaults to ~/.repofactor/runs
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.repofactor/runs, creating the directory
// if needed.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".repofactor", "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Store{baseDir: dir}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

func (s *Store) statePath(runID string) string {
	return filepath.Join(s.runDir(runID), "run.json")
}

func (s *Store) attemptDir(runID string, stage string, attempt int) string {
	return filepath.Join(s.runDir(runID), "stages", stage, fmt.Sprintf("attempt-%d", attempt))
}

// Create writes a fresh run to disk. It fails if the run already exists.
func (s *Store) Create(ps *PipelineState) error {
	if ps.RunID == "" {
		return fmt.Errorf("run has no id")
	}
	dir := s.runDir(ps.RunID)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("run %s already exists", ps.RunID)
	}
	if err := os.MkdirAll(filepath.Join(dir, "stages"), 0o755); err != nil {
		return fmt.Errorf("mkdir stages: %w", err)
	}
	return writeJSON(s.statePath(ps.RunID), ps)
}

// Get reads the state of a run.
func (s *Store) Get(runID string) (*PipelineState, error) {
	var ps PipelineState
	if err := readJSON(s.statePath(runID), &ps); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, err
	}
	return &ps, nil
}

// Save persists the current state, bumping its updated_at timestamp.
func (s *Store) Save(ps *PipelineState) error {
	ps.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return writeJSON(s.statePath(ps.RunID), ps)
}

// Update performs an atomic read-modify-write of a run's state.
func (s *Store) Update(runID string, fn func(*PipelineState)) error {
	ps, err := s.Get(runID)
	if err != nil {
		return err
	}
	fn(ps)
	return s.Save(ps)
}

// List returns all runs, optionally filtered by status. Pass "" to return
// everything. Runs are ordered oldest first.
func (s *Store) List(statusFilter string) ([]PipelineState, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", s.baseDir, err)
	}

	var runs []PipelineState
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ps, err := s.Get(entry.Name())
		if err != nil {
			continue // skip broken entries
		}
		if statusFilter == "" || ps.Status == statusFilter {
			runs = append(runs, *ps)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt != runs[j].CreatedAt {
			return runs[i].CreatedAt < runs[j].CreatedAt
		}
		return runs[i].RunID < runs[j].RunID
	})
	return runs, nil
}

// Delete removes all data for a run.
func (s *Store) Delete(runID string) error {
	dir := s.runDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("run %s not found", runID)
	}
	return os.RemoveAll(dir)
}

// SaveStageArtifact writes a named artifact (request, response, logs) for a
// stage attempt.
func (s *Store) SaveStageArtifact(runID string, stage string, attempt int, name string, data []byte) error {
	dir := s.attemptDir(runID, stage, attempt)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir attempt dir: %w", err)
	}
	return writeAtomic(filepath.Join(dir, name), data)
}

// ReadStageArtifact reads a named artifact for a stage attempt.
func (s *Store) ReadStageArtifact(runID string, stage string, attempt int, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.attemptDir(runID, stage, attempt), name))
}

// writeAtomic writes data to path via a temp file in the same directory plus
// a rename, so readers never observe a partial state file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	tmpName = "" // prevent deferred removal
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')
	return writeAtomic(path, data)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}
