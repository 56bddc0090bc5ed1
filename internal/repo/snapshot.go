package repo

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Snapshot is a cloned repository on local disk.
type Snapshot struct {
	URL   string
	Owner string
	Name  string
	Dir   string
}

// skipDirs are never walked into a snapshot.
var skipDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"dist":         true,
	"build":        true,
	".idea":        true,
	".vscode":      true,
}

// Files walks the snapshot and returns path → content for every regular
// text file up to maxFileBytes. Paths are slash-separated and relative to
// the repository root; binary files and hidden files are skipped.
func (s *Snapshot) Files(maxFileBytes int64) (map[string]string, error) {
	files := make(map[string]string)

	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()

		if d.IsDir() {
			if path != s.Dir && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if maxFileBytes > 0 && info.Size() > maxFileBytes {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if isBinary(data) {
			return nil
		}

		rel, err := filepath.Rel(s.Dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.Dir, err)
	}
	return files, nil
}

// Read returns one file's content. The path must stay inside the snapshot.
func (s *Snapshot) Read(relPath string) (string, error) {
	root, err := filepath.Abs(s.Dir)
	if err != nil {
		return "", err
	}
	full, err := filepath.Abs(filepath.Join(s.Dir, filepath.FromSlash(relPath)))
	if err != nil {
		return "", err
	}
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the repository", relPath)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", relPath, err)
	}
	return string(data), nil
}

// Stat reports the size in bytes of a file inside the snapshot.
func (s *Snapshot) Stat(relPath string) (int64, error) {
	root, err := filepath.Abs(s.Dir)
	if err != nil {
		return 0, err
	}
	full, err := filepath.Abs(filepath.Join(s.Dir, filepath.FromSlash(relPath)))
	if err != nil {
		return 0, err
	}
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return 0, fmt.Errorf("path %q escapes the repository", relPath)
	}

	fi, err := os.Stat(full)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", relPath, err)
	}
	return fi.Size(), nil
}

// Cleanup removes the clone from disk.
func (s *Snapshot) Cleanup() error {
	return os.RemoveAll(s.Dir)
}

// isBinary sniffs for a NUL byte in the first 8KB.
func isBinary(data []byte) bool {
	n := len(data)
	if n > 8000 {
		n = 8000
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}
