// Package repo clones repositories and exposes their files as in-memory
// snapshots for the agents.
package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"
)

// CloneService shallow-clones repositories into a local cache directory,
// one directory per owner/name.
type CloneService struct {
	cacheDir string
	log      *zap.Logger
}

// NewCloneService creates the service and its cache directory. An empty
// cacheDir defaults to ~/.repofactor/cache.
func NewCloneService(cacheDir string, log *zap.Logger) (*CloneService, error) {
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		cacheDir = filepath.Join(home, ".repofactor", "cache")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &CloneService{cacheDir: cacheDir, log: log}, nil
}

// Clone shallow-clones url into the cache and returns a snapshot handle.
// The remote's default branch is tried first, then master for repositories
// whose HEAD is misconfigured. An existing cached clone is replaced.
func (s *CloneService) Clone(ctx context.Context, url string) (*Snapshot, error) {
	owner, name, err := splitRepoURL(url)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.cacheDir, owner, name)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clearing cached clone: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("creating clone dir: %w", err)
	}

	s.log.Info("cloning repository", zap.String("url", url), zap.String("dir", dir))

	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
	})
	if err != nil && ctx.Err() == nil {
		// Some remotes advertise a HEAD that cannot be resolved; retry
		// pinned to master.
		s.log.Warn("default branch clone failed, trying master", zap.Error(err))
		_ = os.RemoveAll(dir)
		_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:           url,
			Depth:         1,
			SingleBranch:  true,
			ReferenceName: plumbing.NewBranchReferenceName("master"),
		})
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning %s: %w", url, err)
	}

	return &Snapshot{URL: url, Owner: owner, Name: name, Dir: dir}, nil
}

// CleanCache removes cached clones older than maxAge and returns the removed
// paths.
func (s *CloneService) CleanCache(maxAge time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-maxAge)
	var removed []string

	owners, err := os.ReadDir(s.cacheDir)
	if err != nil {
		return nil, fmt.Errorf("reading cache dir: %w", err)
	}
	for _, owner := range owners {
		if !owner.IsDir() {
			continue
		}
		ownerDir := filepath.Join(s.cacheDir, owner.Name())
		repos, err := os.ReadDir(ownerDir)
		if err != nil {
			continue
		}
		for _, r := range repos {
			info, err := r.Info()
			if err != nil || !r.IsDir() {
				continue
			}
			if info.ModTime().Before(cutoff) {
				path := filepath.Join(ownerDir, r.Name())
				if err := os.RemoveAll(path); err != nil {
					s.log.Warn("failed to remove cached clone",
						zap.String("path", path), zap.Error(err))
					continue
				}
				removed = append(removed, path)
			}
		}
	}
	return removed, nil
}

// splitRepoURL extracts owner and repository name from the last two path
// segments of a git URL. Works for https, ssh, and scp-style forms.
func splitRepoURL(url string) (owner, name string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	trimmed = strings.ReplaceAll(trimmed, ":", "/")

	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("cannot determine owner/name from url %q", url)
	}
	owner = parts[len(parts)-2]
	name = parts[len(parts)-1]
	if owner == "" || name == "" {
		return "", "", fmt.Errorf("cannot determine owner/name from url %q", url)
	}
	return owner, name, nil
}
