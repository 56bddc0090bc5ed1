// Package github validates repositories against the GitHub API before a run
// starts, so bad URLs fail fast instead of mid-pipeline.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// ErrNotFound marks a repository the API reports as missing or inaccessible.
var ErrNotFound = errors.New("repository not found")

var repoURLPattern = regexp.MustCompile(`github\.com[:/]([\w.-]+)/([\w.-]+?)(?:\.git)?/?$`)

// ParseRepoURL extracts owner and repository name from a github.com URL in
// https, ssh, or scp-like form.
func ParseRepoURL(url string) (owner, name string, err error) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", "", fmt.Errorf("not a recognizable GitHub repository URL: %q", url)
	}
	return m[1], m[2], nil
}

// IsRepoURL reports whether url looks like a GitHub repository URL.
func IsRepoURL(url string) bool {
	_, _, err := ParseRepoURL(url)
	return err == nil
}

// RepoInfo is the metadata the pre-flight check cares about.
type RepoInfo struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description,omitempty"`
	DefaultBranch string `json:"default_branch"`
	Language      string `json:"language,omitempty"`
	Stars         int    `json:"stars"`
	Private       bool   `json:"private"`
}

// repoGetter is the slice of the GitHub API the client needs. Tests
// substitute a fake.
type repoGetter interface {
	Get(ctx context.Context, owner, repo string) (*gh.Repository, *gh.Response, error)
}

// Client wraps the GitHub API for repository validation.
type Client struct {
	repos repoGetter
}

// NewClient builds a Client. With an empty token the client is anonymous,
// which works for public repositories at a lower rate limit.
func NewClient(ctx context.Context, token string) *Client {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	return &Client{repos: gh.NewClient(httpClient).Repositories}
}

// Validate checks that url names an accessible repository and returns its
// metadata. A 404 maps to ErrNotFound.
func (c *Client) Validate(ctx context.Context, url string) (*RepoInfo, error) {
	owner, name, err := ParseRepoURL(url)
	if err != nil {
		return nil, err
	}

	repo, resp, err := c.repos.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s/%s: %w", owner, name, ErrNotFound)
		}
		return nil, fmt.Errorf("querying repository %s/%s: %w", owner, name, err)
	}

	return &RepoInfo{
		Owner:         owner,
		Name:          name,
		FullName:      repo.GetFullName(),
		Description:   repo.GetDescription(),
		DefaultBranch: repo.GetDefaultBranch(),
		Language:      repo.GetLanguage(),
		Stars:         repo.GetStargazersCount(),
		Private:       repo.GetPrivate(),
	}, nil
}
