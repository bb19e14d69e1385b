// Package git reads commit metadata for board files. It shells out to the
// git binary and never writes to the repository.
package git

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoCommits is returned when a path has no commit history, either because
// it is untracked or because the repository has no commits yet.
var ErrNoCommits = errors.New("git: no commits for path")

// Client defines the read-only git operations the board needs.
type Client interface {
	// RepoRoot returns the top of the work tree containing path.
	RepoRoot(path string) (string, error)
	// LastCommitTime returns the author time of the newest commit touching file.
	LastCommitTime(file string) (time.Time, error)
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.Command("git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *RealClient) RepoRoot(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--show-toplevel")
}

func (c *RealClient) LastCommitTime(file string) (time.Time, error) {
	out, err := gitCmd(filepath.Dir(file), "log", "-1", "--format=%aI", "--", filepath.Base(file))
	if err != nil {
		return time.Time{}, err
	}
	return ParseCommitTime(out)
}

// ParseCommitTime parses `git log --format=%aI` output. Empty output means the
// file has never been committed.
func ParseCommitTime(out string) (time.Time, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return time.Time{}, ErrNoCommits
	}
	t, err := time.Parse(time.RFC3339, out)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse commit time %q: %w", out, err)
	}
	return t, nil
}
