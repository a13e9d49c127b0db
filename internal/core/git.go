package core

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/barysiuk/skillrow/internal/logger"
)

const defaultSyncTimeout = 60 * time.Second

// VCS fetches repository working copies.
type VCS interface {
	// Clone creates a working copy of url at dir.
	Clone(ctx context.Context, url, branch, dir string) error
	// Pull fast-forwards the working copy at dir.
	Pull(ctx context.Context, dir, branch string) error
}

// gitEnv disables interactive prompts and pins HTTP/1.1.
var gitEnv = []string{"GIT_TERMINAL_PROMPT=0", "GIT_HTTP_VERSION=1.1"}

// GitVCS drives the git command-line tool.
type GitVCS struct {
	Timeout time.Duration
}

func (g GitVCS) timeout() time.Duration {
	if g.Timeout <= 0 {
		return defaultSyncTimeout
	}
	return g.Timeout
}

// Clone runs a shallow clone of branch. When that fails for any reason other
// than a timeout, the partial directory is removed and the clone is retried
// once on the remote's default branch.
func (g GitVCS) Clone(ctx context.Context, url, branch, dir string) error {
	err := g.clone(ctx, url, branch, dir)
	if err == nil || branch == "" || errors.Is(err, ErrTimedOut) {
		return err
	}

	logger.G(ctx).WithField("url", url).WithField("branch", branch).WithError(err).
		Info("clone failed, retrying on default branch")
	_ = os.RemoveAll(dir)
	if retryErr := g.clone(ctx, url, "", dir); retryErr != nil {
		return err
	}
	return nil
}

func (g GitVCS) clone(ctx context.Context, url, branch, dir string) error {
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "-b", branch)
	}
	args = append(args, url, dir)

	output, err := runCommand(ctx, g.timeout(), gitEnv, "git", args...)
	if err != nil {
		_ = os.RemoveAll(dir)
		return ClassifyGitError("clone", url, formatGitCommand(args), output, errors.Is(err, ErrTimedOut))
	}
	return nil
}

// Pull fast-forwards from origin. If the named branch cannot be pulled, for
// example because the clone fell back to the default branch, the tracking
// branch is pulled instead.
func (g GitVCS) Pull(ctx context.Context, dir, branch string) error {
	err := g.pull(ctx, dir, branch)
	if err == nil || branch == "" || errors.Is(err, ErrTimedOut) {
		return err
	}
	if retryErr := g.pull(ctx, dir, ""); retryErr != nil {
		return err
	}
	return nil
}

func (g GitVCS) pull(ctx context.Context, dir, branch string) error {
	args := []string{"-C", dir, "pull", "--ff-only"}
	if branch != "" {
		args = append(args, "origin", branch)
	}

	output, err := runCommand(ctx, g.timeout(), gitEnv, "git", args...)
	if err != nil {
		return ClassifyGitError("pull", g.remoteURL(ctx, dir), formatGitCommand(args), output, errors.Is(err, ErrTimedOut))
	}
	return nil
}

// remoteURL reads the origin remote URL from a working copy.
func (g GitVCS) remoteURL(ctx context.Context, dir string) string {
	out, err := runCommand(ctx, g.timeout(), gitEnv, "git", "-C", dir, "remote", "get-url", "origin")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func formatGitCommand(args []string) string {
	return "git " + strings.Join(args, " ")
}
