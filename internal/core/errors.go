package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrCloneFailed        = errors.New("clone failed")
	ErrPullFailed         = errors.New("pull failed")
	ErrTimedOut           = errors.New("timed out")
	ErrDuplicateSkill     = errors.New("skill already installed")
	ErrSourceMissing      = errors.New("skill source missing")
	ErrFilesystem         = errors.New("filesystem error")
	ErrNotSynced          = errors.New("repository not synced")
	ErrSyncInProgress     = errors.New("sync already in progress")
	ErrSkillNotFound      = errors.New("installed skill not found")
	ErrAgentNotFound      = errors.New("agent not found")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrParseFailure marks a manifest file that could not be read. It is
	// only ever logged; scanning falls back to the next strategy.
	ErrParseFailure = errors.New("manifest parse failure")
)

// GitErrorKind classifies why a git command failed.
type GitErrorKind int

const (
	GitErrUnknown GitErrorKind = iota
	GitErrAuth
	GitErrRepoNotFound
	GitErrNetwork
	GitErrSSHKey
	GitErrHostKey
	GitErrTimeout
)

// String returns a human-readable label for the error kind.
func (k GitErrorKind) String() string {
	switch k {
	case GitErrAuth:
		return "Authentication Required"
	case GitErrRepoNotFound:
		return "Repository Not Found"
	case GitErrNetwork:
		return "Network Error"
	case GitErrSSHKey:
		return "SSH Key Error"
	case GitErrHostKey:
		return "SSH Host Key Error"
	case GitErrTimeout:
		return "Timeout"
	default:
		return "Unknown Error"
	}
}

// GitError is returned when a clone or pull fails. It carries the captured
// git output with a classification and actionable hints.
type GitError struct {
	Op        string // "clone" or "pull"
	Kind      GitErrorKind
	Protocol  string // "https" or "ssh"
	URL       string
	Command   string // the git command that was run (for display)
	RawOutput string // combined stdout/stderr
	Hints     []string
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s failed (%s): %s", e.Op, e.Kind, e.firstLine())
}

// Unwrap exposes ErrCloneFailed or ErrPullFailed, plus ErrTimedOut when the
// process was killed by the timeout.
func (e *GitError) Unwrap() []error {
	errs := []error{ErrCloneFailed}
	if e.Op == "pull" {
		errs[0] = ErrPullFailed
	}
	if e.Kind == GitErrTimeout {
		errs = append(errs, ErrTimedOut)
	}
	return errs
}

func (e *GitError) firstLine() string {
	for _, line := range strings.Split(e.RawOutput, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "Cloning into") {
			return line
		}
	}
	if e.Kind == GitErrTimeout {
		return "process killed after timeout"
	}
	return e.Op + " failed"
}

// AsGitError returns the *GitError in err's chain, if any.
func AsGitError(err error) (*GitError, bool) {
	var ge *GitError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// ClassifyGitError builds a GitError from a failed git command's output.
func ClassifyGitError(op, remoteURL, command, rawOutput string, timedOut bool) *GitError {
	protocol := detectProtocol(remoteURL)
	kind := classifyOutput(rawOutput)
	if timedOut {
		kind = GitErrTimeout
	}
	return &GitError{
		Op:        op,
		Kind:      kind,
		Protocol:  protocol,
		URL:       remoteURL,
		Command:   command,
		RawOutput: strings.TrimSpace(rawOutput),
		Hints:     hintsForError(kind, protocol, remoteURL),
	}
}

func detectProtocol(remote string) string {
	if strings.HasPrefix(remote, "git@") || strings.HasPrefix(remote, "ssh://") {
		return "ssh"
	}
	return "https"
}

// gitFailures maps fragments of lowercased git output to a kind. The first
// match wins, so key problems are recognized before the generic "not found"
// that git prints after them.
var gitFailures = []struct {
	kind      GitErrorKind
	fragments []string
}{
	{GitErrSSHKey, []string{"permission denied (publickey)", "no such identity", "load key", "identity file"}},
	{GitErrHostKey, []string{"host key verification failed", "known_hosts"}},
	{GitErrAuth, []string{"could not read username", "could not read password", "invalid credentials",
		"authentication failed", "error: 401", "error: 403", "logon failed"}},
	{GitErrRepoNotFound, []string{"repository not found", "does not appear to be a git repository", "not found"}},
	{GitErrNetwork, []string{"could not resolve host", "connection refused", "connection timed out",
		"network is unreachable", "no route to host", "name or service not known"}},
}

func classifyOutput(output string) GitErrorKind {
	lower := strings.ToLower(output)
	for _, f := range gitFailures {
		for _, frag := range f.fragments {
			if strings.Contains(lower, frag) {
				return f.kind
			}
		}
	}
	return GitErrUnknown
}

// hintsForError suggests fixes for a failed clone or pull of a skill
// repository.
func hintsForError(kind GitErrorKind, protocol, remoteURL string) []string {
	host := remoteHost(remoteURL)
	var hints []string
	switch kind {
	case GitErrAuth:
		hints = []string{"git runs without a terminal prompt; store credentials for " + host + " in a git credential helper"}
	case GitErrSSHKey:
		hints = []string{"Load a key with read access to " + host + " into ssh-agent (`ssh-add -l` lists loaded keys)"}
	case GitErrHostKey:
		return []string{fmt.Sprintf("Trust %s before syncing: `ssh-keyscan %s >> ~/.ssh/known_hosts`", host, host)}
	case GitErrRepoNotFound:
		return []string{
			"Check the URL and tracked branch with `skillrow repo list`; fix them with `skillrow repo update`",
			"Private repositories are reported as missing when the credentials lack access",
		}
	case GitErrNetwork:
		return []string{"Could not reach " + host + "; check the connection and git's proxy settings"}
	case GitErrTimeout:
		return []string{"git was stopped after sync.timeout; raise it in the config file for large repositories"}
	default:
		return []string{"Run the git command shown above by hand to see its full output"}
	}

	if alt := alternateURL(remoteURL, protocol); alt != "" {
		hints = append(hints, fmt.Sprintf("Or switch protocols: `skillrow repo update <name> --url %s`", alt))
	}
	return hints
}

// remoteHost returns the host of an https, ssh:// or scp-style remote.
func remoteHost(remote string) string {
	if u, err := url.Parse(remote); err == nil && u.Host != "" {
		return u.Hostname()
	}
	rest := remote
	if _, after, ok := strings.Cut(rest, "@"); ok {
		rest = after
	}
	if host, _, ok := strings.Cut(rest, ":"); ok && host != "" {
		return host
	}
	return "the remote"
}

// alternateURL rewrites an https remote as scp-style ssh and back. It
// returns "" for remotes it cannot rewrite faithfully.
func alternateURL(remote, protocol string) string {
	switch protocol {
	case "https":
		u, err := url.Parse(remote)
		if err != nil || u.Host == "" || u.User != nil || u.Port() != "" {
			return ""
		}
		path := strings.TrimPrefix(u.Path, "/")
		if path == "" {
			return ""
		}
		if !strings.HasSuffix(path, ".git") {
			path += ".git"
		}
		return "git@" + u.Hostname() + ":" + path
	case "ssh":
		host, path, ok := strings.Cut(strings.TrimPrefix(remote, "git@"), ":")
		if !strings.HasPrefix(remote, "git@") || !ok || host == "" || path == "" {
			return ""
		}
		return "https://" + host + "/" + path
	}
	return ""
}
