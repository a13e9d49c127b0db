package core

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ownerRepoPattern matches "owner/repo" format (2 segments, no protocol).
var ownerRepoPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+$`)

// ownerRepoPathPattern matches "owner/repo/path/to/skills" format (3+ segments).
var ownerRepoPathPattern = regexp.MustCompile(`^([a-zA-Z0-9_.-]+)/([a-zA-Z0-9_.-]+)/(.+)$`)

// ParseRepositorySource turns a user-supplied repository reference into
// repository fields. Name is derived from the repository; Branch and
// SkillPath are only set when the reference carries them.
//
// Supported formats:
//   - "owner/repo"                               → GitHub repo
//   - "owner/repo/path/to/skills"                → GitHub repo with skill path
//   - "git@host:owner/repo.git"                  → SSH git URL
//   - "https://github.com/owner/repo"            → HTTPS git URL
//   - "https://github.com/owner/repo/tree/b/sub" → branch b, skill path /sub
//   - "file:///path/to/repo"                     → local repository, as is
func ParseRepositorySource(input string) (RepositoryInput, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return RepositoryInput{}, fmt.Errorf("%w: empty repository source", ErrInvalidInput)
	}

	if strings.HasPrefix(input, "git@") {
		return parseSSHSource(input)
	}
	if strings.HasPrefix(input, "https://") || strings.HasPrefix(input, "http://") {
		return parseHTTPSource(input)
	}
	if strings.HasPrefix(input, "file://") {
		return RepositoryInput{Name: nameFromURL(input), URL: input}, nil
	}

	if m := ownerRepoPathPattern.FindStringSubmatch(input); m != nil {
		return RepositoryInput{
			Name:      m[2],
			URL:       fmt.Sprintf("https://github.com/%s/%s", m[1], m[2]),
			SkillPath: "/" + strings.Trim(m[3], "/"),
		}, nil
	}
	if ownerRepoPattern.MatchString(input) {
		segments := strings.SplitN(input, "/", 2)
		return RepositoryInput{
			Name: segments[1],
			URL:  fmt.Sprintf("https://github.com/%s/%s", segments[0], segments[1]),
		}, nil
	}

	return RepositoryInput{}, fmt.Errorf("%w: unrecognized repository source %q", ErrInvalidInput, input)
}

func parseSSHSource(input string) (RepositoryInput, error) {
	// git@github.com:owner/repo.git
	parts := strings.SplitN(input, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return RepositoryInput{}, fmt.Errorf("%w: invalid SSH URL %q", ErrInvalidInput, input)
	}
	return RepositoryInput{Name: nameFromURL(input), URL: input}, nil
}

func parseHTTPSource(input string) (RepositoryInput, error) {
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return RepositoryInput{}, fmt.Errorf("%w: invalid URL %q", ErrInvalidInput, input)
	}

	// /owner/repo[/tree/branch/subpath]
	pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(pathParts) < 2 {
		return RepositoryInput{Name: nameFromURL(input), URL: input}, nil
	}

	owner := pathParts[0]
	repo := strings.TrimSuffix(pathParts[1], ".git")
	in := RepositoryInput{
		Name: repo,
		URL:  fmt.Sprintf("%s://%s/%s/%s", u.Scheme, u.Host, owner, repo),
	}
	if len(pathParts) >= 4 && pathParts[2] == "tree" {
		in.Branch = pathParts[3]
		if len(pathParts) > 4 {
			in.SkillPath = "/" + strings.Join(pathParts[4:], "/")
		}
	}
	return in, nil
}
