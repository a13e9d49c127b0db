package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/barysiuk/skillrow/internal/logger"
)

func manifestKeys(ms []RemoteManifest) []string {
	keys := make([]string, 0, len(ms))
	for _, m := range ms {
		keys = append(keys, m.ID+"@"+m.RelativePath+"#"+string(m.Kind))
	}
	sort.Strings(keys)
	return keys
}

var sampleRepo = map[string]string{
	"README.md":        "# Collection\nA pile of skills.\n",
	"alpha/SKILL.md":   "---\nname: alpha\ndescription: Alpha skill\n---\n# Alpha\n",
	"beta/skill.json":  `{"id": "beta", "name": "Beta", "author": {"name": "Ann"}, "version": 2}`,
	"notes/gamma.md":   "# Gamma notes\n",
	"notes/LICENSE.md": "MIT\n",
}

func TestSync_TwiceYieldsSameManifests(t *testing.T) {
	m, vcs := newTestManager(t)
	ctx := context.Background()

	repo := addSyncedRepo(t, m, vcs, RepositoryInput{Name: "sample", URL: "https://example.com/org/sample"}, sampleRepo)
	first := manifestKeys(repo.Skills)
	want := []string{"alpha@alpha#directory", "beta@beta#directory", "gamma@notes/gamma.md#file"}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("manifests = %v, want %v", first, want)
	}
	if repo.LastSync == nil || repo.LocalPath == "" {
		t.Errorf("sync state not recorded: %+v", repo)
	}

	if err := m.SyncOne(ctx, repo.ID); err != nil {
		t.Fatalf("second SyncOne() error: %v", err)
	}
	again, _ := m.Repository(repo.ID)
	if got := manifestKeys(again.Skills); !reflect.DeepEqual(got, first) {
		t.Errorf("second sync manifests = %v, want %v", got, first)
	}

	if clones, pulls := vcs.counts(); clones != 1 || pulls != 1 {
		t.Errorf("clones=%d pulls=%d, want 1 and 1", clones, pulls)
	}

	beta := manifestByName(t, again, "Beta")
	if beta.Author != "Ann" || beta.Version != "2" || beta.Description != "No description" {
		t.Errorf("beta manifest = %+v", beta)
	}
}

func TestSync_CuratedSkillPath(t *testing.T) {
	m, vcs := newTestManager(t)

	repo := addSyncedRepo(t, m, vcs, RepositoryInput{
		Name:      "openai-skills",
		URL:       "https://example.com/openai/skills",
		SkillPath: "/skills",
	}, map[string]string{
		"README.md":                                  "# Skills\n",
		"skills/.curated/cloudflare-deploy/SKILL.md": "---\nname: cloudflare-deploy\ndescription: Deploy to Cloudflare\n---\n",
		"skills/.curated/web-search.md":              "# Search the web\n",
	})

	want := []string{
		"cloudflare-deploy@.curated/cloudflare-deploy#directory",
		"web-search@.curated/web-search.md#file",
	}
	if got := manifestKeys(repo.Skills); !reflect.DeepEqual(got, want) {
		t.Errorf("manifests = %v, want %v", got, want)
	}
}

func TestSync_MissingGitMetadataReclones(t *testing.T) {
	m, vcs := newTestManager(t)
	ctx := context.Background()

	repo := addSyncedRepo(t, m, vcs, RepositoryInput{Name: "sample", URL: "https://example.com/org/sample"}, sampleRepo)
	if err := os.RemoveAll(filepath.Join(repo.LocalPath, ".git")); err != nil {
		t.Fatal(err)
	}

	if err := m.SyncOne(ctx, repo.ID); err != nil {
		t.Fatalf("SyncOne() error: %v", err)
	}
	if clones, pulls := vcs.counts(); clones != 2 || pulls != 0 {
		t.Errorf("clones=%d pulls=%d, want 2 and 0", clones, pulls)
	}
}

func TestSync_FailureKeepsPreviousState(t *testing.T) {
	m, vcs := newTestManager(t)
	ctx := context.Background()

	repo := addSyncedRepo(t, m, vcs, RepositoryInput{Name: "sample", URL: "https://example.com/org/sample"}, sampleRepo)
	vcs.unserve(repo.URL)

	err := m.SyncOne(ctx, repo.ID)
	if !errors.Is(err, ErrPullFailed) {
		t.Fatalf("SyncOne() error = %v, want ErrPullFailed", err)
	}
	gitErr, ok := AsGitError(err)
	if !ok || gitErr.Kind != GitErrNetwork {
		t.Errorf("expected network GitError, got %#v", err)
	}

	after, _ := m.Repository(repo.ID)
	if !reflect.DeepEqual(manifestKeys(after.Skills), manifestKeys(repo.Skills)) || !after.LastSync.Equal(*repo.LastSync) {
		t.Error("failed sync must leave the repository untouched")
	}
	state := m.SyncState(repo.ID)
	if state.InFlight || !errors.Is(state.LastError, ErrPullFailed) {
		t.Errorf("SyncState() = %+v", state)
	}

	// The next attempt clears the previous error.
	vcs.serve(t, repo.URL, sampleRepo)
	if err := m.SyncOne(ctx, repo.ID); err != nil {
		t.Fatalf("SyncOne() error: %v", err)
	}
	if state := m.SyncState(repo.ID); state.LastError != nil {
		t.Errorf("LastError not cleared: %v", state.LastError)
	}
}

func TestSyncAll_IsolatesFailures(t *testing.T) {
	m, vcs := newTestManager(t)
	ctx := context.Background()

	vcs.serve(t, "https://example.com/org/good", sampleRepo)
	good, _ := m.AddRepository(ctx, RepositoryInput{URL: "https://example.com/org/good"})
	bad, _ := m.AddRepository(ctx, RepositoryInput{URL: "https://example.com/org/missing"})
	vcs.serve(t, "https://example.com/org/other", map[string]string{"x/SKILL.md": "# X\n"})
	other, _ := m.AddRepository(ctx, RepositoryInput{URL: "https://example.com/org/other"})

	summary := m.SyncAll(ctx)
	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if !errors.Is(summary.Errors[bad.ID], ErrCloneFailed) {
		t.Errorf("bad repo error = %v, want ErrCloneFailed", summary.Errors[bad.ID])
	}
	if summary.Err() == nil {
		t.Error("Err() must report the failure")
	}

	if r, _ := m.Repository(good.ID); len(r.Skills) != 3 {
		t.Errorf("good repo manifests = %d, want 3", len(r.Skills))
	}
	if r, _ := m.Repository(other.ID); len(r.Skills) != 1 {
		t.Errorf("other repo manifests = %d, want 1", len(r.Skills))
	}
	if r, _ := m.Repository(bad.ID); r.LocalPath != "" || r.LastSync != nil {
		t.Errorf("bad repo changed: %+v", r)
	}
	if _, err := os.Stat(filepath.Join(m.reposDir(), RepoDirKey(bad.URL))); !os.IsNotExist(err) {
		t.Error("failed clone left a working copy behind")
	}
}

func TestSyncAll_NoRepositories(t *testing.T) {
	m, _ := newTestManager(t)
	summary := m.SyncAll(context.Background())
	if summary.Succeeded != 0 || summary.Failed != 0 || summary.Err() != nil {
		t.Errorf("summary = %+v", summary)
	}
}

func TestBeginSync_RejectsConcurrentSync(t *testing.T) {
	m, vcs := newTestManager(t)
	ctx := context.Background()
	vcs.serve(t, "https://example.com/org/sample", sampleRepo)
	repo, _ := m.AddRepository(ctx, RepositoryInput{URL: "https://example.com/org/sample"})

	job, err := m.BeginSync(repo.ID)
	if err != nil {
		t.Fatalf("BeginSync() error: %v", err)
	}
	if !m.SyncState(repo.ID).InFlight {
		t.Error("expected InFlight after BeginSync")
	}
	if _, err := m.BeginSync(repo.ID); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("second BeginSync() error = %v, want ErrSyncInProgress", err)
	}

	done := make(chan SyncOutcome)
	go func() { done <- job.Run(ctx) }()
	if err := m.ApplySync(ctx, <-done); err != nil {
		t.Fatalf("ApplySync() error: %v", err)
	}
	if m.SyncState(repo.ID).InFlight {
		t.Error("InFlight not cleared")
	}
}

func TestApplySync_RepositoryRemovedMidway(t *testing.T) {
	m, vcs := newTestManager(t)
	ctx := context.Background()
	vcs.serve(t, "https://example.com/org/sample", sampleRepo)
	repo, _ := m.AddRepository(ctx, RepositoryInput{URL: "https://example.com/org/sample"})

	job, err := m.BeginSync(repo.ID)
	if err != nil {
		t.Fatal(err)
	}
	out := job.Run(ctx)
	if err := m.RemoveRepository(ctx, repo.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.ApplySync(ctx, out); !errors.Is(err, ErrRepositoryNotFound) {
		t.Errorf("ApplySync() error = %v, want ErrRepositoryNotFound", err)
	}
	if _, err := m.BeginSync(repo.ID); !errors.Is(err, ErrRepositoryNotFound) {
		t.Errorf("BeginSync() error = %v, want ErrRepositoryNotFound", err)
	}
}

func TestSkillRoot_StaysInsideClone(t *testing.T) {
	dir := filepath.Join("/data", "repos", "x")
	tests := map[string]string{
		"/":            dir,
		"":             dir,
		"/skills":      filepath.Join(dir, "skills"),
		"skills/":      filepath.Join(dir, "skills"),
		"../../etc":    filepath.Join(dir, "etc"),
		"/a/../../b/c": filepath.Join(dir, "b", "c"),
	}
	for in, want := range tests {
		if got := skillRoot(dir, in); got != want {
			t.Errorf("skillRoot(%q) = %q, want %q", in, got, want)
		}
	}
}

// gitRepo creates a local upstream repository on branch main.
func gitRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, files)
	for _, args := range [][]string{
		{"init", "-q", "-b", "main"},
		{"add", "."},
		{"-c", "user.name=test", "-c", "user.email=test@example.com", "commit", "-q", "-m", "init"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	return dir
}

func TestGitVCS_CloneAndPull(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	upstream := gitRepo(t, map[string]string{"foo/SKILL.md": "# Foo\n"})
	url := "file://" + upstream
	ctx := context.Background()
	vcs := GitVCS{Timeout: 30 * time.Second}

	dir := filepath.Join(t.TempDir(), "clone")
	if err := vcs.Clone(ctx, url, "main", dir); err != nil {
		t.Fatalf("Clone() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "foo", "SKILL.md")); err != nil {
		t.Fatalf("clone missing file: %v", err)
	}
	if err := vcs.Pull(ctx, dir, "main"); err != nil {
		t.Fatalf("Pull() error: %v", err)
	}

	// An unknown branch falls back to the remote default branch.
	fallback := filepath.Join(t.TempDir(), "fallback")
	if err := vcs.Clone(ctx, url, "does-not-exist", fallback); err != nil {
		t.Fatalf("Clone() with unknown branch error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fallback, "foo", "SKILL.md")); err != nil {
		t.Errorf("fallback clone missing file: %v", err)
	}

	missing := filepath.Join(t.TempDir(), "missing")
	err := vcs.Clone(ctx, "file://"+filepath.Join(t.TempDir(), "nope"), "main", missing)
	if !errors.Is(err, ErrCloneFailed) {
		t.Errorf("Clone() of missing repo error = %v, want ErrCloneFailed", err)
	}
	if _, statErr := os.Stat(missing); !os.IsNotExist(statErr) {
		t.Error("failed clone left a directory behind")
	}
}

func TestManager_SyncWithGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	m, _ := newTestManager(t)
	m.vcs = GitVCS{Timeout: 30 * time.Second}
	ctx := context.Background()

	upstream := gitRepo(t, sampleRepo)
	repo, err := m.AddRepository(ctx, RepositoryInput{Name: "local", URL: "file://" + upstream})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SyncOne(ctx, repo.ID); err != nil {
		t.Fatalf("first SyncOne() error: %v", err)
	}
	first, _ := m.Repository(repo.ID)
	if err := m.SyncOne(ctx, repo.ID); err != nil {
		t.Fatalf("second SyncOne() error: %v", err)
	}
	second, _ := m.Repository(repo.ID)
	if !reflect.DeepEqual(manifestKeys(first.Skills), manifestKeys(second.Skills)) {
		t.Errorf("manifests changed between syncs: %v vs %v", manifestKeys(first.Skills), manifestKeys(second.Skills))
	}
	if len(second.Skills) != 3 {
		t.Errorf("expected 3 manifests, got %d", len(second.Skills))
	}
}

func TestRunCommand_Timeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not installed")
	}
	start := time.Now()
	_, err := runCommand(context.Background(), 100*time.Millisecond, nil, "sleep", "5")
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("runCommand() error = %v, want ErrTimedOut", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestSyncJob_ScanLogsCarryRepository(t *testing.T) {
	m, vcs := newTestManager(t)
	url := "https://example.com/org/bar"
	vcs.serve(t, url, map[string]string{
		"pick/skill.json": `{"id": `,
		"pick/SKILL.md":   "---\nname: pick\n---\n",
	})
	repo, err := m.AddRepository(context.Background(), RepositoryInput{Name: "bar", URL: url})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	ctx := logger.WithLogger(context.Background(), logrus.NewEntry(l))

	job, err := m.BeginSync(repo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if out := job.Run(ctx); out.Err != nil || len(out.Manifests) != 1 {
		t.Fatalf("Run() = %+v", out)
	}

	var found bool
	for _, line := range strings.Split(buf.String(), "\n") {
		if !strings.Contains(line, "manifest strategy failed") {
			continue
		}
		found = true
		if !strings.Contains(line, url) {
			t.Errorf("scanner log line lacks the repository: %q", line)
		}
	}
	if !found {
		t.Errorf("no strategy fallback logged:\n%s", buf.String())
	}
}
