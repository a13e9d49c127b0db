package system

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
)

func makeSkill(t *testing.T, root, repo, name string) Skill {
	t.Helper()
	path := filepath.Join(root, SanitizeName(repo), SanitizeName(name))
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	return Skill{ID: repo + "/" + name, Name: name, RepoName: repo, Command: "/" + name, Path: path}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("invalid JSON in %s: %v\n%s", path, err, data)
	}
	return m
}

func TestReconcile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(t.TempDir(), "skills")
	a := makeSkill(t, root, "bar", "foo")
	b := makeSkill(t, root, "bar", "baz")

	name := func(s Skill) string { return LinkName(s.RepoName, s.Name) }
	src := func(s Skill) string { return s.Path }

	res, err := Reconcile(dir, []Skill{a, b}, name, src)
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if len(res.Created) != 2 {
		t.Errorf("Created = %v, want 2 entries", res.Created)
	}

	// Converged input is a no-op.
	res, err = Reconcile(dir, []Skill{a, b}, name, src)
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if res.Ops() != 0 {
		t.Errorf("second Reconcile() performed %d ops, want 0", res.Ops())
	}

	// Extra entries go, hidden entries stay, wrong targets are repaired.
	if err := os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "bar-foo")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(b.Path, filepath.Join(dir, "bar-foo")); err != nil {
		t.Fatal(err)
	}

	res, err = Reconcile(dir, []Skill{a}, name, src)
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	sort.Strings(res.Removed)
	if !reflect.DeepEqual(res.Removed, []string{"bar-baz", "stray.txt"}) {
		t.Errorf("Removed = %v", res.Removed)
	}
	if !reflect.DeepEqual(res.Repaired, []string{"bar-foo"}) {
		t.Errorf("Repaired = %v", res.Repaired)
	}
	if got := listDir(t, dir); !reflect.DeepEqual(got, []string{".DS_Store", "bar-foo"}) {
		t.Errorf("dir = %v", got)
	}
	if target, _ := os.Readlink(filepath.Join(dir, "bar-foo")); target != a.Path {
		t.Errorf("bar-foo -> %q, want %q", target, a.Path)
	}
}

func TestReconcile_EmptyDoesNotCreateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "skills")
	res, err := Reconcile(dir, []Skill(nil), func(s Skill) string { return s.Name }, func(s Skill) string { return s.Path })
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if res.Ops() != 0 || dirExists(dir) {
		t.Errorf("empty reconcile touched the filesystem: %+v", res)
	}
}

func TestDirectorySystem_EnableDisable(t *testing.T) {
	home, _ := isolate(t)
	root := filepath.Join(home, ".skillrow", "installed")
	foo := makeSkill(t, root, "bar", "foo")
	s, _ := ByID("claude-code")
	ctx := context.Background()

	if err := s.Project(ctx, []Skill{foo}, ProjectOptions{InstallRoot: root}); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	dir := filepath.Join(home, ".claude", "skills")
	if got := listDir(t, dir); !reflect.DeepEqual(got, []string{"bar-foo"}) {
		t.Fatalf("after enable dir = %v, want [bar-foo]", got)
	}
	if target, _ := os.Readlink(filepath.Join(dir, "bar-foo")); target != foo.Path {
		t.Errorf("bar-foo -> %q, want %q", target, foo.Path)
	}

	if err := s.Project(ctx, nil, ProjectOptions{InstallRoot: root}); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	if got := listDir(t, dir); len(got) != 0 {
		t.Errorf("after disable dir = %v, want empty", got)
	}
}

func TestJSONSkills_MergePreservesUnrelatedKeys(t *testing.T) {
	home, _ := isolate(t)
	path := filepath.Join(home, ".gemini", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"theme": "dark", "skills": [{"name": "old"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	root := filepath.Join(home, "installed")
	s, _ := ByID("gemini-cli")
	skills := []Skill{makeSkill(t, root, "repo", "zeta"), makeSkill(t, root, "repo", "alpha")}
	if err := s.Project(context.Background(), skills, ProjectOptions{InstallRoot: root}); err != nil {
		t.Fatalf("Project() error: %v", err)
	}

	cfg := readJSON(t, path)
	if cfg["theme"] != "dark" {
		t.Errorf("theme = %v, want dark", cfg["theme"])
	}
	list, ok := cfg["skills"].([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("skills = %v", cfg["skills"])
	}
	first := list[0].(map[string]any)
	if first["name"] != "alpha" || first["command"] != "/alpha" || first["enabled"] != true {
		t.Errorf("skills[0] = %v", first)
	}
	if _, ok := first["description"]; ok {
		t.Errorf("gemini entries should not carry description: %v", first)
	}
}

func TestJSONSkills_CorruptConfigTreatedAsEmpty(t *testing.T) {
	home, _ := isolate(t)
	path := filepath.Join(home, ".qwen", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, content := range []string{`{"skills": [`, `[1, 2, 3]`, ``} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		s, _ := ByID("qwen-cli")
		if err := s.Project(context.Background(), nil, ProjectOptions{}); err != nil {
			t.Fatalf("Project() with %q error: %v", content, err)
		}
		if cfg := readJSON(t, path); len(cfg) != 0 {
			t.Errorf("with %q: config = %v, want {}", content, cfg)
		}
	}
}

func TestJSONSkills_KeepsComments(t *testing.T) {
	home, _ := isolate(t)
	path := filepath.Join(home, ".kimi", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{\n\t// user model\n\t\"model\": \"k2\"\n}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, _ := ByID("kimi-cli")
	foo := makeSkill(t, filepath.Join(home, "installed"), "repo", "foo")
	if err := s.Project(context.Background(), []Skill{foo}, ProjectOptions{}); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "// user model") {
		t.Errorf("comment lost:\n%s", data)
	}
	if !strings.Contains(string(data), `"skills"`) {
		t.Errorf("skills key missing:\n%s", data)
	}
}

func TestMCPServers_PreservesUserServers(t *testing.T) {
	home, _ := isolate(t)
	path := filepath.Join(home, ".cursor", "mcp.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	root := filepath.Join(home, ".skillrow", "installed")
	stale := filepath.Join(root, "repo", "gone", "index.js")
	if err := os.WriteFile(path, []byte(`{
	"mcpServers": {
		"github": {"command": "npx", "args": ["-y", "@modelcontextprotocol/server-github"]},
		"gone": {"command": "node", "args": ["`+stale+`"], "env": {}}
	}
}`), 0o644); err != nil {
		t.Fatal(err)
	}

	foo := makeSkill(t, root, "repo", "foo")
	s, _ := ByID("cursor")
	if err := s.Project(context.Background(), []Skill{foo}, ProjectOptions{InstallRoot: root}); err != nil {
		t.Fatalf("Project() error: %v", err)
	}

	servers := readJSON(t, path)["mcpServers"].(map[string]any)
	if _, ok := servers["github"]; !ok {
		t.Error("user server github was removed")
	}
	if _, ok := servers["gone"]; ok {
		t.Error("stale managed server gone was kept")
	}
	entry, ok := servers["foo"].(map[string]any)
	if !ok {
		t.Fatalf("foo missing: %v", servers)
	}
	args := entry["args"].([]any)
	if entry["command"] != "node" || args[0] != filepath.Join(foo.Path, "index.js") {
		t.Errorf("foo = %v", entry)
	}
}

func TestJSONSkills_EmptySetRemovesKey(t *testing.T) {
	home, _ := isolate(t)
	path := filepath.Join(home, ".gemini", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"theme": "dark"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, _ := ByID("gemini-cli")
	foo := makeSkill(t, filepath.Join(home, "installed"), "repo", "foo")
	if err := s.Project(context.Background(), []Skill{foo}, ProjectOptions{}); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	if _, ok := readJSON(t, path)["skills"]; !ok {
		t.Fatal("skills key not written")
	}

	if err := s.Project(context.Background(), nil, ProjectOptions{}); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	cfg := readJSON(t, path)
	if _, ok := cfg["skills"]; ok || cfg["theme"] != "dark" || len(cfg) != 1 {
		t.Errorf("config after disabling everything = %v, want {theme: dark}", cfg)
	}
}

func TestMCPServers_EmptySetRemovesOwnedObject(t *testing.T) {
	home, _ := isolate(t)
	path := filepath.Join(home, ".cursor", "mcp.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"theme": "dark"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	root := filepath.Join(home, ".skillrow", "installed")
	opts := ProjectOptions{InstallRoot: root}
	s, _ := ByID("cursor")

	// Two same-named skills from different folders both get a server.
	a := makeSkill(t, root, "repo", "foo")
	b := makeSkill(t, root, "repo", "b-foo")
	b.Name = "foo"
	if err := s.Project(context.Background(), []Skill{a, b}, opts); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	if servers := readJSON(t, path)["mcpServers"].(map[string]any); len(servers) != 2 {
		t.Fatalf("mcpServers = %v, want two entries", servers)
	}

	if err := s.Project(context.Background(), nil, opts); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	cfg := readJSON(t, path)
	if _, ok := cfg["mcpServers"]; ok || len(cfg) != 1 {
		t.Errorf("config after disabling everything = %v, want {theme: dark}", cfg)
	}

	// A user's own empty object is left alone.
	if err := os.WriteFile(path, []byte(`{"mcpServers": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Project(context.Background(), nil, opts); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	if _, ok := readJSON(t, path)["mcpServers"]; !ok {
		t.Error("untouched empty mcpServers removed")
	}
}

func TestDirectorySystem_LinkNameFollowsInstallDir(t *testing.T) {
	root := t.TempDir()
	a := makeSkill(t, root, "repo", "foo")
	b := makeSkill(t, root, "repo", "b-foo")
	b.Name = "foo"
	if a.LinkName() != "repo-foo" || b.LinkName() != "repo-b-foo" {
		t.Errorf("link names = %q, %q", a.LinkName(), b.LinkName())
	}
	if got := (Skill{Name: "Foo", RepoName: "repo"}).LinkName(); got != "repo-foo" {
		t.Errorf("LinkName() without path = %q", got)
	}
}

func TestTOMLSystem_Render(t *testing.T) {
	home, _ := isolate(t)
	root := filepath.Join(home, "installed")
	s, _ := ByID("codex")

	if err := s.Project(context.Background(), []Skill{makeSkill(t, root, "repo", "review")}, ProjectOptions{}); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(home, ".codex", "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"# Codex Configuration", "[[skills]]", "review", "/review", "enabled = true"} {
		if !strings.Contains(out, want) {
			t.Errorf("toml output missing %q:\n%s", want, out)
		}
	}

	if err := s.Project(context.Background(), nil, ProjectOptions{}); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(home, ".codex", "config.toml"))
	if !strings.Contains(string(data), "skills = []") {
		t.Errorf("empty toml output:\n%s", data)
	}
}

func TestYAMLSystem_Render(t *testing.T) {
	home, _ := isolate(t)
	root := filepath.Join(home, "installed")
	s, _ := ByID("aider")

	if err := s.Project(context.Background(), []Skill{makeSkill(t, root, "repo", "review")}, ProjectOptions{}); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(home, ".aider.conf.yml"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"# Aider Configuration", "skills:", "- name: review", "command: /review", "enabled: true"} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml output missing %q:\n%s", want, out)
		}
	}
}

func TestEnsureConfig(t *testing.T) {
	home, _ := isolate(t)

	for _, id := range []string{"gemini-cli", "cursor", "codex", "aider", "windsurf"} {
		s, _ := ByID(id)
		path, err := s.EnsureConfig()
		if err != nil {
			t.Fatalf("%s EnsureConfig() error: %v", id, err)
		}
		if !pathExists(path) {
			t.Errorf("%s EnsureConfig() did not create %s", id, path)
		}
	}

	// Existing files are left alone.
	path := filepath.Join(home, ".gemini", "config.json")
	if err := os.WriteFile(path, []byte(`{"mine": true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := ByID("gemini-cli")
	if _, err := s.EnsureConfig(); err != nil {
		t.Fatal(err)
	}
	if cfg := readJSON(t, path); cfg["mine"] != true {
		t.Errorf("EnsureConfig overwrote existing file: %v", cfg)
	}
}
