package core

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func TestGarbageCollect_RemovesExactlyMissing(t *testing.T) {
	m, vcs := newTestManager(t)
	ctx := context.Background()
	repo := addSyncedRepo(t, m, vcs, RepositoryInput{Name: "bar", URL: "https://example.com/org/bar"}, sampleRepo)
	detectOnly(t, m, func(home string) {
		writeFiles(t, home, map[string]string{".claude.json": "{}"})
	})

	alpha, _ := m.Install(ctx, repo.ID, "alpha")
	beta, _ := m.Install(ctx, repo.ID, "beta")
	gamma, _ := m.Install(ctx, repo.ID, "gamma")
	for _, s := range []InstalledSkill{alpha, beta, gamma} {
		if _, err := m.ToggleSkillForAgent(ctx, s.ID, "claude-code"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.ToggleSkillForAgent(ctx, gamma.ID, "aider"); err != nil {
		t.Fatal(err)
	}

	if n, err := m.GarbageCollect(ctx); err != nil || n != 0 {
		t.Fatalf("GarbageCollect() with nothing missing = %d, %v", n, err)
	}

	if err := os.RemoveAll(beta.LocalPath); err != nil {
		t.Fatal(err)
	}

	n, err := m.GarbageCollect(ctx)
	if err != nil {
		t.Fatalf("GarbageCollect() error: %v", err)
	}
	if n != 1 {
		t.Errorf("GarbageCollect() = %d, want 1", n)
	}

	var left []string
	for _, s := range m.InstalledSkills() {
		left = append(left, s.Name)
	}
	sort.Strings(left)
	if !reflect.DeepEqual(left, []string{"alpha", "gamma"}) {
		t.Errorf("remaining skills = %v", left)
	}

	claude, _ := m.Agent("claude-code")
	want := NewIDSet(alpha.ID.String(), gamma.ID.String())
	if !reflect.DeepEqual(claude.EnabledSkillIDs, want) {
		t.Errorf("claude-code enabled = %v, want %v", claude.EnabledSkillIDs.Sorted(), want.Sorted())
	}
	aider, _ := m.Agent("aider")
	if !aider.EnabledSkillIDs.Has(gamma.ID.String()) {
		t.Error("untouched association dropped")
	}
	g, _ := m.InstalledSkill(gamma.ID)
	if !reflect.DeepEqual(g.AssignedAgentIDs.Sorted(), []string{"aider", "claude-code"}) {
		t.Errorf("gamma assigned = %v", g.AssignedAgentIDs.Sorted())
	}

	home, _ := os.UserHomeDir()
	if got := listDir(t, filepath.Join(home, ".claude", "skills")); !reflect.DeepEqual(got, []string{"bar-alpha", "bar-gamma"}) {
		t.Errorf("claude-code links = %v", got)
	}
}
