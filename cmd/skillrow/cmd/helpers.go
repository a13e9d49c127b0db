package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/barysiuk/skillrow/internal/core"
)

// joinStrings concatenates string slices with ", " separator.
func joinStrings(ss []string) string {
	return strings.Join(ss, ", ")
}

// resolveRepository looks a repository up by id or name.
func resolveRepository(m *core.Manager, ref string) (core.Repository, error) {
	r, ok := m.FindRepository(ref)
	if !ok {
		return core.Repository{}, fmt.Errorf("%w: %s", core.ErrRepositoryNotFound, ref)
	}
	return r, nil
}

// resolveSkill looks an installed skill up by id or name.
func resolveSkill(m *core.Manager, ref string) (core.InstalledSkill, error) {
	s, ok := m.FindInstalledSkill(ref)
	if !ok {
		return core.InstalledSkill{}, fmt.Errorf("%w: %s", core.ErrSkillNotFound, ref)
	}
	return s, nil
}

// resolveAgent looks an agent up by id or display name.
func resolveAgent(m *core.Manager, ref string) (core.Agent, error) {
	if a, ok := m.Agent(ref); ok {
		return a, nil
	}
	for _, a := range m.Agents() {
		if strings.EqualFold(a.Name, ref) {
			return a, nil
		}
	}
	return core.Agent{}, fmt.Errorf("%w: %s", core.ErrAgentNotFound, ref)
}

// formatSyncTime renders a repository's last sync time for tables.
func formatSyncTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// printGitError writes the classified git failure and its hints to stderr.
func printGitError(err error) {
	ge, ok := core.AsGitError(err)
	if !ok {
		return
	}
	fmt.Fprintf(os.Stderr, "  %s\n", ge.Command)
	for _, h := range ge.Hints {
		fmt.Fprintf(os.Stderr, "  hint: %s\n", h)
	}
}
