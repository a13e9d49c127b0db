package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/barysiuk/skillrow/internal/core"
)

// ---------------------------------------------------------------------------
// Installed skills
// ---------------------------------------------------------------------------

// installedItem wraps an InstalledSkill for the default two-line delegate.
type installedItem struct {
	skill core.InstalledSkill
}

func (i installedItem) Title() string {
	n := len(i.skill.AssignedAgentIDs)
	if n == 0 {
		return i.skill.Name
	}
	return i.skill.Name + badgeStyle.Render(fmt.Sprintf("  %d agents", n))
}

func (i installedItem) Description() string {
	desc := i.skill.Description
	if desc == "" {
		desc = "No description"
	}
	return i.skill.RepositoryName + " · " + desc
}

func (i installedItem) FilterValue() string { return i.skill.Name }

func installedToItems(skills []core.InstalledSkill) []list.Item {
	items := make([]list.Item, len(skills))
	for i, s := range skills {
		items[i] = installedItem{skill: s}
	}
	return items
}

// ---------------------------------------------------------------------------
// Available manifests
// ---------------------------------------------------------------------------

type manifestItem struct {
	manifest  core.RemoteManifest
	repoName  string
	installed bool
}

func (i manifestItem) Title() string {
	if i.installed {
		return i.manifest.Name + " " + installedStyle.Render("(installed)")
	}
	return i.manifest.Name
}

func (i manifestItem) Description() string {
	return i.repoName + " · " + i.manifest.Description
}

// FilterValue covers the same fields the engine's manifest search does.
func (i manifestItem) FilterValue() string {
	return i.manifest.Name + " " + i.manifest.Description + " " + i.manifest.Author
}

func manifestsToItems(m *core.Manager) []list.Item {
	names := make(map[uuid.UUID]string)
	for _, r := range m.Repositories() {
		names[r.ID] = r.Name
	}
	manifests := m.FilterManifests("", uuid.Nil)
	items := make([]list.Item, len(manifests))
	for i, mf := range manifests {
		items[i] = manifestItem{
			manifest:  mf,
			repoName:  names[mf.RepositoryID],
			installed: m.IsSkillInstalled(mf.RepositoryID, mf.ID),
		}
	}
	return items
}

// ---------------------------------------------------------------------------
// One-line items: repositories, agents, agent toggles
// ---------------------------------------------------------------------------

// lineItem renders itself on a single row.
type lineItem interface {
	list.Item
	line(selected bool) string
}

// lineDelegate renders lineItems as: "  > name  details".
type lineDelegate struct{}

func (d lineDelegate) Height() int                             { return 1 }
func (d lineDelegate) Spacing() int                            { return 0 }
func (d lineDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d lineDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	li, ok := item.(lineItem)
	if !ok {
		return
	}
	selected := index == m.Index()
	indicator := "    "
	if selected {
		indicator = "  > "
	}
	_, _ = fmt.Fprint(w, indicator+li.line(selected))
}

func nameStyle(selected bool) func(...string) string {
	if selected {
		return selectedItemStyle.Render
	}
	return normalItemStyle.Render
}

type repoItem struct {
	repo  core.Repository
	state core.SyncState
}

func (i repoItem) FilterValue() string { return i.repo.Name }

func (i repoItem) line(selected bool) string {
	parts := []string{
		nameStyle(selected)(i.repo.Name),
		badgeStyle.Render(fmt.Sprintf("%d skills", len(i.repo.Skills))),
		mutedStyle.Render(i.repo.URL),
	}
	switch {
	case i.state.InFlight:
		parts = append(parts, warningStyle.Render("syncing"))
	case i.state.LastError != nil:
		parts = append(parts, errorStyle.Render("sync failed"))
	case i.repo.LastSync == nil:
		parts = append(parts, mutedStyle.Render("never synced"))
	default:
		parts = append(parts, mutedStyle.Render("synced "+i.repo.LastSync.Local().Format("Jan 2 15:04")))
	}
	return strings.Join(parts, "  ")
}

func reposToItems(m *core.Manager) []list.Item {
	repos := m.Repositories()
	items := make([]list.Item, len(repos))
	for i, r := range repos {
		items[i] = repoItem{repo: r, state: m.SyncState(r.ID)}
	}
	return items
}

type agentItem struct {
	agent core.Agent
}

func (i agentItem) FilterValue() string { return i.agent.Name }

func (i agentItem) line(selected bool) string {
	status := mutedStyle.Render("not detected")
	if i.agent.Detected {
		status = installedStyle.Render("detected")
	}
	return strings.Join([]string{
		nameStyle(selected)(i.agent.Name),
		status,
		badgeStyle.Render(fmt.Sprintf("%d skills", len(i.agent.EnabledSkillIDs))),
		mutedStyle.Render(string(i.agent.ConfigFormat) + " " + shortenPath(i.agent.ConfigPath)),
	}, "  ")
}

func agentsToItems(agents []core.Agent) []list.Item {
	items := make([]list.Item, len(agents))
	for i, a := range agents {
		items[i] = agentItem{agent: a}
	}
	return items
}

// agentToggleItem is one row of the per-skill agent picker.
type agentToggleItem struct {
	agent   core.Agent
	enabled bool
}

func (i agentToggleItem) FilterValue() string { return i.agent.Name }

func (i agentToggleItem) line(selected bool) string {
	box := "[ ]"
	if i.enabled {
		box = installedStyle.Render("[x]")
	}
	s := box + " " + nameStyle(selected)(i.agent.Name)
	if !i.agent.Detected {
		s += "  " + mutedStyle.Render("(not detected)")
	}
	return s
}

func agentTogglesToItems(agents []core.Agent, skillID string) []list.Item {
	items := make([]list.Item, len(agents))
	for i, a := range agents {
		items[i] = agentToggleItem{agent: a, enabled: a.EnabledSkillIDs.Has(skillID)}
	}
	return items
}
