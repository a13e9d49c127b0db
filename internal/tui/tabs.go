package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// tab identifies a top-level view.
type tab int

const (
	tabInstalled tab = iota
	tabBrowse
	tabRepos
	tabAgents
	tabCount
)

// tabsModel is the horizontal tab bar:
//
//	Installed (3) │ Browse (12) │ Repositories (5) │ Agents (4/16)
//	─────────────
type tabsModel struct {
	labels [tabCount]string
	active tab
}

func (m tabsModel) setLabels(labels [tabCount]string) tabsModel {
	m.labels = labels
	return m
}

// update cycles tabs on Tab / Shift+Tab and reports whether the key was
// consumed. blocked suppresses switching, e.g. while a list is filtering.
func (m tabsModel) update(msg tea.Msg, blocked bool) (tabsModel, bool) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok || blocked {
		return m, false
	}
	switch {
	case key.Matches(kmsg, keys.Tab):
		m.active = (m.active + 1) % tabCount
		return m, true
	case key.Matches(kmsg, keys.ShiftTab):
		m.active = (m.active - 1 + tabCount) % tabCount
		return m, true
	}
	return m, false
}

// view renders the tab line plus an underline below the active tab. It is
// always two lines high.
func (m tabsModel) view() string {
	sep := tabSeparatorStyle.Render("│")

	rendered := make([]string, tabCount)
	for i, label := range m.labels {
		if tab(i) == m.active {
			rendered[i] = tabActiveStyle.Render(label)
		} else {
			rendered[i] = tabInactiveStyle.Render(label)
		}
	}

	offset := 0
	for i := 0; i < int(m.active); i++ {
		offset += lipgloss.Width(rendered[i]) + lipgloss.Width(sep)
	}
	underline := strings.Repeat(" ", offset) +
		tabUnderlineStyle.Render(strings.Repeat("─", lipgloss.Width(rendered[m.active])))

	return strings.Join(rendered, sep) + "\n" + underline
}
