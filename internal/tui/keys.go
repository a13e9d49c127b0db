package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the keybindings for the TUI.
type keyMap struct {
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Enter    key.Binding
	Back     key.Binding
	Tab      key.Binding
	ShiftTab key.Binding
	Filter   key.Binding
	Toggle   key.Binding
	Install  key.Binding
	Preview  key.Binding
	Delete   key.Binding
	Sync     key.Binding
	SyncAll  key.Binding
	Rescan   key.Binding
	Apply    key.Binding
	GC       key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("k/up", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("j/down", "down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "agents"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next tab"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev tab"),
	),
	Filter: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" ", "x"),
		key.WithHelp("space", "toggle"),
	),
	Install: key.NewBinding(
		key.WithKeys("i", "enter"),
		key.WithHelp("i", "install"),
	),
	Preview: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "preview"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d", "delete"),
		key.WithHelp("d", "remove"),
	),
	Sync: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "sync"),
	),
	SyncAll: key.NewBinding(
		key.WithKeys("S"),
		key.WithHelp("S", "sync all"),
	),
	Rescan: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rescan"),
	),
	Apply: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "apply all"),
	),
	GC: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "clean up"),
	),
}

// ---------------------------------------------------------------------------
// Per-view help keymaps for the help.Model component.
// ---------------------------------------------------------------------------

type installedHelpKeyMap struct{}

func (k installedHelpKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		keys.Up, keys.Down, keys.Enter, keys.Preview, keys.Filter,
		keys.Delete, keys.GC, keys.Tab, keys.Quit,
	}
}

func (k installedHelpKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type browseHelpKeyMap struct{}

func (k browseHelpKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		keys.Up, keys.Down, keys.Install, keys.Filter, keys.SyncAll, keys.Tab, keys.Quit,
	}
}

func (k browseHelpKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type reposHelpKeyMap struct{}

func (k reposHelpKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		keys.Up, keys.Down, keys.Sync, keys.SyncAll, keys.Delete, keys.Tab, keys.Quit,
	}
}

func (k reposHelpKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type agentsHelpKeyMap struct{}

func (k agentsHelpKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		keys.Up, keys.Down, keys.Rescan, keys.Apply, keys.Tab, keys.Quit,
	}
}

func (k agentsHelpKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// agentPickHelpKeyMap is shown while choosing agents for a skill.
type agentPickHelpKeyMap struct{}

func (k agentPickHelpKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{keys.Up, keys.Down, keys.Toggle, keys.Back}
}

func (k agentPickHelpKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type previewHelpKeyMap struct{}

func (k previewHelpKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{keys.Up, keys.Down, keys.Back}
}

func (k previewHelpKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
