package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmModel is a centered Yes/No dialog. While active it consumes every
// key.
//
// The dialog never runs the confirmed operation itself: it emits a
// confirmResultMsg carrying the action back into App.Update, which is the
// only place engine state may change.
//
// left/right/tab/shift+tab move focus, enter activates the focused button,
// y/n/esc answer directly.
type confirmModel struct {
	active   bool
	message  string
	action   any
	focusYes bool

	width  int
	height int
}

// confirmResultMsg reports the answer together with the pending action.
type confirmResultMsg struct {
	confirmed bool
	action    any
}

// show activates the dialog. Focus starts on No.
func (m confirmModel) show(message string, action any) confirmModel {
	m.active = true
	m.message = message
	m.action = action
	m.focusYes = false
	return m
}

func (m confirmModel) setSize(width, height int) confirmModel {
	m.width = width
	m.height = height
	return m
}

func (m confirmModel) answer(yes bool) (confirmModel, tea.Cmd) {
	res := confirmResultMsg{confirmed: yes, action: m.action}
	m = confirmModel{width: m.width, height: m.height}
	return m, func() tea.Msg { return res }
}

// update handles a key while the dialog is active and reports whether the
// message was consumed.
func (m confirmModel) update(msg tea.Msg) (confirmModel, tea.Cmd, bool) {
	if !m.active {
		return m, nil, false
	}
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil, false
	}

	switch {
	case key.Matches(keyMsg, confirmYesKey):
		m, cmd := m.answer(true)
		return m, cmd, true
	case key.Matches(keyMsg, confirmNoKey), key.Matches(keyMsg, keys.Back):
		m, cmd := m.answer(false)
		return m, cmd, true
	case key.Matches(keyMsg, keys.Enter):
		m, cmd := m.answer(m.focusYes)
		return m, cmd, true
	case key.Matches(keyMsg, confirmSwitch):
		m.focusYes = !m.focusYes
	}
	return m, nil, true
}

func (m confirmModel) view() string {
	if !m.active {
		return ""
	}

	question := lipgloss.NewStyle().
		Width(44).
		Align(lipgloss.Center).
		Render(m.message)

	yes, no := dialogButtonStyle, dialogActiveButtonStyle
	if m.focusYes {
		yes, no = dialogActiveButtonStyle, dialogButtonStyle
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top, yes.Render("Yes"), "  ", no.Render("No"))
	dialog := dialogBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, question, "", buttons))

	if m.width <= 0 || m.height <= 0 {
		return dialog
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}

var (
	confirmYesKey = key.NewBinding(key.WithKeys("y", "Y"))
	confirmNoKey  = key.NewBinding(key.WithKeys("n", "N"))
	confirmSwitch = key.NewBinding(key.WithKeys("left", "right", "h", "l", "tab", "shift+tab"))
)
