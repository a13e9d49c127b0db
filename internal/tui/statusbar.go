package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type statusMsgKind int

const (
	statusSuccess statusMsgKind = iota
	statusError
	statusWarning
)

// statusAutoDismiss is how long transient messages stay visible.
const statusAutoDismiss = 3 * time.Second

// statusBarModel is the bottom line of the TUI.
//
// Layout: [left: transient message or help] [right: sync progress]
//
// A transient message replaces the help until it is dismissed. The right
// zone shows a spinner and "syncing done/total" while sync jobs run.
type statusBarModel struct {
	width int

	msg     string
	msgKind statusMsgKind
	msgID   int // monotonic; stale dismiss timers carry an old id
	nextID  int

	total   int // sync jobs started in the current batch
	done    int
	spinner spinner.Model
}

type statusDismissMsg struct {
	id int
}

func newStatusBarModel() statusBarModel {
	return statusBarModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(spinnerStyle),
		),
	}
}

// showMsg displays a transient message and returns the timer that
// dismisses it.
func (m statusBarModel) showMsg(text string, kind statusMsgKind) (statusBarModel, tea.Cmd) {
	m.msg = text
	m.msgKind = kind
	m.msgID = m.nextID
	m.nextID++

	id := m.msgID
	return m, tea.Tick(statusAutoDismiss, func(time.Time) tea.Msg {
		return statusDismissMsg{id: id}
	})
}

// startTasks adds n jobs to the current batch. The spinner starts with the
// first job of a batch.
func (m statusBarModel) startTasks(n int) (statusBarModel, tea.Cmd) {
	if n <= 0 {
		return m, nil
	}
	idle := !m.tasksRunning()
	m.total += n
	if idle {
		return m, m.spinner.Tick
	}
	return m, nil
}

// finishTask marks one job done; the batch resets when all are done.
func (m statusBarModel) finishTask() statusBarModel {
	m.done++
	if m.done >= m.total {
		m.total, m.done = 0, 0
	}
	return m
}

func (m statusBarModel) tasksRunning() bool {
	return m.total > 0 && m.done < m.total
}

func (m statusBarModel) update(msg tea.Msg) (statusBarModel, tea.Cmd) {
	switch msg := msg.(type) {
	case statusDismissMsg:
		if msg.id == m.msgID {
			m.msg = ""
		}
	case spinner.TickMsg:
		if m.tasksRunning() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// view renders the bar. help is shown when no message is active.
func (m statusBarModel) view(help string) string {
	left := help
	switch {
	case m.msg == "":
	case m.msgKind == statusError:
		left = statusErrorStyle.Render("✗ " + m.msg)
	case m.msgKind == statusWarning:
		left = statusWarningStyle.Render("⚠ " + m.msg)
	default:
		left = statusSuccessStyle.Render("✓ " + m.msg)
	}

	if !m.tasksRunning() {
		return left
	}
	right := statusTaskStyle.Render(fmt.Sprintf("%s syncing %d/%d", m.spinner.View(), m.done, m.total))
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 2 {
		gap = 2
	}
	return left + strings.Repeat(" ", gap) + right
}
