package tui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Color palette.
var (
	colorPrimary   = lipgloss.Color("#0E7490") // Teal
	colorSecondary = lipgloss.Color("#67E8F9") // Light teal
	colorSuccess   = lipgloss.Color("#10B981") // Green (installed, enabled)
	colorDanger    = lipgloss.Color("#F43F5E") // Rose (errors)
	colorMuted     = lipgloss.Color("#64748B") // Slate
	colorBorder    = lipgloss.Color("#334155") // Dark slate
	colorWarning   = lipgloss.Color("#FBBF24") // Amber
	colorText      = lipgloss.Color("#D1D5DB")
)

var (
	logoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 1)

	headerPathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E2E8F0")).
			Padding(0, 1)

	headerHintStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	// Main content box. Layout math reads its frame sizes, so change
	// border or padding here only.
	contentStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorSecondary)

	normalItemStyle = lipgloss.NewStyle().
			Foreground(colorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	badgeStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)

	installedStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorDanger)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	// SKILL.md preview.
	viewportTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorText).
				Background(colorBorder).
				Padding(0, 1)

	previewPctStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBorder)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)

	// Tabs.
	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 1)

	tabSeparatorStyle = lipgloss.NewStyle().
				Foreground(colorBorder)

	tabUnderlineStyle = lipgloss.NewStyle().
				Foreground(colorPrimary)

	// Status bar zones.
	statusSuccessStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	statusErrorStyle   = lipgloss.NewStyle().Foreground(colorDanger)
	statusWarningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	statusTaskStyle    = lipgloss.NewStyle().Foreground(colorSecondary)

	// Confirmation dialog.
	dialogBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(1, 2)

	dialogButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F8FAFC")).
				Background(colorMuted).
				Padding(0, 2)

	dialogActiveButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F8FAFC")).
				Background(colorDanger).
				Padding(0, 2).
				Bold(true)
)

// newItemDelegate returns the two-line delegate used by the installed and
// browse lists: a bar marks the selection, matches are highlighted while
// filtering.
func newItemDelegate() list.DefaultDelegate {
	d := list.NewDefaultDelegate()

	d.Styles.NormalTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#E2E8F0")).
		Padding(0, 0, 0, 2)

	d.Styles.NormalDesc = lipgloss.NewStyle().
		Foreground(colorMuted).
		Padding(0, 0, 0, 2)

	d.Styles.SelectedTitle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(colorPrimary).
		Foreground(colorSecondary).
		Bold(true).
		Padding(0, 0, 0, 1)

	d.Styles.SelectedDesc = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(colorPrimary).
		Foreground(colorMuted).
		Padding(0, 0, 0, 1)

	d.Styles.DimmedTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorMuted).
		Padding(0, 0, 0, 2)

	d.Styles.DimmedDesc = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#4D4D4D")).
		Padding(0, 0, 0, 2)

	return d
}

// Color schemes accepted in Preferences.ColorScheme.
const (
	SchemeAuto  = "auto"
	SchemeDark  = "dark"
	SchemeLight = "light"
)

// MarkdownStyle maps a color scheme preference to a glamour style. Unknown
// and empty schemes follow the terminal background.
func MarkdownStyle(scheme string) glamour.TermRendererOption {
	switch scheme {
	case SchemeDark, SchemeLight:
		return glamour.WithStandardStyle(scheme)
	}
	return glamour.WithAutoStyle()
}
