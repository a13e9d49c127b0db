package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"github.com/barysiuk/skillrow/internal/core"
	"github.com/barysiuk/skillrow/internal/logger"
)

// App is the root bubbletea model.
//
// Update is the engine's single writer: every Manager call that changes
// state happens there. Work that may block (git, markdown rendering) runs as
// a tea.Cmd on a copy of what it needs and reports back as a message.
type App struct {
	ctx     context.Context
	manager *core.Manager
	changes <-chan struct{} // install root watcher; nil when unavailable

	width  int
	height int
	ready  bool

	tabs  tabsModel
	lists [tabCount]list.Model

	// Agent picker for one installed skill.
	picking   bool
	pickSkill core.InstalledSkill
	picker    list.Model

	// SKILL.md preview.
	previewing     bool
	previewTitle   string
	previewLoading bool
	preview        viewport.Model
	previewSpinner spinner.Model
	renderer       *glamour.TermRenderer

	help    help.Model
	status  statusBarModel
	confirm confirmModel
}

// NewApp creates the root model. changes, if non-nil, delivers install root
// removals that trigger garbage collection.
func NewApp(ctx context.Context, m *core.Manager, changes <-chan struct{}) App {
	a := App{
		ctx:     ctx,
		manager: m,
		changes: changes,
		picker:  newList(lineDelegate{}),
		previewSpinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(spinnerStyle),
		),
		help:   help.New(),
		status: newStatusBarModel(),
	}
	a.lists[tabInstalled] = newList(newItemDelegate())
	a.lists[tabBrowse] = newList(newItemDelegate())
	a.lists[tabRepos] = newList(lineDelegate{})
	a.lists[tabAgents] = newList(lineDelegate{})
	a.refresh()
	return a
}

func newList(d list.ItemDelegate) list.Model {
	l := list.New(nil, d, 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()
	l.SetShowPagination(false)
	return l
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, m *core.Manager) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var changes <-chan struct{}
	if w, err := newInstallWatcher(m.InstallRoot()); err != nil {
		logger.G(ctx).WithError(err).Warn("cannot watch install root, clean up runs on focus only")
	} else {
		defer w.Close()
		go w.run(ctx)
		changes = w.changes
	}

	p := tea.NewProgram(NewApp(ctx, m, changes),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}

// --- Messages ---

// syncDoneMsg carries a finished sync job back to the writer.
type syncDoneMsg struct {
	out core.SyncOutcome
}

// agentsDetectedMsg carries a finished detection job back to the writer.
type agentsDetectedMsg struct {
	out core.DetectOutcome
}

// gcRequestMsg asks Update to garbage-collect installed skills.
type gcRequestMsg struct{}

type previewRenderedMsg struct {
	content  string
	renderer *glamour.TermRenderer
}

// Confirmable actions.
type (
	uninstallAction  struct{ skill core.InstalledSkill }
	removeRepoAction struct{ repo core.Repository }
)

// --- Init / Update / View ---

func (a App) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return gcRequestMsg{} },
		waitForChange(a.changes),
	)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.help.Width = msg.Width
		a.status.width = msg.Width
		a.propagateSize()
		return a, nil

	case tea.FocusMsg, gcRequestMsg:
		return a, a.collectGarbage()

	case installRootChangedMsg:
		return a, tea.Batch(a.collectGarbage(), waitForChange(a.changes))

	case syncDoneMsg:
		a.status = a.status.finishTask()
		return a, a.applySync(msg.out)

	case agentsDetectedMsg:
		a.status = a.status.finishTask()
		return a, a.applyDetection(msg.out)

	case previewRenderedMsg:
		a.previewLoading = false
		a.preview.SetContent(msg.content)
		if msg.renderer != nil {
			a.renderer = msg.renderer
		}
		return a, nil

	case spinner.TickMsg:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		a.status, cmd = a.status.update(msg)
		cmds = append(cmds, cmd)
		if a.previewLoading {
			a.previewSpinner, cmd = a.previewSpinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case statusDismissMsg:
		a.status, _ = a.status.update(msg)
		return a, nil

	case confirmResultMsg:
		if !msg.confirmed {
			return a, nil
		}
		return a, a.runAction(msg.action)

	case tea.KeyMsg:
		if a.confirm.active {
			var cmd tea.Cmd
			var consumed bool
			a.confirm, cmd, consumed = a.confirm.update(msg)
			if consumed {
				return a, cmd
			}
		}

		if a.previewing {
			if key.Matches(msg, keys.Back) || key.Matches(msg, keys.Quit) {
				a.previewing = false
				return a, nil
			}
			var cmd tea.Cmd
			a.preview, cmd = a.preview.Update(msg)
			return a, cmd
		}

		if a.picking {
			return a.updatePicker(msg)
		}

		active := &a.lists[a.tabs.active]
		if !active.SettingFilter() {
			if key.Matches(msg, keys.Quit) {
				return a, tea.Quit
			}
			var switched bool
			if a.tabs, switched = a.tabs.update(msg, false); switched {
				return a, nil
			}
			if cmd, handled := a.handleKey(msg); handled {
				return a, cmd
			}
		}
	}

	var cmd tea.Cmd
	if a.picking {
		a.picker, cmd = a.picker.Update(msg)
	} else {
		a.lists[a.tabs.active], cmd = a.lists[a.tabs.active].Update(msg)
	}
	return a, cmd
}

// handleKey runs the active tab's actions. handled is false for keys the
// list itself should see.
func (a *App) handleKey(msg tea.KeyMsg) (cmd tea.Cmd, handled bool) {
	sel := a.lists[a.tabs.active].SelectedItem()

	switch a.tabs.active {
	case tabInstalled:
		it, ok := sel.(installedItem)
		switch {
		case key.Matches(msg, keys.GC):
			return a.collectGarbage(), true
		case !ok:
			return nil, false
		case key.Matches(msg, keys.Enter):
			a.openPicker(it.skill)
			return nil, true
		case key.Matches(msg, keys.Preview):
			return a.openPreview(it.skill), true
		case key.Matches(msg, keys.Delete):
			a.confirm = a.confirm.show(
				fmt.Sprintf("Uninstall %s?\nIt is disabled for every agent.", it.skill.Name),
				uninstallAction{skill: it.skill})
			return nil, true
		}

	case tabBrowse:
		switch {
		case key.Matches(msg, keys.SyncAll):
			return a.syncAll(), true
		case key.Matches(msg, keys.Install):
			it, ok := sel.(manifestItem)
			if !ok {
				return nil, true
			}
			return a.install(it), true
		}

	case tabRepos:
		it, ok := sel.(repoItem)
		switch {
		case key.Matches(msg, keys.SyncAll):
			return a.syncAll(), true
		case !ok:
			return nil, false
		case key.Matches(msg, keys.Sync):
			return a.startSync(it.repo.ID), true
		case key.Matches(msg, keys.Delete):
			a.confirm = a.confirm.show(
				fmt.Sprintf("Remove repository %s?\nInstalled skills are kept.", it.repo.Name),
				removeRepoAction{repo: it.repo})
			return nil, true
		}

	case tabAgents:
		switch {
		case key.Matches(msg, keys.Rescan):
			job := a.manager.BeginDetect()
			var tick tea.Cmd
			a.status, tick = a.status.startTasks(1)
			return tea.Batch(tick, runDetect(a.ctx, job)), true
		case key.Matches(msg, keys.Apply):
			n := a.manager.ApplyAllConfigs(a.ctx)
			return a.flash(fmt.Sprintf("Applied configuration to %d agents", n), statusSuccess), true
		}
	}
	return nil, false
}

func (a App) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !a.picker.SettingFilter() {
		switch {
		case key.Matches(msg, keys.Back), key.Matches(msg, keys.Quit):
			a.picking = false
			return a, a.refresh()
		case key.Matches(msg, keys.Toggle):
			it, ok := a.picker.SelectedItem().(agentToggleItem)
			if !ok {
				return a, nil
			}
			return a, a.toggle(it.agent)
		}
	}
	var cmd tea.Cmd
	a.picker, cmd = a.picker.Update(msg)
	return a, cmd
}

func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	header := a.renderHeader()
	bar := a.status.view(" " + helpStyle.Render(a.help.View(a.helpKeys())))

	borderV := contentStyle.GetVerticalBorderSize()
	borderH := contentStyle.GetHorizontalBorderSize()
	textW, textH := a.innerContentSize()

	var content string
	switch {
	case a.confirm.active:
		content = a.confirm.view()
	case a.previewing:
		content = a.renderPreview()
	case a.picking:
		content = a.renderPicker()
	default:
		content = a.tabs.view() + "\n" + a.lists[a.tabs.active].View()
	}
	content = clampHeight(clampWidth(content, textW), textH)

	box := contentStyle.
		Width(max(0, a.width-borderH)).
		Height(max(0, a.height-a.chromeHeight()-borderV)).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, box, bar)
}

func (a App) renderHeader() string {
	logo := logoStyle.Render("skillrow")
	path := headerPathStyle.Render(shortenPath(a.manager.DataDir()))

	var hint string
	switch {
	case a.previewing:
		hint = a.previewTitle
	case a.picking:
		hint = "Agents for " + a.pickSkill.Name
	default:
		detected := 0
		for _, ag := range a.manager.Agents() {
			if ag.Detected {
				detected++
			}
		}
		hint = fmt.Sprintf("%d agents detected", detected)
	}
	hint = headerHintStyle.Render(hint)

	left := " " + logo + path
	gap := max(1, a.width-lipgloss.Width(left)-lipgloss.Width(hint)-1)
	return left + strings.Repeat(" ", gap) + hint
}

func (a App) helpKeys() help.KeyMap {
	switch {
	case a.previewing:
		return previewHelpKeyMap{}
	case a.picking:
		return agentPickHelpKeyMap{}
	}
	switch a.tabs.active {
	case tabBrowse:
		return browseHelpKeyMap{}
	case tabRepos:
		return reposHelpKeyMap{}
	case tabAgents:
		return agentsHelpKeyMap{}
	}
	return installedHelpKeyMap{}
}

func (a App) renderPicker() string {
	title := mutedStyle.Render("Enable " + a.pickSkill.Name + " for:")
	return title + "\n\n" + a.picker.View()
}

func (a App) renderPreview() string {
	w, _ := a.innerContentSize()
	title := viewportTitleStyle.Render(a.previewTitle)
	rule := mutedStyle.Render(strings.Repeat("─", max(0, w-lipgloss.Width(title))))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, rule)

	if a.previewLoading {
		return header + "\n\n" + a.previewSpinner.View() + " Rendering preview..."
	}
	pct := previewPctStyle.Render(fmt.Sprintf(" %3.0f%% ", a.preview.ScrollPercent()*100))
	return header + "\n\n" + a.preview.View() + "\n\n" + pct
}

// --- Engine actions (writer side) ---

// refresh rebuilds every list from the engine and updates the tab labels.
func (a *App) refresh() tea.Cmd {
	skills := a.manager.InstalledSkills()
	agents := a.manager.Agents()
	browse := manifestsToItems(a.manager)
	repos := reposToItems(a.manager)

	cmds := []tea.Cmd{
		a.lists[tabInstalled].SetItems(installedToItems(skills)),
		a.lists[tabBrowse].SetItems(browse),
		a.lists[tabRepos].SetItems(repos),
		a.lists[tabAgents].SetItems(agentsToItems(agents)),
	}
	if a.picking {
		cmds = append(cmds, a.picker.SetItems(agentTogglesToItems(agents, a.pickSkill.ID.String())))
	}

	detected := 0
	for _, ag := range agents {
		if ag.Detected {
			detected++
		}
	}
	a.tabs = a.tabs.setLabels([tabCount]string{
		fmt.Sprintf("Installed (%d)", len(skills)),
		fmt.Sprintf("Browse (%d)", len(browse)),
		fmt.Sprintf("Repositories (%d)", len(repos)),
		fmt.Sprintf("Agents (%d/%d)", detected, len(agents)),
	})
	return tea.Batch(cmds...)
}

func (a *App) flash(text string, kind statusMsgKind) tea.Cmd {
	var cmd tea.Cmd
	a.status, cmd = a.status.showMsg(text, kind)
	return cmd
}

func (a *App) collectGarbage() tea.Cmd {
	n, err := a.manager.GarbageCollect(a.ctx)
	if err != nil {
		return a.flash(fmt.Sprintf("Error: %v", err), statusError)
	}
	if n == 0 {
		return nil
	}
	return tea.Batch(a.refresh(), a.flash(fmt.Sprintf("Removed %d missing skills", n), statusWarning))
}

func (a *App) syncAll() tea.Cmd {
	repos := a.manager.Repositories()
	ids := make([]uuid.UUID, len(repos))
	for i, r := range repos {
		ids[i] = r.ID
	}
	return a.startSync(ids...)
}

// startSync begins a job per repository and runs them as commands.
// Repositories already syncing are skipped.
func (a *App) startSync(ids ...uuid.UUID) tea.Cmd {
	var cmds []tea.Cmd
	started := 0
	for _, id := range ids {
		job, err := a.manager.BeginSync(id)
		if errors.Is(err, core.ErrSyncInProgress) {
			continue
		}
		if err != nil {
			cmds = append(cmds, a.flash(fmt.Sprintf("Error: %v", err), statusError))
			continue
		}
		started++
		cmds = append(cmds, runSync(a.ctx, job))
	}

	var tick tea.Cmd
	a.status, tick = a.status.startTasks(started)
	return tea.Batch(append(cmds, tick, a.refresh())...)
}

func runSync(ctx context.Context, job core.SyncJob) tea.Cmd {
	return func() tea.Msg {
		return syncDoneMsg{out: job.Run(ctx)}
	}
}

func (a *App) applySync(out core.SyncOutcome) tea.Cmd {
	err := a.manager.ApplySync(a.ctx, out)
	repo, ok := a.manager.Repository(out.RepoID)
	refresh := a.refresh()
	switch {
	case errors.Is(err, core.ErrRepositoryNotFound) || !ok:
		return refresh
	case err != nil:
		return tea.Batch(refresh, a.flash(fmt.Sprintf("Sync failed for %s: %v", repo.Name, err), statusError))
	}
	return tea.Batch(refresh, a.flash(fmt.Sprintf("Synced %s (%d skills)", repo.Name, len(repo.Skills)), statusSuccess))
}

func runDetect(ctx context.Context, job core.DetectJob) tea.Cmd {
	return func() tea.Msg {
		return agentsDetectedMsg{out: job.Run(ctx)}
	}
}

func (a *App) applyDetection(out core.DetectOutcome) tea.Cmd {
	n, err := a.manager.ApplyDetection(a.ctx, out)
	if err != nil {
		return tea.Batch(a.refresh(), a.flash(fmt.Sprintf("Error: %v", err), statusError))
	}
	return tea.Batch(a.refresh(), a.flash(fmt.Sprintf("Detected %d agents", n), statusSuccess))
}

func (a *App) install(it manifestItem) tea.Cmd {
	skill, err := a.manager.Install(a.ctx, it.manifest.RepositoryID, it.manifest.ID)
	if err != nil {
		return a.flash(fmt.Sprintf("Error: %v", err), statusError)
	}
	return tea.Batch(a.refresh(), a.flash("Installed "+skill.Name, statusSuccess))
}

func (a *App) toggle(agent core.Agent) tea.Cmd {
	enabled, err := a.manager.ToggleSkillForAgent(a.ctx, a.pickSkill.ID, agent.ID)
	if err != nil {
		return a.flash(fmt.Sprintf("Error: %v", err), statusError)
	}
	verb := "Disabled"
	if enabled {
		verb = "Enabled"
	}
	return tea.Batch(a.refresh(), a.flash(fmt.Sprintf("%s %s for %s", verb, a.pickSkill.Name, agent.Name), statusSuccess))
}

func (a *App) runAction(action any) tea.Cmd {
	switch act := action.(type) {
	case uninstallAction:
		res, err := a.manager.Uninstall(a.ctx, act.skill.ID, core.UninstallOptions{})
		if err != nil {
			return a.flash(fmt.Sprintf("Error: %v", err), statusError)
		}
		return tea.Batch(a.refresh(), a.flash("Uninstalled "+res.Name, statusSuccess))

	case removeRepoAction:
		if err := a.manager.RemoveRepository(a.ctx, act.repo.ID); err != nil {
			return a.flash(fmt.Sprintf("Error: %v", err), statusError)
		}
		return tea.Batch(a.refresh(), a.flash("Removed "+act.repo.Name, statusSuccess))
	}
	return nil
}

// --- Overlays ---

func (a *App) openPicker(skill core.InstalledSkill) {
	a.picking = true
	a.pickSkill = skill
	a.picker.ResetFilter()
	a.picker.Select(0)
	a.refresh()
	a.propagateSize()
}

// openPreview renders the skill's SKILL.md off the writer. The file is read
// here; only the rendering runs in the command.
func (a *App) openPreview(skill core.InstalledSkill) tea.Cmd {
	data, err := os.ReadFile(filepath.Join(skill.LocalPath, "SKILL.md"))
	if err != nil {
		return a.flash(fmt.Sprintf("No SKILL.md for %s", skill.Name), statusWarning)
	}

	a.previewing = true
	a.previewLoading = true
	a.previewTitle = skill.Name
	w, h := a.innerContentSize()
	a.preview = viewport.New(w, max(0, h-4)) // title, blank, blank, percentage

	body := stripFrontmatter(string(data))
	style := MarkdownStyle(a.manager.Preferences().ColorScheme)
	r := a.renderer
	render := func() tea.Msg {
		if r == nil {
			var err error
			r, err = glamour.NewTermRenderer(style, glamour.WithWordWrap(w))
			if err != nil {
				return previewRenderedMsg{content: body}
			}
		}
		out, err := r.Render(body)
		if err != nil {
			out = body
		}
		return previewRenderedMsg{content: strings.TrimRight(out, "\n"), renderer: r}
	}
	return tea.Batch(a.previewSpinner.Tick, render)
}

// stripFrontmatter drops a leading YAML frontmatter block.
func stripFrontmatter(s string) string {
	rest, ok := strings.CutPrefix(s, "---\n")
	if !ok {
		return s
	}
	if _, body, found := strings.Cut(rest, "\n---"); found {
		_, body, _ = strings.Cut(body, "\n")
		return strings.TrimLeft(body, "\n")
	}
	return s
}

// --- Layout ---

func (a App) chromeHeight() int {
	return lipgloss.Height(a.renderHeader()) + 1 // status bar
}

// innerContentSize is the text area inside contentStyle's border and
// padding.
func (a App) innerContentSize() (width, height int) {
	width = max(0, a.width-contentStyle.GetHorizontalFrameSize())
	height = max(0, a.height-a.chromeHeight()-contentStyle.GetVerticalFrameSize())
	return width, height
}

func (a *App) propagateSize() {
	w, h := a.innerContentSize()
	for i := range a.lists {
		a.lists[i].SetSize(w, max(0, h-2)) // tab bar
	}
	a.picker.SetSize(w, max(0, h-2)) // title line
	a.confirm = a.confirm.setSize(w, h)
	if a.previewing {
		a.preview.Width = w
		a.preview.Height = max(0, h-4)
	}
}

// clampHeight truncates content to at most maxLines lines so an oversized
// view can never push the header off-screen.
func clampHeight(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) <= maxLines {
		return content
	}
	return strings.Join(lines[:maxLines], "\n")
}

// clampWidth truncates each line to maxWidth cells, ANSI aware, so lipgloss
// never wraps inside the fixed-width content box.
func clampWidth(content string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if lipgloss.Width(line) > maxWidth {
			lines[i] = ansi.Truncate(line, maxWidth, "")
		}
	}
	return strings.Join(lines, "\n")
}

// shortenPath replaces the home directory prefix with ~.
func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || !strings.HasPrefix(path, home) {
		return path
	}
	return "~" + path[len(home):]
}
