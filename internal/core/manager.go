package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/barysiuk/skillrow/internal/core/system"
	"github.com/barysiuk/skillrow/internal/logger"
	"github.com/barysiuk/skillrow/internal/store"
)

const (
	defaultUnzipTimeout  = 60 * time.Second
	defaultDetectTimeout = 5 * time.Second
)

// Manager owns repositories, installed skills, agents and preferences.
//
// It is a single-writer aggregate: every method must be called from one
// goroutine (the CLI command, or the TUI update loop). Long-running work
// either runs off-writer through SyncJob, or is bounded by a timeout.
type Manager struct {
	store   store.Store
	dataDir string
	vcs     VCS

	unzipTimeout  time.Duration
	detectTimeout time.Duration

	repos      []Repository
	skills     []InstalledSkill
	agents     []Agent
	prefs      Preferences
	syncStates map[uuid.UUID]*SyncState
}

// Option configures a Manager.
type Option func(*Manager)

// WithDataDir sets the directory holding clones and installed skills.
func WithDataDir(dir string) Option { return func(m *Manager) { m.dataDir = dir } }

// WithVCS replaces the git client.
func WithVCS(v VCS) Option { return func(m *Manager) { m.vcs = v } }

// WithSyncTimeout bounds each git process run by the default git client.
func WithSyncTimeout(d time.Duration) Option {
	return func(m *Manager) { m.vcs = GitVCS{Timeout: d} }
}

// WithUnzipTimeout bounds archive extraction.
func WithUnzipTimeout(d time.Duration) Option { return func(m *Manager) { m.unzipTimeout = d } }

// WithDetectTimeout bounds each agent detection probe.
func WithDetectTimeout(d time.Duration) Option { return func(m *Manager) { m.detectTimeout = d } }

// Open creates a Manager and loads its state from st.
func Open(ctx context.Context, st store.Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:         st,
		vcs:           GitVCS{Timeout: defaultSyncTimeout},
		unzipTimeout:  defaultUnzipTimeout,
		detectTimeout: defaultDetectTimeout,
		syncStates:    make(map[uuid.UUID]*SyncState),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		m.dataDir = filepath.Join(home, ".skillrow")
	}
	if err := m.load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// DataDir returns the engine data directory.
func (m *Manager) DataDir() string { return m.dataDir }

// InstallRoot is the directory every installed skill lives under.
func (m *Manager) InstallRoot() string { return filepath.Join(m.dataDir, "installed") }

func (m *Manager) reposDir() string { return filepath.Join(m.dataDir, "repos") }

// --- Repositories ---

// Repositories returns a snapshot of all repositories.
func (m *Manager) Repositories() []Repository {
	out := make([]Repository, len(m.repos))
	copy(out, m.repos)
	return out
}

// Repository returns the repository with id.
func (m *Manager) Repository(id uuid.UUID) (Repository, bool) {
	if r := m.findRepo(id); r != nil {
		return *r, true
	}
	return Repository{}, false
}

// FindRepository resolves a repository by id string or by name.
func (m *Manager) FindRepository(ref string) (Repository, bool) {
	if id, err := uuid.Parse(ref); err == nil {
		return m.Repository(id)
	}
	for _, r := range m.repos {
		if strings.EqualFold(r.Name, ref) {
			return r, true
		}
	}
	return Repository{}, false
}

func (m *Manager) findRepo(id uuid.UUID) *Repository {
	for i := range m.repos {
		if m.repos[i].ID == id {
			return &m.repos[i]
		}
	}
	return nil
}

func (in RepositoryInput) normalize() (RepositoryInput, error) {
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return in, fmt.Errorf("%w: repository URL is required", ErrInvalidInput)
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		in.Name = nameFromURL(in.URL)
	}
	in.Branch = strings.TrimSpace(in.Branch)
	if in.Branch == "" {
		in.Branch = defaultBranch
	}
	in.SkillPath = strings.TrimSpace(in.SkillPath)
	if in.SkillPath == "" {
		in.SkillPath = defaultSkillPath
	}
	return in, nil
}

func nameFromURL(url string) string {
	url = strings.TrimSuffix(strings.TrimSuffix(url, "/"), ".git")
	if idx := strings.LastIndexAny(url, "/:"); idx >= 0 {
		url = url[idx+1:]
	}
	if url == "" {
		return "repository"
	}
	return url
}

func (m *Manager) urlTaken(url string, except uuid.UUID) bool {
	for _, r := range m.repos {
		if r.ID != except && strings.EqualFold(strings.TrimSuffix(r.URL, ".git"), strings.TrimSuffix(url, ".git")) {
			return true
		}
	}
	return false
}

// AddRepository registers a new repository. It is not synced.
func (m *Manager) AddRepository(ctx context.Context, in RepositoryInput) (Repository, error) {
	in, err := in.normalize()
	if err != nil {
		return Repository{}, err
	}
	if m.urlTaken(in.URL, uuid.Nil) {
		return Repository{}, fmt.Errorf("%w: repository %s already added", ErrInvalidInput, in.URL)
	}

	repo := Repository{
		ID:        uuid.New(),
		Name:      in.Name,
		URL:       in.URL,
		Branch:    in.Branch,
		SkillPath: in.SkillPath,
		Skills:    []RemoteManifest{},
	}
	m.repos = append(m.repos, repo)
	return repo, m.save(ctx)
}

// UpdateRepository edits a repository. Changing the URL or branch drops the
// synced state so the next sync starts from a fresh clone.
func (m *Manager) UpdateRepository(ctx context.Context, id uuid.UUID, in RepositoryInput) (Repository, error) {
	repo := m.findRepo(id)
	if repo == nil {
		return Repository{}, fmt.Errorf("%w: %s", ErrRepositoryNotFound, id)
	}
	in, err := in.normalize()
	if err != nil {
		return Repository{}, err
	}
	if m.urlTaken(in.URL, id) {
		return Repository{}, fmt.Errorf("%w: repository %s already added", ErrInvalidInput, in.URL)
	}

	if in.URL != repo.URL || in.Branch != repo.Branch {
		repo.LocalPath = ""
		repo.LastSync = nil
		repo.Skills = []RemoteManifest{}
	}
	repo.Name = in.Name
	repo.URL = in.URL
	repo.Branch = in.Branch
	repo.SkillPath = in.SkillPath
	return *repo, m.save(ctx)
}

// RemoveRepository deletes the repository record. Skills installed from it
// stay installed.
func (m *Manager) RemoveRepository(ctx context.Context, id uuid.UUID) error {
	for i := range m.repos {
		if m.repos[i].ID == id {
			m.repos = append(m.repos[:i], m.repos[i+1:]...)
			delete(m.syncStates, id)
			return m.save(ctx)
		}
	}
	return fmt.Errorf("%w: %s", ErrRepositoryNotFound, id)
}

// --- Manifests ---

// Manifests returns every manifest of every repository.
func (m *Manager) Manifests() []RemoteManifest {
	var out []RemoteManifest
	for _, r := range m.repos {
		out = append(out, r.Skills...)
	}
	return out
}

// FilterManifests returns manifests whose name, description or author
// contains query (case-insensitive), optionally limited to one repository.
// Results are sorted by name.
func (m *Manager) FilterManifests(query string, repoID uuid.UUID) []RemoteManifest {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []RemoteManifest
	for _, r := range m.repos {
		if repoID != uuid.Nil && r.ID != repoID {
			continue
		}
		for _, s := range r.Skills {
			if q == "" ||
				strings.Contains(strings.ToLower(s.Name), q) ||
				strings.Contains(strings.ToLower(s.Description), q) ||
				strings.Contains(strings.ToLower(s.Author), q) {
				out = append(out, s)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

// IsSkillInstalled reports whether the manifest (repoID, manifestID) is installed.
func (m *Manager) IsSkillInstalled(repoID uuid.UUID, manifestID string) bool {
	return m.findInstalledFrom(repoID, manifestID) != nil
}

func (m *Manager) findInstalledFrom(repoID uuid.UUID, manifestID string) *InstalledSkill {
	for i := range m.skills {
		if m.skills[i].RepositoryID == repoID && m.skills[i].OriginalRemoteID == manifestID {
			return &m.skills[i]
		}
	}
	return nil
}

// --- Installed skills ---

// InstalledSkills returns a snapshot of installed skills.
func (m *Manager) InstalledSkills() []InstalledSkill {
	out := make([]InstalledSkill, len(m.skills))
	for i, s := range m.skills {
		s.AssignedAgentIDs = s.AssignedAgentIDs.clone()
		out[i] = s
	}
	return out
}

// InstalledSkill returns the installed skill with id.
func (m *Manager) InstalledSkill(id uuid.UUID) (InstalledSkill, bool) {
	if s := m.findSkill(id); s != nil {
		out := *s
		out.AssignedAgentIDs = s.AssignedAgentIDs.clone()
		return out, true
	}
	return InstalledSkill{}, false
}

// FindInstalledSkill resolves an installed skill by id string or by name.
func (m *Manager) FindInstalledSkill(ref string) (InstalledSkill, bool) {
	if id, err := uuid.Parse(ref); err == nil {
		return m.InstalledSkill(id)
	}
	for _, s := range m.skills {
		if strings.EqualFold(s.Name, ref) {
			return m.InstalledSkill(s.ID)
		}
	}
	return InstalledSkill{}, false
}

func (m *Manager) findSkill(id uuid.UUID) *InstalledSkill {
	for i := range m.skills {
		if m.skills[i].ID == id {
			return &m.skills[i]
		}
	}
	return nil
}

// --- Agents ---

// Agents returns a snapshot of all agents.
func (m *Manager) Agents() []Agent {
	out := make([]Agent, len(m.agents))
	for i, a := range m.agents {
		a.EnabledSkillIDs = a.EnabledSkillIDs.clone()
		out[i] = a
	}
	return out
}

// Agent returns the agent with id.
func (m *Manager) Agent(id string) (Agent, bool) {
	if a := m.findAgent(id); a != nil {
		out := *a
		out.EnabledSkillIDs = a.EnabledSkillIDs.clone()
		return out, true
	}
	return Agent{}, false
}

func (m *Manager) findAgent(id string) *Agent {
	for i := range m.agents {
		if m.agents[i].ID == id {
			return &m.agents[i]
		}
	}
	return nil
}

func (m *Manager) systemFor(a *Agent) system.System {
	return system.Resolve(a.ID, a.Name, a.ConfigPath, a.ConfigFormat)
}

// DetectAgents probes every agent concurrently, then records the results.
// Enabled skill sets are never touched. It returns the number detected.
func (m *Manager) DetectAgents(ctx context.Context) (int, error) {
	return m.ApplyDetection(ctx, m.BeginDetect().Run(ctx))
}

// Rescan re-runs detection on demand.
func (m *Manager) Rescan(ctx context.Context) (int, error) { return m.DetectAgents(ctx) }

// ToggleSkillForAgent flips whether skillID is enabled for agentID and
// re-projects the agent when it is detected. It returns the new state.
// Projection failures are logged, never returned.
func (m *Manager) ToggleSkillForAgent(ctx context.Context, skillID uuid.UUID, agentID string) (bool, error) {
	skill := m.findSkill(skillID)
	if skill == nil {
		return false, fmt.Errorf("%w: %s", ErrSkillNotFound, skillID)
	}
	agent := m.findAgent(agentID)
	if agent == nil {
		return false, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if agent.EnabledSkillIDs == nil {
		agent.EnabledSkillIDs = NewIDSet()
	}
	if skill.AssignedAgentIDs == nil {
		skill.AssignedAgentIDs = NewIDSet()
	}

	key := skillID.String()
	enabled := !agent.EnabledSkillIDs.Has(key)
	if enabled {
		agent.EnabledSkillIDs[key] = struct{}{}
		skill.AssignedAgentIDs[agentID] = struct{}{}
	} else {
		delete(agent.EnabledSkillIDs, key)
		delete(skill.AssignedAgentIDs, agentID)
	}

	if agent.Detected {
		m.project(ctx, agent)
	}
	return enabled, m.save(ctx)
}

// ApplyAllConfigs re-projects every detected agent.
func (m *Manager) ApplyAllConfigs(ctx context.Context) int {
	n := 0
	for i := range m.agents {
		if m.agents[i].Detected {
			m.project(ctx, &m.agents[i])
			n++
		}
	}
	return n
}

// EnsureAgentConfig creates an agent's initial config file or skills
// directory if it is missing and returns its path.
func (m *Manager) EnsureAgentConfig(agentID string) (string, error) {
	agent := m.findAgent(agentID)
	if agent == nil {
		return "", fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	path, err := m.systemFor(agent).EnsureConfig()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	return path, nil
}

// project writes the agent's enabled set to disk. Errors are logged and
// swallowed: a broken agent config must never fail the caller.
func (m *Manager) project(ctx context.Context, agent *Agent) {
	var skills []system.Skill
	for _, s := range m.skills {
		if !agent.EnabledSkillIDs.Has(s.ID.String()) {
			continue
		}
		skills = append(skills, system.Skill{
			ID:          s.ID.String(),
			Name:        s.Name,
			RepoName:    s.RepositoryName,
			Description: s.Description,
			Command:     s.Command,
			Author:      s.Author,
			Version:     s.Version,
			Path:        s.LocalPath,
		})
	}

	sys := m.systemFor(agent)
	err := sys.Project(ctx, skills, system.ProjectOptions{InstallRoot: m.InstallRoot()})
	if err != nil {
		logger.G(ctx).WithField("agent", agent.ID).WithField("target", sys.Target()).WithError(err).
			Warn("failed to project agent config")
	}
}

// --- Preferences ---

// Preferences returns the persisted UI preferences.
func (m *Manager) Preferences() Preferences { return m.prefs }

// SetPreferences replaces the UI preferences.
func (m *Manager) SetPreferences(ctx context.Context, p Preferences) error {
	m.prefs = p
	return m.save(ctx)
}
