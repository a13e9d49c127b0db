package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/barysiuk/skillrow/internal/logger"
)

// Persisted keys.
const (
	keyRepositories    = "repositories"
	keyInstalledSkills = "installedSkills"
	keyAgents          = "agents"
	keyColorScheme     = "colorScheme"
	keyLanguage        = "language"
)

// Save persists the whole engine state.
func (m *Manager) Save(ctx context.Context) error { return m.save(ctx) }

func (m *Manager) save(ctx context.Context) error {
	values := []struct {
		key string
		v   any
	}{
		{keyRepositories, m.repos},
		{keyInstalledSkills, m.skills},
		{keyAgents, m.agents},
		{keyColorScheme, m.prefs.ColorScheme},
		{keyLanguage, m.prefs.Language},
	}
	for _, kv := range values {
		data, err := json.Marshal(kv.v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", kv.key, err)
		}
		if err := m.store.Put(ctx, kv.key, data); err != nil {
			return fmt.Errorf("saving %s: %w", kv.key, err)
		}
	}
	return nil
}

// loadKey decodes key into v. A missing key reports false; a corrupt value is
// logged and treated as missing.
func (m *Manager) loadKey(ctx context.Context, key string, v any) (bool, error) {
	data, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("loading %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.G(ctx).WithField("key", key).WithError(err).Warn("ignoring corrupt stored value")
		return false, nil
	}
	return true, nil
}

func (m *Manager) load(ctx context.Context) error {
	var repos []Repository
	found, err := m.loadKey(ctx, keyRepositories, &repos)
	if err != nil {
		return err
	}
	if !found {
		repos = DefaultRepositories()
	}

	var skills []InstalledSkill
	if _, err := m.loadKey(ctx, keyInstalledSkills, &skills); err != nil {
		return err
	}

	var agents []Agent
	if _, err := m.loadKey(ctx, keyAgents, &agents); err != nil {
		return err
	}

	var prefs Preferences
	if _, err := m.loadKey(ctx, keyColorScheme, &prefs.ColorScheme); err != nil {
		return err
	}
	if _, err := m.loadKey(ctx, keyLanguage, &prefs.Language); err != nil {
		return err
	}

	m.replaceState(repos, skills, agents)
	m.prefs = prefs
	return nil
}

// replaceState installs a full snapshot, adding missing preset agents and
// repairing the agent/skill cross references.
func (m *Manager) replaceState(repos []Repository, skills []InstalledSkill, agents []Agent) {
	for i := range repos {
		if repos[i].Skills == nil {
			repos[i].Skills = []RemoteManifest{}
		}
	}
	if repos == nil {
		repos = []Repository{}
	}
	if skills == nil {
		skills = []InstalledSkill{}
	}

	m.repos = repos
	m.skills = skills
	m.agents = mergePresetAgents(agents)
	m.syncStates = make(map[uuid.UUID]*SyncState)
	m.relink()
}

// mergePresetAgents appends every registered system missing from stored.
func mergePresetAgents(stored []Agent) []Agent {
	seen := make(map[string]bool, len(stored))
	out := make([]Agent, 0, len(stored))
	for _, a := range stored {
		if a.ID == "" || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		if a.EnabledSkillIDs == nil {
			a.EnabledSkillIDs = NewIDSet()
		}
		out = append(out, a)
	}
	for _, a := range DefaultAgents() {
		if !seen[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

// relink rebuilds every skill's AssignedAgentIDs from the agents' enabled
// sets, dropping references to skills that no longer exist.
func (m *Manager) relink() {
	known := make(map[string]*InstalledSkill, len(m.skills))
	for i := range m.skills {
		m.skills[i].AssignedAgentIDs = NewIDSet()
		known[m.skills[i].ID.String()] = &m.skills[i]
	}
	for i := range m.agents {
		for id := range m.agents[i].EnabledSkillIDs {
			s, ok := known[id]
			if !ok {
				delete(m.agents[i].EnabledSkillIDs, id)
				continue
			}
			s.AssignedAgentIDs[m.agents[i].ID] = struct{}{}
		}
	}
}

// Backup is the export document.
type Backup struct {
	Repositories    []Repository     `json:"repositories"`
	InstalledSkills []InstalledSkill `json:"installedSkills"`
	Agents          []Agent          `json:"agents"`
	ExportDate      time.Time        `json:"exportDate"`
}

// ExportBackup writes repositories, installed skills and agents as JSON.
func (m *Manager) ExportBackup(w io.Writer) error {
	b := Backup{
		Repositories:    m.Repositories(),
		InstalledSkills: m.InstalledSkills(),
		Agents:          m.Agents(),
		ExportDate:      time.Now().UTC(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// ImportBackup replaces repositories, installed skills and agents with the
// contents of a backup and persists them. Preferences are kept.
func (m *Manager) ImportBackup(ctx context.Context, r io.Reader) error {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return fmt.Errorf("%w: backup: %v", ErrInvalidInput, err)
	}
	m.replaceState(b.Repositories, b.InstalledSkills, b.Agents)
	logger.G(ctx).WithField("repositories", len(m.repos)).WithField("skills", len(m.skills)).
		Info("backup imported")
	return m.save(ctx)
}
