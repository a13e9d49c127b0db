package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/barysiuk/skillrow/internal/logger"
)

// UninstallOptions configures an uninstall.
type UninstallOptions struct {
	// PurgeSource also deletes the skill's source inside the origin clone.
	// Only the exact recorded relative path is removed, never the clone root.
	PurgeSource bool
}

// UninstallResult describes what an uninstall touched.
type UninstallResult struct {
	Name           string
	RemovedPath    string
	PurgedSource   string   // empty unless the origin source was deleted
	AffectedAgents []string // agents the skill was enabled for
}

// Uninstall removes an installed skill. The install tree goes first; if that
// fails nothing else changes. The skill is then dropped from every agent,
// affected detected agents are re-projected and the record is removed.
func (m *Manager) Uninstall(ctx context.Context, skillID uuid.UUID, opts UninstallOptions) (UninstallResult, error) {
	skill := m.findSkill(skillID)
	if skill == nil {
		return UninstallResult{}, fmt.Errorf("%w: %s", ErrSkillNotFound, skillID)
	}
	log := logger.G(ctx).WithField("skill", skill.Name)
	result := UninstallResult{Name: skill.Name, RemovedPath: skill.LocalPath}

	if within(m.InstallRoot(), skill.LocalPath) {
		if err := os.RemoveAll(skill.LocalPath); err != nil {
			return UninstallResult{}, fmt.Errorf("%w: removing %s: %v", ErrFilesystem, skill.LocalPath, err)
		}
		cleanupEmptyDir(filepath.Dir(skill.LocalPath))
	} else if skill.LocalPath != "" {
		log.WithField("path", skill.LocalPath).Warn("install path outside install root, leaving files in place")
		result.RemovedPath = ""
	}

	if opts.PurgeSource {
		result.PurgedSource = m.purgeSource(ctx, skill)
	}

	result.AffectedAgents = m.forget(ctx, map[string]bool{skillID.String(): true})
	log.WithField("agents", len(result.AffectedAgents)).Info("skill uninstalled")
	return result, m.save(ctx)
}

// purgeSource deletes the skill's recorded source inside its origin clone.
// Failures are logged.
func (m *Manager) purgeSource(ctx context.Context, skill *InstalledSkill) string {
	if skill.Imported() || skill.SourceRelativePath == "" || skill.SourceRelativePath == "." {
		return ""
	}
	repo := m.findRepo(skill.RepositoryID)
	if repo == nil || repo.LocalPath == "" {
		return ""
	}

	src := filepath.Join(skillRoot(repo.LocalPath, repo.SkillPath), filepath.FromSlash(skill.SourceRelativePath))
	if !within(repo.LocalPath, src) || !pathExists(src) {
		return ""
	}
	if err := os.RemoveAll(src); err != nil {
		logger.G(ctx).WithField("path", src).WithError(err).Warn("failed to remove skill source")
		return ""
	}
	return src
}

// GarbageCollect purges installed skills whose directory no longer exists
// and returns how many were purged.
func (m *Manager) GarbageCollect(ctx context.Context) (int, error) {
	missing := make(map[string]bool)
	for _, s := range m.skills {
		if !pathExists(s.LocalPath) {
			missing[s.ID.String()] = true
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	m.forget(ctx, missing)
	logger.G(ctx).WithField("count", len(missing)).Info("purged missing skills")
	return len(missing), m.save(ctx)
}

// forget drops the given skill ids from every agent and from the installed
// list, then re-projects each detected agent that lost a skill. It returns
// the ids of the agents that had any of them enabled.
func (m *Manager) forget(ctx context.Context, ids map[string]bool) []string {
	var affected []int
	for i := range m.agents {
		hit := false
		for id := range ids {
			if m.agents[i].EnabledSkillIDs.Has(id) {
				delete(m.agents[i].EnabledSkillIDs, id)
				hit = true
			}
		}
		if hit {
			affected = append(affected, i)
		}
	}

	kept := m.skills[:0]
	for _, s := range m.skills {
		if !ids[s.ID.String()] {
			kept = append(kept, s)
		}
	}
	m.skills = kept

	agentIDs := make([]string, 0, len(affected))
	for _, i := range affected {
		agentIDs = append(agentIDs, m.agents[i].ID)
		if m.agents[i].Detected {
			m.project(ctx, &m.agents[i])
		}
	}
	return agentIDs
}
