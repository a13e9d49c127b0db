package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/barysiuk/skillrow/internal/core/system"
	"github.com/barysiuk/skillrow/internal/logger"
)

const localIDPrefix = "local-"

// Install copies a synced manifest into the install root and records it.
//
// The destination is removed before copying so nothing from an earlier
// install leaks into the new one. File manifests are installed as SKILL.md
// inside their own directory.
func (m *Manager) Install(ctx context.Context, repoID uuid.UUID, manifestID string) (InstalledSkill, error) {
	if m.IsSkillInstalled(repoID, manifestID) {
		return InstalledSkill{}, fmt.Errorf("%w: %s", ErrDuplicateSkill, manifestID)
	}

	repo := m.findRepo(repoID)
	if repo == nil {
		return InstalledSkill{}, fmt.Errorf("%w: %s", ErrRepositoryNotFound, repoID)
	}
	if repo.LocalPath == "" {
		return InstalledSkill{}, fmt.Errorf("%w: %s", ErrNotSynced, repo.Name)
	}

	var manifest *RemoteManifest
	for i := range repo.Skills {
		if repo.Skills[i].ID == manifestID {
			manifest = &repo.Skills[i]
			break
		}
	}
	if manifest == nil {
		return InstalledSkill{}, fmt.Errorf("%w: %s in %s", ErrSkillNotFound, manifestID, repo.Name)
	}

	src := filepath.Join(skillRoot(repo.LocalPath, repo.SkillPath), filepath.FromSlash(manifest.RelativePath))
	if !pathExists(src) {
		return InstalledSkill{}, fmt.Errorf("%w: %s", ErrSourceMissing, src)
	}

	// Same-named skills from different folders of one repository get a
	// leaf built from their relative path.
	repoDir := filepath.Join(m.InstallRoot(), system.SanitizeName(repo.Name))
	dst := filepath.Join(repoDir, system.SanitizeName(manifest.Name))
	if m.pathInUse(dst) {
		dst = filepath.Join(repoDir, system.SanitizeName(manifest.RelativePath))
	}
	if m.pathInUse(dst) {
		return InstalledSkill{}, fmt.Errorf("%w: %s already installed at %s", ErrDuplicateSkill, manifest.Name, dst)
	}

	copyFn := func() error { return copyDirectory(src, dst) }
	if manifest.Kind == KindFile {
		copyFn = func() error { return copyFile(src, filepath.Join(dst, "SKILL.md")) }
	}
	if err := m.materialize(dst, copyFn); err != nil {
		return InstalledSkill{}, err
	}

	skill := InstalledSkill{
		ID:                 uuid.New(),
		Name:               manifest.Name,
		Description:        manifest.Description,
		Author:             manifest.Author,
		Version:            manifest.Version,
		License:            manifest.License,
		Platforms:          append([]string(nil), manifest.Platforms...),
		Command:            manifest.Command,
		RepositoryID:       repo.ID,
		RepositoryName:     repo.Name,
		OriginalRemoteID:   manifest.ID,
		SourceRelativePath: manifest.RelativePath,
		InstallDate:        time.Now().UTC(),
		LocalPath:          dst,
		AssignedAgentIDs:   NewIDSet(),
	}
	m.skills = append(m.skills, skill)

	logger.G(ctx).WithField("skill", skill.Name).WithField("repo", repo.Name).WithField("path", dst).Info("skill installed")
	return skill, m.save(ctx)
}

// ImportFromDirectory copies a local skill directory into the imported
// namespace. An empty name defaults to the directory name.
func (m *Manager) ImportFromDirectory(ctx context.Context, src, name string) (InstalledSkill, error) {
	if !dirExists(src) {
		return InstalledSkill{}, fmt.Errorf("%w: %s is not a directory", ErrSourceMissing, src)
	}
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(filepath.Clean(src))
	}
	name = strings.TrimSpace(name)

	dirName := system.SanitizeName(name)
	remoteID := localIDPrefix + dirName
	for _, s := range m.skills {
		if s.Imported() && s.OriginalRemoteID == remoteID {
			return InstalledSkill{}, fmt.Errorf("%w: %s", ErrDuplicateSkill, name)
		}
	}
	dst := filepath.Join(m.InstallRoot(), importedRepoName, dirName)
	if m.pathInUse(dst) {
		return InstalledSkill{}, fmt.Errorf("%w: %s", ErrDuplicateSkill, name)
	}

	if err := m.materialize(dst, func() error { return copyDirectory(src, dst) }); err != nil {
		return InstalledSkill{}, err
	}

	manifest := parseCandidate(ctx, dirCandidate(dst, name), uuid.Nil)
	skill := InstalledSkill{
		ID:               uuid.New(),
		Name:             name,
		Description:      manifest.Description,
		Author:           manifest.Author,
		Version:          manifest.Version,
		License:          manifest.License,
		Platforms:        manifest.Platforms,
		Command:          manifest.Command,
		RepositoryID:     uuid.Nil,
		RepositoryName:   importedRepoName,
		OriginalRemoteID: remoteID,
		InstallDate:      time.Now().UTC(),
		LocalPath:        dst,
		AssignedAgentIDs: NewIDSet(),
	}
	m.skills = append(m.skills, skill)

	logger.G(ctx).WithField("skill", name).WithField("path", dst).Info("skill imported")
	return skill, m.save(ctx)
}

// ImportFromZip extracts an archive with the unzip tool and imports it. The
// skill is named after the archive. A single top-level folder in the
// archive is unwrapped.
func (m *Manager) ImportFromZip(ctx context.Context, zipPath string) (InstalledSkill, error) {
	info, err := os.Stat(zipPath)
	if err != nil || info.IsDir() {
		return InstalledSkill{}, fmt.Errorf("%w: %s", ErrSourceMissing, zipPath)
	}

	scratchRoot := filepath.Join(m.dataDir, "tmp")
	if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
		return InstalledSkill{}, fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	scratch, err := os.MkdirTemp(scratchRoot, "import-*")
	if err != nil {
		return InstalledSkill{}, fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	if output, err := runCommand(ctx, m.unzipTimeout, nil, "unzip", "-q", "-o", zipPath, "-d", scratch); err != nil {
		return InstalledSkill{}, fmt.Errorf("extracting %s: %w: %s", filepath.Base(zipPath), err, strings.TrimSpace(output))
	}

	name := strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath))
	return m.ImportFromDirectory(ctx, archiveRoot(scratch), name)
}

// archiveRoot returns the only visible top-level directory of an extracted
// archive, or dir itself.
func archiveRoot(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return dir
	}
	var visible []os.DirEntry
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || e.Name() == "__MACOSX" {
			continue
		}
		visible = append(visible, e)
	}
	if len(visible) == 1 && visible[0].IsDir() {
		return filepath.Join(dir, visible[0].Name())
	}
	return dir
}

// materialize replaces dst with whatever copyFn writes. A failed copy leaves
// nothing behind.
func (m *Manager) materialize(dst string, copyFn func() error) error {
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("%w: clearing %s: %v", ErrFilesystem, dst, err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	if err := copyFn(); err != nil {
		_ = os.RemoveAll(dst)
		cleanupEmptyDir(filepath.Dir(dst))
		return fmt.Errorf("%w: copying to %s: %v", ErrFilesystem, dst, err)
	}
	return nil
}

func (m *Manager) pathInUse(dst string) bool {
	for _, s := range m.skills {
		if filepath.Clean(s.LocalPath) == filepath.Clean(dst) {
			return true
		}
	}
	return false
}

// dirCandidate builds a scanner candidate for an already-materialized skill
// directory.
func dirCandidate(dir, name string) *candidate {
	files := make(map[string]string)
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				files[strings.ToLower(e.Name())] = e.Name()
			}
		}
	}
	return &candidate{dir: dir, entries: files, name: name, relPath: "."}
}
