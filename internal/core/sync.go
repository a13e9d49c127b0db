package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/barysiuk/skillrow/internal/logger"
)

// SyncState is the per-repository sync status the UI polls.
type SyncState struct {
	InFlight  bool
	LastError error
}

// SyncJob is the off-writer half of a sync: everything it needs is copied
// out of the manager, so Run touches no engine state.
type SyncJob struct {
	RepoID    uuid.UUID
	URL       string
	Branch    string
	SkillPath string
	Dir       string // working copy

	vcs VCS
}

// SyncOutcome is what a SyncJob hands back to the writer.
type SyncOutcome struct {
	RepoID    uuid.UUID
	LocalPath string
	Manifests []RemoteManifest
	Err       error
}

// Run clones or pulls the working copy and scans it. It is safe to call
// from any goroutine.
func (j SyncJob) Run(ctx context.Context) SyncOutcome {
	out := SyncOutcome{RepoID: j.RepoID}
	ctx = logger.WithFields(ctx, logrus.Fields{"repo": j.URL})
	log := logger.G(ctx)

	if dirExists(j.Dir) && !dirExists(filepath.Join(j.Dir, ".git")) {
		log.WithField("dir", j.Dir).Warn("working copy has no git metadata, recloning")
		if err := os.RemoveAll(j.Dir); err != nil {
			out.Err = fmt.Errorf("%w: removing %s: %v", ErrFilesystem, j.Dir, err)
			return out
		}
	}

	if dirExists(j.Dir) {
		if err := j.vcs.Pull(ctx, j.Dir, j.Branch); err != nil {
			out.Err = err
			return out
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(j.Dir), 0o755); err != nil {
			out.Err = fmt.Errorf("%w: %v", ErrFilesystem, err)
			return out
		}
		if err := j.vcs.Clone(ctx, j.URL, j.Branch, j.Dir); err != nil {
			out.Err = err
			return out
		}
	}

	root := skillRoot(j.Dir, j.SkillPath)
	if !dirExists(root) {
		log.WithField("skillPath", j.SkillPath).Warn("skill path not found in repository")
	}
	out.LocalPath = j.Dir
	out.Manifests = ScanManifests(ctx, root, j.RepoID)
	log.WithField("skills", len(out.Manifests)).Debug("repository scanned")
	return out
}

// skillRoot joins a repository-relative skill path onto the working copy,
// never escaping it.
func skillRoot(dir, skillPath string) string {
	return filepath.Join(dir, filepath.Clean("/"+filepath.FromSlash(skillPath)))
}

// BeginSync marks id in flight, clears its last error and returns the job
// to run off the writer.
func (m *Manager) BeginSync(id uuid.UUID) (SyncJob, error) {
	repo := m.findRepo(id)
	if repo == nil {
		return SyncJob{}, fmt.Errorf("%w: %s", ErrRepositoryNotFound, id)
	}
	state := m.syncState(id)
	if state.InFlight {
		return SyncJob{}, fmt.Errorf("%w: %s", ErrSyncInProgress, repo.Name)
	}
	state.InFlight = true
	state.LastError = nil

	return SyncJob{
		RepoID:    repo.ID,
		URL:       repo.URL,
		Branch:    repo.Branch,
		SkillPath: repo.SkillPath,
		Dir:       filepath.Join(m.reposDir(), RepoDirKey(repo.URL)),
		vcs:       m.vcs,
	}, nil
}

// ApplySync records an outcome. On success the manifest list, local path
// and last-sync time are replaced together. On failure the repository is
// left untouched and the error is kept for SyncState.
func (m *Manager) ApplySync(ctx context.Context, out SyncOutcome) error {
	state := m.syncState(out.RepoID)
	state.InFlight = false

	repo := m.findRepo(out.RepoID)
	if repo == nil {
		// Deleted while the job ran.
		delete(m.syncStates, out.RepoID)
		return fmt.Errorf("%w: %s", ErrRepositoryNotFound, out.RepoID)
	}

	if out.Err != nil {
		state.LastError = out.Err
		logger.G(ctx).WithField("repo", repo.Name).WithError(out.Err).Warn("sync failed")
		return out.Err
	}

	now := time.Now().UTC()
	repo.Skills = out.Manifests
	repo.LocalPath = out.LocalPath
	repo.LastSync = &now
	return m.save(ctx)
}

// SyncOne syncs a single repository.
func (m *Manager) SyncOne(ctx context.Context, id uuid.UUID) error {
	job, err := m.BeginSync(id)
	if err != nil {
		return err
	}
	return m.ApplySync(ctx, job.Run(ctx))
}

// SyncSummary aggregates a SyncAll run.
type SyncSummary struct {
	Succeeded int
	Failed    int
	Errors    map[uuid.UUID]error
}

// Err combines every failure into one error, or nil.
func (s SyncSummary) Err() error {
	if len(s.Errors) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(s.Errors))
	for id := range s.Errors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var result *multierror.Error
	for _, id := range ids {
		result = multierror.Append(result, s.Errors[id])
	}
	return result
}

// SyncAll syncs every repository concurrently. Jobs run in parallel and are
// joined before any outcome is applied; one repository failing never
// affects another.
func (m *Manager) SyncAll(ctx context.Context) SyncSummary {
	summary := SyncSummary{Errors: make(map[uuid.UUID]error)}

	var jobs []SyncJob
	for _, r := range m.repos {
		job, err := m.BeginSync(r.ID)
		if err != nil {
			summary.Failed++
			summary.Errors[r.ID] = err
			continue
		}
		jobs = append(jobs, job)
	}

	outcomes := make([]SyncOutcome, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job SyncJob) {
			defer wg.Done()
			outcomes[i] = job.Run(ctx)
		}(i, job)
	}
	wg.Wait()

	for _, out := range outcomes {
		if err := m.ApplySync(ctx, out); err != nil {
			summary.Failed++
			summary.Errors[out.RepoID] = err
			continue
		}
		summary.Succeeded++
	}

	logger.G(ctx).WithFields(logrus.Fields{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("sync finished")
	return summary
}

// SyncState returns the sync status of a repository.
func (m *Manager) SyncState(id uuid.UUID) SyncState {
	if s, ok := m.syncStates[id]; ok {
		return *s
	}
	return SyncState{}
}

func (m *Manager) syncState(id uuid.UUID) *SyncState {
	s, ok := m.syncStates[id]
	if !ok {
		s = &SyncState{}
		m.syncStates[id] = s
	}
	return s
}
