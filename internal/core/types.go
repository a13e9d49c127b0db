// Package core is the skillrow engine: repository sync, manifest scanning,
// skill installation and agent projection. It has zero UI dependencies and
// is independently testable.
package core

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/barysiuk/skillrow/internal/core/system"
)

// IDSet is a set of ids. It encodes as a sorted JSON array.
type IDSet map[string]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s IDSet) clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}

// Repository is a git-backed source of skills.
type Repository struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	URL       string           `json:"url"`
	Branch    string           `json:"branch"`
	SkillPath string           `json:"skillPath"`
	LocalPath string           `json:"localPath,omitempty"` // empty until the first successful sync
	LastSync  *time.Time       `json:"lastSync,omitempty"`
	Skills    []RemoteManifest `json:"skills"`
}

// ManifestKind tells directory skills from loose markdown files.
type ManifestKind string

const (
	KindDirectory ManifestKind = "directory"
	KindFile      ManifestKind = "file"
)

// RemoteManifest is a skill discovered in a synced repository.
// Identity is (RepositoryID, ID).
type RemoteManifest struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Author       string       `json:"author"`
	Version      string       `json:"version"`
	License      string       `json:"license"`
	Platforms    []string     `json:"platforms"`
	Command      string       `json:"command"`
	RepositoryID uuid.UUID    `json:"repositoryId"`
	RelativePath string       `json:"relativePath"` // slash-separated, relative to the repository skill root
	Kind         ManifestKind `json:"kind"`
}

// InstalledSkill is a skill copied into the local installation root.
type InstalledSkill struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Author             string    `json:"author"`
	Version            string    `json:"version"`
	License            string    `json:"license"`
	Platforms          []string  `json:"platforms"`
	Command            string    `json:"command"`
	RepositoryID       uuid.UUID `json:"repositoryId"`   // uuid.Nil for imports
	RepositoryName     string    `json:"repositoryName"` // captured at install time
	OriginalRemoteID   string    `json:"originalRemoteId"`
	SourceRelativePath string    `json:"sourceRelativePath,omitempty"`
	InstallDate        time.Time `json:"installDate"`
	LocalPath          string    `json:"localPath"`
	AssignedAgentIDs   IDSet     `json:"assignedAgentIds"`
}

// Imported reports whether the skill came from a directory or archive import.
func (s InstalledSkill) Imported() bool { return s.RepositoryID == uuid.Nil }

// Agent is an AI tool skills can be enabled for.
type Agent struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	ConfigPath      string        `json:"configPath"`
	ConfigFormat    system.Format `json:"configFormat"`
	Detected        bool          `json:"detected"`
	EnabledSkillIDs IDSet         `json:"enabledSkillIds"`
}

// Preferences are the persisted UI scalars.
type Preferences struct {
	ColorScheme string `json:"colorScheme"`
	Language    string `json:"language"`
}

// RepositoryInput holds the user-editable repository fields.
type RepositoryInput struct {
	Name      string
	URL       string
	Branch    string
	SkillPath string
}

const (
	defaultBranch    = "main"
	defaultSkillPath = "/"
	importedRepoName = "imported"
)

// DefaultRepositories are seeded on first load.
func DefaultRepositories() []Repository {
	seeds := []struct{ name, url string }{
		{"anthropics-skills", "https://github.com/anthropics/skills"},
		{"openai-skills", "https://github.com/openai/skills"},
		{"Ai-Agent-Skills", "https://github.com/skillcreatorai/Ai-Agent-Skills"},
		{"superpowers", "https://github.com/obra/superpowers"},
		{"awesome-claude-skills", "https://github.com/ComposioHQ/awesome-claude-skills"},
	}
	repos := make([]Repository, 0, len(seeds))
	for _, s := range seeds {
		repos = append(repos, Repository{
			ID:        uuid.New(),
			Name:      s.name,
			URL:       s.url,
			Branch:    defaultBranch,
			SkillPath: defaultSkillPath,
			Skills:    []RemoteManifest{},
		})
	}
	return repos
}

// DefaultAgents returns one undetected agent per registered system.
func DefaultAgents() []Agent {
	all := system.All()
	agents := make([]Agent, 0, len(all))
	for _, s := range all {
		agents = append(agents, Agent{
			ID:              s.ID(),
			Name:            s.DisplayName(),
			ConfigPath:      s.ConfigPath(),
			ConfigFormat:    s.Format(),
			EnabledSkillIDs: NewIDSet(),
		})
	}
	return agents
}
