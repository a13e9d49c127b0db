// Package system defines the agent descriptors skillrow projects skills into.
//
// A System represents one AI coding tool (Claude Code, Codex, Cursor, ...).
// Each system knows its config path, how to detect itself on the host and how
// to write an enabled-skill set into its native on-disk representation: a
// directory of symlinks or a JSON/TOML/YAML config file. Systems are plain Go
// structs registered at init time.
package system

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Format is the config file format of an agent.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format tag.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatTOML, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown config format %q", s)
	}
}

// Strategy is the projection family used by a system.
type Strategy string

const (
	// StrategyDirectory mirrors enabled skills as symlinks in a directory.
	StrategyDirectory Strategy = "directory"
	// StrategyFile writes enabled skills into a config file.
	StrategyFile Strategy = "file"
)

// Skill is the projection view of an installed skill.
type Skill struct {
	ID          string
	Name        string
	RepoName    string // origin repository name, used for link names
	Description string
	Command     string
	Author      string
	Version     string
	Path        string // absolute install path
}

// LinkName is the skill's entry in a symlink farm. It follows the install
// directory name, which is unique per origin repository.
func (s Skill) LinkName() string {
	if s.Path == "" {
		return LinkName(s.RepoName, s.Name)
	}
	return LinkName(s.RepoName, filepath.Base(s.Path))
}

// ProjectOptions carries engine context into a projection.
type ProjectOptions struct {
	// InstallRoot is the directory all installed skills live under. Config
	// writers use it to tell entries they manage from user-authored ones.
	InstallRoot string
}

// System defines how an AI coding tool consumes skills.
type System interface {
	ID() string          // machine name: "claude-code", "codex"
	DisplayName() string // human name: "Claude Code"
	ConfigPath() string  // expanded config file path
	Format() Format
	Strategy() Strategy

	// Target is the artifact Project writes: a directory for the directory
	// strategy, the config file otherwise.
	Target() string

	// Detect reports whether the tool is present on this host.
	Detect(ctx context.Context) bool

	// Project reconciles the on-disk artifact with skills, which is the
	// complete enabled set for this agent.
	Project(ctx context.Context, skills []Skill, opts ProjectOptions) error

	// EnsureConfig creates an initial artifact if none exists and returns
	// its path.
	EnsureConfig() (string, error)
}

// --- Registry ---

var systems []System

// Register adds a system to the global registry.
func Register(s System) { systems = append(systems, s) }

// All returns all registered systems sorted by id.
func All() []System {
	out := make([]System, len(systems))
	copy(out, systems)
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ByID returns the system with the given id, if registered.
func ByID(id string) (System, bool) {
	for _, s := range systems {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

// IDs returns the ids of the given systems.
func IDs(systems []System) []string {
	ids := make([]string, len(systems))
	for i, s := range systems {
		ids[i] = s.ID()
	}
	return ids
}

// Resolve returns the registered system for id, or a generic writer for the
// given config path and format when the id is unknown.
func Resolve(id, displayName, configPath string, format Format) System {
	if s, ok := ByID(id); ok {
		return s
	}
	return NewGeneric(id, displayName, configPath, format)
}

// NewGeneric builds a file-strategy system for an agent with no preset. JSON
// configs get a merged `skills` array; TOML and YAML are emitted from scratch.
func NewGeneric(id, displayName, configPath string, format Format) System {
	base := BaseSystem{
		id:          id,
		displayName: displayName,
		configPath:  configPath,
		format:      format,
	}
	switch format {
	case FormatTOML:
		return &TOMLSystem{BaseSystem: base, header: genericHeader(displayName)}
	case FormatYAML:
		return &YAMLSystem{BaseSystem: base, header: genericHeader(displayName)}
	default:
		base.format = FormatJSON
		return &JSONSkillsSystem{BaseSystem: base, fields: fieldEnabled}
	}
}

func genericHeader(name string) string {
	return fmt.Sprintf("%s skills\nGenerated by skillrow. Manual edits are overwritten.", name)
}
