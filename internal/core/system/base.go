package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// BaseSystem provides identity and detection shared by every system.
// Concrete systems embed it and add a Project implementation.
type BaseSystem struct {
	id          string
	displayName string
	configPath  string   // with ~ or $VAR
	format      Format
	executables []string // names looked up on PATH; defaults to id
	markers     []string // alternate paths that indicate an install

	// probe replaces the PATH lookup stage when set.
	probe func(ctx context.Context) bool
}

func (b *BaseSystem) ID() string          { return b.id }
func (b *BaseSystem) DisplayName() string { return b.displayName }
func (b *BaseSystem) Format() Format      { return b.format }

// ConfigPath returns the expanded config file path.
func (b *BaseSystem) ConfigPath() string { return ExpandPath(b.configPath) }

// Markers returns the expanded alternate marker paths.
func (b *BaseSystem) Markers() []string {
	result := make([]string, len(b.markers))
	for i, p := range b.markers {
		result[i] = ExpandPath(p)
	}
	return result
}

// --- Shared Helpers ---

var sanitizeRegexp = regexp.MustCompile(`[^a-z0-9-]`)

// SanitizeName normalizes a name for use as a path segment.
func SanitizeName(name string) string {
	name = strings.ToLower(name)
	name = sanitizeRegexp.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if len(name) > 255 {
		name = name[:255]
	}
	if name == "" {
		name = "unnamed-skill"
	}
	return name
}

// LinkName is the symlink-farm entry name for a skill.
func LinkName(repoName, skillName string) string {
	return SanitizeName(repoName) + "-" + SanitizeName(skillName)
}

// ExpandPath expands ~ to the home directory and $VAR / $XDG_CONFIG to env values.
func ExpandPath(p string) string {
	if strings.Contains(p, "$XDG_CONFIG") {
		xdgConfig := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfig == "" {
			home, _ := os.UserHomeDir()
			xdgConfig = filepath.Join(home, ".config")
		}
		p = strings.ReplaceAll(p, "$XDG_CONFIG", xdgConfig)
	}

	if strings.Contains(p, "$") {
		p = os.Expand(p, os.Getenv)
	}

	if strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		p = filepath.Join(home, p[2:])
	} else if p == "~" {
		home, _ := os.UserHomeDir()
		p = home
	}

	return p
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// readConfigFile reads a config file. Returns empty string if not found.
func readConfigFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// writeConfigFile writes content atomically, creating parent directories.
func writeConfigFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ensureFile writes initial content to path unless something is already there.
func ensureFile(path string, initial []byte) (string, error) {
	if pathExists(path) {
		return path, nil
	}
	if err := writeConfigFile(path, initial); err != nil {
		return "", err
	}
	return path, nil
}
