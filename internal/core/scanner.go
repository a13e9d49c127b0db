package core

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/barysiuk/skillrow/internal/logger"
)

// maxScanDepth bounds recursion below the scan root.
const maxScanDepth = 2

// skipPatterns name directories that never hold skills.
var skipPatterns = []string{
	".git", ".hg", ".svn",
	"node_modules", "bower_components", "vendor",
	"__pycache__", ".venv", "venv", "*.egg-info",
}

// docNames are markdown files that are never loose skills.
var docNames = map[string]bool{
	"readme.md":          true,
	"license.md":         true,
	"contributing.md":    true,
	"changelog.md":       true,
	"code_of_conduct.md": true,
}

func skipDir(name string) bool {
	for _, p := range skipPatterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

type scanItem struct {
	dir   string
	rel   string // slash-separated, "" for the root
	depth int
}

// ScanManifests walks root breadth-first and returns every skill found.
//
// A directory holding skill.json or SKILL.md (or, below the root, README.md)
// is a skill and is not descended into. Below the root, loose markdown files
// other than conventional documentation each become a single-file skill.
// Output order follows directory listing order and is not stable.
func ScanManifests(ctx context.Context, root string, repoID uuid.UUID) []RemoteManifest {
	manifests := []RemoteManifest{}
	seen := make(map[string]bool)
	add := func(m RemoteManifest) {
		// Skills with the same name in two categories keep distinct ids.
		if seen[m.ID] {
			m.ID = m.RelativePath
		}
		seen[m.ID] = true
		manifests = append(manifests, m)
	}

	queue := []scanItem{{dir: root}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(item.dir)
		if err != nil {
			logger.G(ctx).WithField("dir", item.dir).WithError(err).Debug("skipping unreadable directory")
			continue
		}

		files := make(map[string]string)
		for _, e := range entries {
			if !e.IsDir() {
				files[strings.ToLower(e.Name())] = e.Name()
			}
		}

		if isSkillDir(files, item.depth) {
			c := &candidate{
				dir:     item.dir,
				entries: files,
				name:    filepath.Base(item.dir),
				relPath: item.rel,
			}
			if item.depth == 0 {
				c.relPath = "."
			}
			add(parseCandidate(ctx, c, repoID))
			continue
		}

		for _, e := range entries {
			name := e.Name()
			rel := path.Join(item.rel, name)

			if e.IsDir() {
				if skipDir(name) || item.depth >= maxScanDepth {
					continue
				}
				queue = append(queue, scanItem{dir: filepath.Join(item.dir, name), rel: rel, depth: item.depth + 1})
				continue
			}

			if item.depth == 0 || !isLooseSkill(name) {
				continue
			}
			add(parseCandidate(ctx, &candidate{
				dir:     item.dir,
				file:    filepath.Join(item.dir, name),
				name:    strings.TrimSuffix(name, filepath.Ext(name)),
				relPath: rel,
			}, repoID))
		}
	}
	return manifests
}

func isSkillDir(files map[string]string, depth int) bool {
	if _, ok := files[skillJSONFile]; ok {
		return true
	}
	if _, ok := files[skillDocFile]; ok {
		return true
	}
	if depth > 0 {
		if _, ok := files[readmeFile]; ok {
			return true
		}
	}
	return false
}

func isLooseSkill(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") && !docNames[lower] && !strings.HasPrefix(name, ".")
}
