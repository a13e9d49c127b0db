package core

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func scan(t *testing.T, files map[string]string) map[string]RemoteManifest {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files)
	out := make(map[string]RemoteManifest)
	for _, m := range ScanManifests(context.Background(), root, uuid.Nil) {
		out[m.ID] = m
	}
	return out
}

func TestScanManifests_SkipsToolingDirs(t *testing.T) {
	got := scan(t, map[string]string{
		"node_modules/pkg/SKILL.md": "# no\n",
		"vendor/lib/SKILL.md":       "# no\n",
		"tool.egg-info/x/SKILL.md":  "# no\n",
		".git/hooks/SKILL.md":       "# no\n",
		"skills/real/SKILL.md":      "# yes\n",
		"a/b/c/too-deep/SKILL.md":   "# no\n",
		"docs/CHANGELOG.md":         "# no\n",
		"docs/Code_Of_Conduct.md":   "# no\n",
		"docs/guide.md":             "# Guide\n",
		"README.md":                 "# Root readme\n",
	})

	var ids []string
	for id := range got {
		ids = append(ids, id)
	}
	if len(got) != 2 {
		t.Fatalf("found %v, want real and guide", ids)
	}
	if _, ok := got["real"]; !ok {
		t.Error("skills/real not found")
	}
	if g, ok := got["guide"]; !ok || g.Kind != KindFile || g.RelativePath != "docs/guide.md" {
		t.Errorf("docs/guide.md manifest = %+v", g)
	}
}

func TestScanManifests_RootSkill(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"SKILL.md":        "---\nname: solo\n---\n",
		"nested/SKILL.md": "# never reached\n",
	})
	ms := ScanManifests(context.Background(), root, uuid.Nil)
	if len(ms) != 1 {
		t.Fatalf("expected 1 manifest, got %d", len(ms))
	}
	if ms[0].Name != "solo" || ms[0].RelativePath != "." {
		t.Errorf("root manifest = %+v", ms[0])
	}
}

func TestScanManifests_ReadmeBelowRoot(t *testing.T) {
	got := scan(t, map[string]string{
		"helper/README.md": "Plain first line\n\nMore text.\n",
		"other/README.md":  "# Other Helper\n",
	})
	if got["helper"].Description != "Plain first line" {
		t.Errorf("helper description = %q", got["helper"].Description)
	}
	if got["other"].Description != "Other Helper" {
		t.Errorf("other description = %q", got["other"].Description)
	}
}

func TestScanManifests_DuplicateIDsStayDistinct(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"one/deploy/SKILL.md": "# Deploy one\n",
		"two/deploy/SKILL.md": "# Deploy two\n",
	})
	ms := ScanManifests(context.Background(), root, uuid.Nil)
	if len(ms) != 2 {
		t.Fatalf("expected 2 manifests, got %d", len(ms))
	}
	if ms[0].ID == ms[1].ID {
		t.Errorf("duplicate ids: %q", ms[0].ID)
	}
}

func TestScanManifests_MissingRoot(t *testing.T) {
	ms := ScanManifests(context.Background(), filepath.Join(t.TempDir(), "nope"), uuid.Nil)
	if ms == nil || len(ms) != 0 {
		t.Errorf("ScanManifests() = %#v, want empty non-nil", ms)
	}
}

func TestManifestStrategies(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  RemoteManifest
	}{
		{
			name: "skill.json wins over SKILL.md",
			files: map[string]string{
				"pick/skill.json": `{"id": "picked", "name": "Picked", "description": "From JSON", "platforms": "Cursor", "license": "MIT"}`,
				"pick/SKILL.md":   "---\nname: doc\ndescription: From doc\n---\n",
			},
			want: RemoteManifest{
				ID: "picked", Name: "Picked", Description: "From JSON", Author: "Unknown", Version: "1.0.0",
				License: "MIT", Platforms: []string{"Cursor"}, Command: "/Picked", RelativePath: "pick", Kind: KindDirectory,
			},
		},
		{
			name: "corrupt skill.json falls through to SKILL.md",
			files: map[string]string{
				"pick/skill.json": `{"id": `,
				"pick/SKILL.md":   "---\nname: doc\ndescription: From doc\nmetadata:\n  author: Jo\n  version: 3.1.0\n---\n",
			},
			want: RemoteManifest{
				ID: "pick", Name: "doc", Description: "From doc", Author: "Jo", Version: "3.1.0",
				License: "Unknown", Platforms: []string{"Claude Code"}, Command: "/doc", RelativePath: "pick", Kind: KindDirectory,
			},
		},
		{
			name: "package.json alongside SKILL.md",
			files: map[string]string{
				"pick/package.json": `{"name": "pkg-skill", "version": "0.2.0", "author": {"name": "Ann", "email": "a@b.c"}}`,
				"pick/SKILL.md":     "# Heading\n",
			},
			want: RemoteManifest{
				ID: "pick", Name: "pkg-skill", Description: "No description", Author: "Ann", Version: "0.2.0",
				License: "Unknown", Platforms: []string{"Claude Code"}, Command: "/pkg-skill", RelativePath: "pick", Kind: KindDirectory,
			},
		},
		{
			name: "package.json without a skill doc is not a skill",
			files: map[string]string{
				"pick/package.json": `{"name": "tooling"}`,
			},
		},
		{
			name: "SKILL.md without frontmatter uses the first heading",
			files: map[string]string{
				"pick/SKILL.md": "Intro text\n\n## Does things\n",
			},
			want: RemoteManifest{
				ID: "pick", Name: "pick", Description: "Does things", Author: "Unknown", Version: "1.0.0",
				License: "Unknown", Platforms: []string{"Claude Code"}, Command: "/pick", RelativePath: "pick", Kind: KindDirectory,
			},
		},
		{
			name: "loose file without frontmatter or heading uses the first line",
			files: map[string]string{
				"cat/web-search.md": "Search the web for answers.\nMore detail follows.\n",
			},
			want: RemoteManifest{
				ID: "web-search", Name: "web-search", Description: "Search the web for answers.", Author: "Unknown", Version: "1.0.0",
				License: "Unknown", Platforms: []string{"Claude Code"}, Command: "/web-search", RelativePath: "cat/web-search.md", Kind: KindFile,
			},
		},
		{
			name: "SKILL.md skips blank lines before the first line",
			files: map[string]string{
				"tool/SKILL.md": "\nRuns the tool quickly.\n",
			},
			want: RemoteManifest{
				ID: "tool", Name: "tool", Description: "Runs the tool quickly.", Author: "Unknown", Version: "1.0.0",
				License: "Unknown", Platforms: []string{"Claude Code"}, Command: "/tool", RelativePath: "tool", Kind: KindDirectory,
			},
		},
		{
			name: "frontmatter without description uses the body",
			files: map[string]string{
				"pick/SKILL.md": "---\nname: doc\n---\n\nExplains the body.\n",
			},
			want: RemoteManifest{
				ID: "pick", Name: "doc", Description: "Explains the body.", Author: "Unknown", Version: "1.0.0",
				License: "Unknown", Platforms: []string{"Claude Code"}, Command: "/doc", RelativePath: "pick", Kind: KindDirectory,
			},
		},
		{
			name: "empty SKILL.md falls back to the name",
			files: map[string]string{
				"pick/SKILL.md": "",
			},
			want: RemoteManifest{
				ID: "pick", Name: "pick", Description: "Skill: pick", Author: "Unknown", Version: "1.0.0",
				License: "Unknown", Platforms: []string{"Claude Code"}, Command: "/pick", RelativePath: "pick", Kind: KindDirectory,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scan(t, tt.files)
			if tt.want.ID == "" {
				if len(got) != 0 {
					t.Errorf("expected no manifests, got %v", got)
				}
				return
			}
			m, ok := got[tt.want.ID]
			if !ok {
				t.Fatalf("manifest %q not found in %v", tt.want.ID, got)
			}
			if !reflect.DeepEqual(m, tt.want) {
				t.Errorf("manifest =\n%+v\nwant\n%+v", m, tt.want)
			}
		})
	}
}

func TestDecodeFields_WeakTypes(t *testing.T) {
	f, err := decodeFields(map[string]any{
		"name":      "n",
		"version":   1.5,
		"platforms": []any{"Claude Code", "Cursor"},
		"author":    map[string]any{"name": "Ann"},
	})
	if err != nil {
		t.Fatalf("decodeFields() error: %v", err)
	}
	if f.Version != "1.5" || f.Author != "Ann" || len(f.Platforms) != 2 {
		t.Errorf("decodeFields() = %+v", f)
	}
}
