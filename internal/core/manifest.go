package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	meta "github.com/yuin/goldmark-meta"

	"github.com/barysiuk/skillrow/internal/logger"
)

// Manifest file names, matched case-insensitively.
const (
	skillJSONFile   = "skill.json"
	packageJSONFile = "package.json"
	skillDocFile    = "skill.md"
	readmeFile      = "readme.md"
)

// Manifest defaults.
const (
	defaultAuthor      = "Unknown"
	defaultVersion     = "1.0.0"
	defaultLicense     = "Unknown"
	defaultDescription = "No description"
	defaultPlatform    = "Claude Code"
)

// candidate is one directory or loose markdown file the scanner classified
// as a skill.
type candidate struct {
	dir     string            // skill directory, or the parent of a loose file
	file    string            // absolute path of a loose markdown file
	entries map[string]string // lowercased file name -> actual name (directories only)
	name    string            // directory name, or file name without .md
	relPath string            // slash-separated, relative to the scan root
}

func (c *candidate) kind() ManifestKind {
	if c.file != "" {
		return KindFile
	}
	return KindDirectory
}

func (c *candidate) path() string {
	if c.file != "" {
		return c.file
	}
	return c.dir
}

// lookup returns the absolute path of a well-known file in a directory candidate.
func (c *candidate) lookup(lowerName string) (string, bool) {
	actual, ok := c.entries[lowerName]
	if !ok {
		return "", false
	}
	return filepath.Join(c.dir, actual), true
}

// docPath is the markdown file a doc-based strategy reads: the loose file
// itself, or SKILL.md inside a directory.
func (c *candidate) docPath() (string, bool) {
	if c.file != "" {
		return c.file, true
	}
	return c.lookup(skillDocFile)
}

// manifestFields is the subset of fields a strategy can recover.
type manifestFields struct {
	ID          string   `mapstructure:"id"`
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Author      string   `mapstructure:"author"`
	Version     string   `mapstructure:"version"`
	License     string   `mapstructure:"license"`
	Platforms   []string `mapstructure:"platforms"`
	Command     string   `mapstructure:"command"`
}

// manifestStrategy is one step in the ordered parsing chain.
type manifestStrategy struct {
	name       string
	structured bool // structured files default the description to "No description"
	applies    func(c *candidate) bool
	parse      func(c *candidate) (manifestFields, error)
}

// manifestStrategies is tried in order; the first strategy that applies and
// parses wins. A parse failure falls through to the next strategy.
var manifestStrategies = []manifestStrategy{
	{
		name:       "skill.json",
		structured: true,
		applies:    func(c *candidate) bool { _, ok := c.lookup(skillJSONFile); return ok },
		parse: func(c *candidate) (manifestFields, error) {
			path, _ := c.lookup(skillJSONFile)
			return parseJSONManifest(path)
		},
	},
	{
		name:       "package.json",
		structured: true,
		applies: func(c *candidate) bool {
			_, pkg := c.lookup(packageJSONFile)
			_, doc := c.lookup(skillDocFile)
			return pkg && doc
		},
		parse: func(c *candidate) (manifestFields, error) {
			path, _ := c.lookup(packageJSONFile)
			return parseJSONManifest(path)
		},
	},
	{
		name:    "SKILL.md",
		applies: func(c *candidate) bool { _, ok := c.docPath(); return ok },
		parse: func(c *candidate) (manifestFields, error) {
			path, _ := c.docPath()
			return parseSkillDoc(path)
		},
	},
	{
		name:    "README.md",
		applies: func(c *candidate) bool { _, ok := c.lookup(readmeFile); return ok },
		parse: func(c *candidate) (manifestFields, error) {
			path, _ := c.lookup(readmeFile)
			return parseReadme(path)
		},
	},
	{
		name:    "name",
		applies: func(*candidate) bool { return true },
		parse:   func(*candidate) (manifestFields, error) { return manifestFields{}, nil },
	},
}

// parseCandidate runs the strategy chain and default-fills the result.
func parseCandidate(ctx context.Context, c *candidate, repoID uuid.UUID) RemoteManifest {
	for _, s := range manifestStrategies {
		if !s.applies(c) {
			continue
		}
		fields, err := s.parse(c)
		if err != nil {
			logger.G(ctx).WithField("path", c.path()).
				WithField("strategy", s.name).WithError(err).Debug("manifest strategy failed, falling back")
			continue
		}
		return fields.manifest(c, repoID, s.structured)
	}
	// The name strategy always applies.
	return manifestFields{}.manifest(c, repoID, false)
}

func (f manifestFields) manifest(c *candidate, repoID uuid.UUID, structured bool) RemoteManifest {
	m := RemoteManifest{
		ID:           firstNonEmpty(f.ID, c.name),
		Name:         firstNonEmpty(f.Name, c.name),
		Author:       firstNonEmpty(f.Author, defaultAuthor),
		Version:      firstNonEmpty(f.Version, defaultVersion),
		License:      firstNonEmpty(f.License, defaultLicense),
		Platforms:    f.Platforms,
		RepositoryID: repoID,
		RelativePath: c.relPath,
		Kind:         c.kind(),
	}
	if len(m.Platforms) == 0 {
		m.Platforms = []string{defaultPlatform}
	}
	m.Command = firstNonEmpty(f.Command, "/"+m.Name)

	switch {
	case f.Description != "":
		m.Description = f.Description
	case structured:
		m.Description = defaultDescription
	default:
		m.Description = "Skill: " + m.Name
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// --- Strategy implementations ---

func parseJSONManifest(path string) (manifestFields, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifestFields{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return manifestFields{}, fmt.Errorf("%w: %s: %v", ErrParseFailure, filepath.Base(path), err)
	}
	return decodeFields(raw)
}

// decodeFields maps a loosely typed document onto manifestFields. Numbers
// become strings, a single platform becomes a list, and an author object
// ({"name": ...}) collapses to its name.
func decodeFields(raw map[string]any) (manifestFields, error) {
	if author, ok := nestedString(raw["author"], "name"); ok {
		raw["author"] = author
	}

	var f manifestFields
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &f,
	})
	if err != nil {
		return f, err
	}
	if err := dec.Decode(raw); err != nil {
		return manifestFields{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	// SKILL.md frontmatter keeps author and version under metadata.
	if f.Author == "" {
		if author, ok := nestedString(raw["metadata"], "author"); ok {
			f.Author = author
		}
	}
	if f.Version == "" {
		if version, ok := nestedString(raw["metadata"], "version"); ok {
			f.Version = version
		}
	}
	return f, nil
}

// nestedString reads key from a decoded JSON or YAML object.
func nestedString(v any, key string) (string, bool) {
	var val any
	switch m := v.(type) {
	case map[string]any:
		val = m[key]
	case map[any]any:
		val = m[key]
	default:
		return "", false
	}
	if val == nil {
		return "", false
	}
	return fmt.Sprint(val), true
}

var markdown = goldmark.New(goldmark.WithExtensions(meta.Meta))

// parseSkillDoc reads YAML frontmatter and falls back to the first heading,
// then the first non-blank body line, for the description.
func parseSkillDoc(path string) (manifestFields, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return manifestFields{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	pctx := parser.NewContext()
	doc := markdown.Parser().Parse(text.NewReader(src), parser.WithContext(pctx))

	frontmatter, err := meta.TryGet(pctx)
	if err != nil {
		return manifestFields{}, fmt.Errorf("%w: frontmatter: %v", ErrParseFailure, err)
	}

	var f manifestFields
	if len(frontmatter) > 0 {
		if f, err = decodeFields(frontmatter); err != nil {
			return manifestFields{}, err
		}
	}
	if f.Description == "" {
		f.Description = firstHeading(doc, src)
	}
	if f.Description == "" {
		f.Description = firstLine(stripFrontmatter(src))
	}
	return f, nil
}

// stripFrontmatter returns the document body after a leading "---" block.
func stripFrontmatter(src []byte) []byte {
	lines := bytes.SplitAfter(src, []byte("\n"))
	if len(lines) == 0 || strings.TrimSpace(string(lines[0])) != "---" {
		return src
	}
	for i := 1; i < len(lines); i++ {
		if l := strings.TrimSpace(string(lines[i])); l == "---" || l == "..." {
			return bytes.Join(lines[i+1:], nil)
		}
	}
	return src
}

// parseReadme uses the first heading, else the first non-blank line, as the
// description.
func parseReadme(path string) (manifestFields, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return manifestFields{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	pctx := parser.NewContext()
	doc := markdown.Parser().Parse(text.NewReader(src), parser.WithContext(pctx))

	desc := firstHeading(doc, src)
	if desc == "" {
		desc = firstLine(src)
	}
	return manifestFields{Description: desc}, nil
}

func firstHeading(doc ast.Node, src []byte) string {
	var heading string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		line := h.Lines().At(0)
		heading = strings.TrimSpace(string(line.Value(src)))
		if heading == "" {
			return ast.WalkContinue, nil
		}
		return ast.WalkStop, nil
	})
	return heading
}

func firstLine(src []byte) string {
	for _, line := range bytes.Split(src, []byte("\n")) {
		s := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(string(line)), "#"))
		if s != "" {
			return s
		}
	}
	return ""
}
