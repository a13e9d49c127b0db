package system

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/barysiuk/skillrow/internal/logger"
)

// TOML and YAML configs are never read back. Each projection overwrites the
// whole file from a template, so hand edits to these files do not survive.

type textSkill struct {
	Name        string `toml:"name" yaml:"name"`
	Path        string `toml:"path" yaml:"path"`
	Command     string `toml:"command" yaml:"command"`
	Description string `toml:"description" yaml:"description"`
	Enabled     bool   `toml:"enabled" yaml:"enabled"`
}

type textDoc struct {
	Skills []textSkill `toml:"skills" yaml:"skills"`
}

func newTextDoc(skills []Skill) textDoc {
	doc := textDoc{Skills: make([]textSkill, 0, len(skills))}
	for _, s := range sortedSkills(skills) {
		doc.Skills = append(doc.Skills, textSkill{
			Name:        s.Name,
			Path:        s.Path,
			Command:     s.Command,
			Description: s.Description,
			Enabled:     true,
		})
	}
	return doc
}

func commentHeader(header string) []byte {
	var buf bytes.Buffer
	for _, line := range strings.Split(header, "\n") {
		buf.WriteString("# ")
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// TOMLSystem emits `[[skills]]` tables.
type TOMLSystem struct {
	BaseSystem
	header string
}

func (t *TOMLSystem) Strategy() Strategy { return StrategyFile }
func (t *TOMLSystem) Target() string     { return t.ConfigPath() }

func (t *TOMLSystem) render(skills []Skill) ([]byte, error) {
	body, err := toml.Marshal(newTextDoc(skills))
	if err != nil {
		return nil, fmt.Errorf("encoding toml: %w", err)
	}
	return append(commentHeader(t.header), body...), nil
}

// Project implements System.
func (t *TOMLSystem) Project(ctx context.Context, skills []Skill, _ ProjectOptions) error {
	out, err := t.render(skills)
	if err != nil {
		return err
	}
	logger.G(ctx).WithField("agent", t.id).WithField("skills", len(skills)).Debug("writing toml config")
	return writeConfigFile(t.ConfigPath(), out)
}

// EnsureConfig implements System.
func (t *TOMLSystem) EnsureConfig() (string, error) {
	out, err := t.render(nil)
	if err != nil {
		return "", err
	}
	return ensureFile(t.ConfigPath(), out)
}

// YAMLSystem emits a `skills:` list.
type YAMLSystem struct {
	BaseSystem
	header string
}

func (y *YAMLSystem) Strategy() Strategy { return StrategyFile }
func (y *YAMLSystem) Target() string     { return y.ConfigPath() }

func (y *YAMLSystem) render(skills []Skill) ([]byte, error) {
	var body bytes.Buffer
	enc := yaml.NewEncoder(&body)
	enc.SetIndent(2)
	if err := enc.Encode(newTextDoc(skills)); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	return append(commentHeader(y.header), body.Bytes()...), nil
}

// Project implements System.
func (y *YAMLSystem) Project(ctx context.Context, skills []Skill, _ ProjectOptions) error {
	out, err := y.render(skills)
	if err != nil {
		return err
	}
	logger.G(ctx).WithField("agent", y.id).WithField("skills", len(skills)).Debug("writing yaml config")
	return writeConfigFile(y.ConfigPath(), out)
}

// EnsureConfig implements System.
func (y *YAMLSystem) EnsureConfig() (string, error) {
	out, err := y.render(nil)
	if err != nil {
		return "", err
	}
	return ensureFile(y.ConfigPath(), out)
}
