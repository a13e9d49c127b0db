package system

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/barysiuk/skillrow/internal/logger"
)

// skillField selects optional fields written into a `skills` array entry.
type skillField int

const (
	fieldDescription skillField = 1 << iota
	fieldEnabled
)

type jsonSkillEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// JSONSkillsSystem merges a `skills` array into an existing JSON config.
// Every other top-level key, and any comments, survive the write.
type JSONSkillsSystem struct {
	BaseSystem
	fields skillField
}

func (j *JSONSkillsSystem) Strategy() Strategy { return StrategyFile }
func (j *JSONSkillsSystem) Target() string     { return j.ConfigPath() }

// Project implements System.
func (j *JSONSkillsSystem) Project(ctx context.Context, skills []Skill, _ ProjectOptions) error {
	entries := make([]jsonSkillEntry, 0, len(skills))
	for _, s := range sortedSkills(skills) {
		e := jsonSkillEntry{Name: s.Name, Path: s.Path, Command: s.Command}
		if j.fields&fieldDescription != 0 {
			e.Description = s.Description
		}
		if j.fields&fieldEnabled != 0 {
			enabled := true
			e.Enabled = &enabled
		}
		entries = append(entries, e)
	}
	value, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding skills: %w", err)
	}

	// An empty set leaves no key behind, so enabling then disabling a skill
	// restores a config that never had one.
	return patchJSONConfig(ctx, j.ConfigPath(), func(root *hujson.Value) error {
		if len(entries) == 0 {
			return removeMember(root, "/skills")
		}
		return setMember(root, "/skills", value)
	})
}

// EnsureConfig implements System.
func (j *JSONSkillsSystem) EnsureConfig() (string, error) {
	return ensureFile(j.ConfigPath(), []byte("{\n\t\"skills\": []\n}\n"))
}

type mcpServer struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// MCPServersSystem writes one `mcpServers` entry per enabled skill. Only
// entries whose arguments point into the install root are owned by skillrow;
// servers the user configured by hand are never touched.
type MCPServersSystem struct {
	BaseSystem
}

func (m *MCPServersSystem) Strategy() Strategy { return StrategyFile }
func (m *MCPServersSystem) Target() string     { return m.ConfigPath() }

// Project implements System.
func (m *MCPServersSystem) Project(ctx context.Context, skills []Skill, opts ProjectOptions) error {
	desired := make(map[string]mcpServer, len(skills))
	for _, s := range skills {
		name := s.Name
		if _, taken := desired[name]; taken {
			name = s.LinkName()
		}
		desired[name] = mcpServer{
			Command: "node",
			Args:    []string{filepath.Join(s.Path, "index.js")},
			Env:     map[string]string{},
		}
	}

	return patchJSONConfig(ctx, m.ConfigPath(), func(root *hujson.Value) error {
		const key = "/mcpServers"
		if v := root.Find(key); v == nil || !isObject(v) {
			if len(desired) == 0 {
				return nil
			}
			if err := setMember(root, key, []byte("{}")); err != nil {
				return err
			}
		}

		obj := root.Find(key).Value.(*hujson.Object)
		var stale []string
		for _, member := range obj.Members {
			lit, ok := member.Name.Value.(hujson.Literal)
			if !ok {
				continue
			}
			name := lit.String()
			if _, want := desired[name]; want {
				continue
			}
			if managedServer(member.Value, opts.InstallRoot) {
				stale = append(stale, name)
			}
		}
		for _, name := range stale {
			if err := removeMember(root, key+"/"+jsonPointerEscape(name)); err != nil {
				return err
			}
		}
		// An object emptied of skillrow's own servers goes away with them.
		if len(desired) == 0 && len(stale) > 0 {
			if o, ok := root.Find(key).Value.(*hujson.Object); ok && len(o.Members) == 0 {
				return removeMember(root, key)
			}
		}

		names := make([]string, 0, len(desired))
		for name := range desired {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			value, err := json.Marshal(desired[name])
			if err != nil {
				return fmt.Errorf("encoding server %q: %w", name, err)
			}
			if err := setMember(root, key+"/"+jsonPointerEscape(name), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureConfig implements System.
func (m *MCPServersSystem) EnsureConfig() (string, error) {
	return ensureFile(m.ConfigPath(), []byte("{\n\t\"mcpServers\": {}\n}\n"))
}

// managedServer reports whether an mcpServers entry launches something from
// inside installRoot.
func managedServer(v hujson.Value, installRoot string) bool {
	if installRoot == "" {
		return false
	}
	clone := v.Clone()
	clone.Standardize()
	var s mcpServer
	if err := json.Unmarshal(clone.Pack(), &s); err != nil {
		return false
	}
	prefix := filepath.Clean(installRoot) + string(filepath.Separator)
	for _, arg := range s.Args {
		if strings.HasPrefix(filepath.Clean(arg), prefix) {
			return true
		}
	}
	return false
}

// --- JSONC plumbing ---

// patchJSONConfig loads path as JSONC, applies mutate and writes the result
// atomically. A missing, empty, corrupt or non-object file is treated as {}.
func patchJSONConfig(ctx context.Context, path string, mutate func(root *hujson.Value) error) error {
	content, err := readConfigFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	root, strict := loadJSONC(ctx, path, content)
	if err := mutate(&root); err != nil {
		return fmt.Errorf("updating %s: %w", path, err)
	}
	return writeConfigFile(path, finalizeConfig(&root, strict))
}

// loadJSONC parses content. strict is true when the original was plain JSON,
// in which case the output is standardized back to plain JSON too.
func loadJSONC(ctx context.Context, path, content string) (root hujson.Value, strict bool) {
	if strings.TrimSpace(content) == "" {
		root, _ = hujson.Parse([]byte("{}"))
		return root, true
	}

	root, err := hujson.Parse([]byte(content))
	if err == nil && isObject(&root) {
		return root, json.Valid([]byte(content))
	}

	log := logger.G(ctx).WithField("path", path)
	if err != nil {
		log = log.WithError(err)
	}
	log.Warn("agent config is not a JSON object, rewriting from empty")

	root, _ = hujson.Parse([]byte("{}"))
	return root, true
}

func isObject(v *hujson.Value) bool {
	_, ok := v.Value.(*hujson.Object)
	return ok
}

// setMember adds or replaces the value at ptr.
func setMember(root *hujson.Value, ptr string, valueJSON []byte) error {
	op := "add"
	if root.Find(ptr) != nil {
		op = "replace"
	}
	patch := fmt.Sprintf(`[{"op":%q,"path":%q,"value":%s}]`, op, ptr, valueJSON)
	if err := root.Patch([]byte(patch)); err != nil {
		return fmt.Errorf("patching %s: %w", ptr, err)
	}
	return nil
}

// removeMember deletes the value at ptr if it exists.
func removeMember(root *hujson.Value, ptr string) error {
	if root.Find(ptr) == nil {
		return nil
	}
	patch := fmt.Sprintf(`[{"op":"remove","path":%q}]`, ptr)
	if err := root.Patch([]byte(patch)); err != nil {
		return fmt.Errorf("removing %s: %w", ptr, err)
	}
	return nil
}

// finalizeConfig formats the JSONC AST and produces final output bytes.
func finalizeConfig(root *hujson.Value, strict bool) []byte {
	root.Format()
	removeTrailingCommas(root)
	if strict {
		root.Standardize()
	}
	return root.Pack()
}

// jsonPointerEscape escapes a string for use as a JSON Pointer token (RFC 6901).
func jsonPointerEscape(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

// removeTrailingCommas walks the JSONC AST and removes trailing commas.
func removeTrailingCommas(v *hujson.Value) {
	switch vv := v.Value.(type) {
	case *hujson.Object:
		for i := range vv.Members {
			removeTrailingCommas(&vv.Members[i].Value)
		}
		if len(vv.Members) > 0 {
			vv.Members[len(vv.Members)-1].Value.AfterExtra = nil
		}
	case *hujson.Array:
		for i := range vv.Elements {
			removeTrailingCommas(&vv.Elements[i])
		}
		if len(vv.Elements) > 0 {
			vv.Elements[len(vv.Elements)-1].AfterExtra = nil
		}
	}
}

func sortedSkills(skills []Skill) []Skill {
	out := make([]Skill, len(skills))
	copy(out, skills)
	sort.Slice(out, func(i, k int) bool {
		if out[i].Name != out[k].Name {
			return out[i].Name < out[k].Name
		}
		return out[i].Path < out[k].Path
	})
	return out
}
