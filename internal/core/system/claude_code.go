package system

// ClaudeCode reads skills from ~/.claude/skills, one directory per skill.
type ClaudeCode struct {
	DirectorySystem
}

// NewClaudeCode creates a configured Claude Code system.
func NewClaudeCode() *ClaudeCode {
	return &ClaudeCode{DirectorySystem{
		BaseSystem: BaseSystem{
			id:          "claude-code",
			displayName: "Claude Code",
			configPath:  "~/.claude.json",
			format:      FormatJSON,
			executables: []string{"claude"},
			markers:     []string{"~/.claude", "$XDG_CONFIG/claude", "/usr/local/bin/claude"},
		},
		skillsDir: "~/.claude/skills",
	}}
}

func init() { Register(NewClaudeCode()) }
