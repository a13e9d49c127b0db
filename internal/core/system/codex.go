package system

// Codex implements the System interface for OpenAI Codex.
type Codex struct {
	TOMLSystem
}

// NewCodex creates a configured Codex system.
func NewCodex() *Codex {
	return &Codex{TOMLSystem{
		BaseSystem: BaseSystem{
			id:          "codex",
			displayName: "OpenAI Codex",
			configPath:  "~/.codex/config.toml",
			format:      FormatTOML,
			executables: []string{"codex"},
			markers:     []string{"~/.codex", "$XDG_CONFIG/codex"},
		},
		header: "Codex Configuration\nGenerated by skillrow. Manual edits are overwritten.",
	}}
}

func init() { Register(NewCodex()) }
