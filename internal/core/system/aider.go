package system

// Aider implements the System interface for Aider.
type Aider struct {
	YAMLSystem
}

// NewAider creates a configured Aider system.
func NewAider() *Aider {
	return &Aider{YAMLSystem{
		BaseSystem: BaseSystem{
			id:          "aider",
			displayName: "Aider",
			configPath:  "~/.aider.conf.yml",
			format:      FormatYAML,
			executables: []string{"aider"},
			markers:     []string{"~/.aider"},
		},
		header: "Aider Configuration\nGenerated by skillrow. Manual edits are overwritten.",
	}}
}

func init() { Register(NewAider()) }
