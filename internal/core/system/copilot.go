package system

import "context"

// CopilotCLI implements the System interface for the GitHub Copilot CLI
// extension. The bare gh binary is not enough: the copilot extension must
// answer --version.
type CopilotCLI struct {
	JSONSkillsSystem
}

// NewCopilotCLI creates a configured Copilot CLI system.
func NewCopilotCLI() *CopilotCLI {
	return &CopilotCLI{JSONSkillsSystem{
		BaseSystem: BaseSystem{
			id:          "copilot-cli",
			displayName: "GitHub Copilot CLI",
			configPath:  "~/.copilot/config.json",
			format:      FormatJSON,
			markers:     []string{"~/.local/share/gh/extensions/gh-copilot"},
			probe: func(ctx context.Context) bool {
				return commandSucceeds(ctx, "gh", "copilot", "--version")
			},
		},
	}}
}

func init() { Register(NewCopilotCLI()) }
