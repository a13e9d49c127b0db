package system

// newSkillsCLI builds a terminal agent that reads a `skills` array from a
// JSON config and is detected by its executable.
func newSkillsCLI(id, displayName, configPath, executable string) *JSONSkillsSystem {
	return &JSONSkillsSystem{
		BaseSystem: BaseSystem{
			id:          id,
			displayName: displayName,
			configPath:  configPath,
			format:      FormatJSON,
			executables: []string{executable},
		},
		fields: fieldEnabled,
	}
}

func init() {
	Register(newSkillsCLI("gemini-cli", "Gemini CLI", "~/.gemini/config.json", "gemini"))
	Register(newSkillsCLI("glm-cli", "GLM CLI", "~/.glm/config.json", "glm"))
	Register(newSkillsCLI("kimi-cli", "Kimi CLI (Moonshot)", "~/.kimi/config.json", "kimi"))
	Register(newSkillsCLI("qwen-cli", "Qwen CLI", "~/.qwen/config.json", "qwen"))
}
