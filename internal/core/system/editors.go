package system

// Editors keep a skills directory next to a config.json under their dotfile
// directory. Projection goes into the directory; the config file only
// serves detection.

type editorPreset struct {
	id, displayName, dotDir string
	markers             []string
}

var editorPresets = []editorPreset{
	{id: "vscode", displayName: "VSCode", dotDir: "~/.vscode", markers: []string{
		"/Applications/Visual Studio Code.app",
		"~/Applications/Visual Studio Code.app",
		"/Applications/VSCode.app",
	}},
	{id: "cursor-editor", displayName: "Cursor Editor", dotDir: "~/.cursor", markers: []string{"~/.cursor/skills"}},
	{id: "trae", displayName: "Trae", dotDir: "~/.trae", markers: []string{"/Applications/Trae.app", "~/Applications/Trae.app"}},
	{id: "antigravity", displayName: "Antigravity", dotDir: "~/.agent"},
	{id: "qoder", displayName: "Qoder", dotDir: "~/.qoder"},
	{id: "windsurf", displayName: "Windsurf", dotDir: "~/.windsurf", markers: []string{"/Applications/Windsurf.app", "~/Applications/Windsurf.app"}},
	{id: "codebuddy", displayName: "CodeBuddy", dotDir: "~/.codebuddy"},
}

// newEditor creates the directory-strategy system for an editor preset.
func newEditor(p editorPreset) *DirectorySystem {
	return &DirectorySystem{
		BaseSystem: BaseSystem{
			id:          p.id,
			displayName: p.displayName,
			configPath:  p.dotDir + "/skills/config.json",
			format:      FormatJSON,
			markers:     p.markers,
		},
		skillsDir: p.dotDir + "/skills",
	}
}

func init() {
	for _, p := range editorPresets {
		Register(newEditor(p))
	}
}
