package system

// Cursor loads skills as MCP servers from ~/.cursor/mcp.json.
type Cursor struct {
	MCPServersSystem
}

// NewCursor creates a configured Cursor system.
func NewCursor() *Cursor {
	return &Cursor{MCPServersSystem{BaseSystem{
		id:          "cursor",
		displayName: "Cursor",
		configPath:  "~/.cursor/mcp.json",
		format:      FormatJSON,
		executables: []string{"cursor"},
		markers:     []string{"/Applications/Cursor.app", "~/Applications/Cursor.app"},
	}}}
}

func init() { Register(NewCursor()) }
