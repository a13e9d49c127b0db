package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// v holds the settings for this invocation: flags bound below, SKILLROW_*
// environment variables and ~/.skillrow/config.yaml.
var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "skillrow",
	Short: "Sync skill repositories and project them into your AI agents",
	Long: `skillrow keeps a local library of agent skills in sync with git repositories.

Add repositories, install the skills they contain, and enable each skill
for the agents you use. skillrow writes every agent's native layout:
symlinks for directory-based agents, JSON, TOML or YAML for the rest.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("skillrow %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("data-dir", "", "Data directory (default: ~/.skillrow)")
	pf.String("store", "", "State backend: file or sqlite")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format (text or json)")

	_ = v.BindPFlag("data_dir", pf.Lookup("data-dir"))
	_ = v.BindPFlag("store.backend", pf.Lookup("store"))
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log.format", pf.Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
