package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/barysiuk/skillrow/internal/logger"
	"github.com/barysiuk/skillrow/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long: `Browse repositories, install skills and enable them per agent in an
interactive terminal UI. Logs go to <data_dir>/skillrow.log while it runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		logPath := filepath.Join(d.cfg.DataDir, "skillrow.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logger.SetLogOutput(f)
		defer logger.SetLogOutput(os.Stderr)

		return tui.Run(cmd.Context(), d.manager)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
