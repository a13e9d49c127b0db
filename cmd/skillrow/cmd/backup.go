package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export or import repositories, installed skills and agents",
}

var backupExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write a JSON backup (to stdout when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		var w io.Writer = os.Stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("creating backup file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := d.manager.ExportBackup(w); err != nil {
			return err
		}
		if len(args) == 1 {
			fmt.Fprintf(os.Stdout, "Exported backup to %s\n", args[0])
		}
		return nil
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all state with a JSON backup",
	Long: `Replace repositories, installed skills and agents with the contents of a
backup. Installed skill files are not restored; run 'skillrow gc' to drop
skills whose directories are missing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening backup file: %w", err)
		}
		defer f.Close()

		if err := d.manager.ImportBackup(cmd.Context(), f); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Imported %d repositories and %d skills\n",
			len(d.manager.Repositories()), len(d.manager.InstalledSkills()))
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupExportCmd, backupImportCmd)
	rootCmd.AddCommand(backupCmd)
}
