package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Forget installed skills whose files are gone",
	Long: `Drop every installed skill whose directory no longer exists, disable it
for all agents and rewrite the affected agent configurations.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		n, err := d.manager.GarbageCollect(cmd.Context())
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(os.Stdout, "Nothing to clean up.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "Removed %d missing skills\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gcCmd)
}
