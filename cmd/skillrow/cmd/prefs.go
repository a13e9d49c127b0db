package cmd

import (
	"fmt"
	"os"

	"github.com/barysiuk/skillrow/internal/tui"
	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change display preferences",
	Long: `Without flags, print the stored preferences. --color-scheme selects the
markdown style used by 'skill show' and the TUI preview (auto, dark or light).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		p := d.manager.Preferences()
		flags := cmd.Flags()
		if !flags.Changed("color-scheme") && !flags.Changed("language") {
			fmt.Fprintf(os.Stdout, "color-scheme: %s\n", orDefault(p.ColorScheme, tui.SchemeAuto))
			fmt.Fprintf(os.Stdout, "language: %s\n", orDefault(p.Language, "en"))
			return nil
		}

		if flags.Changed("color-scheme") {
			scheme, _ := flags.GetString("color-scheme")
			switch scheme {
			case tui.SchemeAuto, tui.SchemeDark, tui.SchemeLight:
			default:
				return fmt.Errorf("unknown color scheme %q (want auto, dark or light)", scheme)
			}
			p.ColorScheme = scheme
		}
		if flags.Changed("language") {
			p.Language, _ = flags.GetString("language")
		}
		if err := d.manager.SetPreferences(cmd.Context(), p); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Preferences saved.")
		return nil
	},
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func init() {
	prefsCmd.Flags().String("color-scheme", "", "Markdown color scheme: auto, dark or light")
	prefsCmd.Flags().String("language", "", "Preferred language code")
	rootCmd.AddCommand(prefsCmd)
}
