package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agents and the skills enabled for them",
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		detectedOnly, _ := cmd.Flags().GetBool("detected")

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tName\tDetected\tFormat\tSkills\tConfig")
		for _, a := range d.manager.Agents() {
			if detectedOnly && !a.Detected {
				continue
			}
			detected := "no"
			if a.Detected {
				detected = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				a.ID, a.Name, detected, a.ConfigFormat, len(a.EnabledSkillIDs), a.ConfigPath)
		}
		_ = w.Flush()
		return nil
	},
}

var agentScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Detect which agents are installed",
	Long: `Probe every known agent: its config file, its executable on PATH and
its data directories. Enabled skills are never changed by a scan.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		n, err := d.manager.DetectAgents(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Detected %d of %d agents\n", n, len(d.manager.Agents()))
		for _, a := range d.manager.Agents() {
			if a.Detected {
				fmt.Fprintf(os.Stdout, "  %s (%s)\n", a.Name, a.ID)
			}
		}
		return nil
	},
}

var agentToggleCmd = &cobra.Command{
	Use:   "toggle <agent> <skill>",
	Short: "Enable or disable a skill for an agent",
	Long: `Flip whether an installed skill is enabled for an agent. Detected agents
have their on-disk configuration rewritten immediately.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		agent, err := resolveAgent(d.manager, args[0])
		if err != nil {
			return err
		}
		skill, err := resolveSkill(d.manager, args[1])
		if err != nil {
			return err
		}

		enabled, err := d.manager.ToggleSkillForAgent(cmd.Context(), skill.ID, agent.ID)
		if err != nil {
			return err
		}
		state := "Disabled"
		if enabled {
			state = "Enabled"
		}
		fmt.Fprintf(os.Stdout, "%s %s for %s\n", state, skill.Name, agent.Name)
		if !agent.Detected {
			fmt.Fprintf(os.Stdout, "  %s is not detected; its configuration is written once it is.\n", agent.Name)
		}
		return nil
	},
}

var agentApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Rewrite the configuration of every detected agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		n := d.manager.ApplyAllConfigs(cmd.Context())
		fmt.Fprintf(os.Stdout, "Applied configuration to %d agents\n", n)
		return nil
	},
}

var agentInitCmd = &cobra.Command{
	Use:   "init <agent>",
	Short: "Create an agent's config file if it does not exist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		agent, err := resolveAgent(d.manager, args[0])
		if err != nil {
			return err
		}
		path, err := d.manager.EnsureAgentConfig(agent.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, path)
		return nil
	},
}

func init() {
	agentListCmd.Flags().Bool("detected", false, "Only list detected agents")

	agentCmd.AddCommand(agentListCmd, agentScanCmd, agentToggleCmd, agentApplyCmd, agentInitCmd)
	rootCmd.AddCommand(agentCmd)
}
