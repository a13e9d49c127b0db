package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/barysiuk/skillrow/internal/core"
	"github.com/barysiuk/skillrow/internal/tui"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Manage installed skills",
	Long:  `List, install, import, inspect and uninstall skills.`,
}

// ---------------------------------------------------------------------------
// skill list
// ---------------------------------------------------------------------------

var skillListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List installed or available skills",
	Long: `List installed skills. With --available, list the skills found in synced
repositories instead, optionally filtered by a query matching name,
description or author.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		if available, _ := cmd.Flags().GetBool("available"); available {
			return listAvailable(cmd, d.manager, args)
		}

		skills := d.manager.InstalledSkills()
		if len(skills) == 0 {
			fmt.Fprintln(os.Stdout, "No skills installed.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Name\tRepository\tVersion\tAgents")
		for _, s := range skills {
			agents := "-"
			if len(s.AssignedAgentIDs) > 0 {
				agents = joinStrings(s.AssignedAgentIDs.Sorted())
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, s.RepositoryName, s.Version, agents)
		}
		_ = w.Flush()
		return nil
	},
}

func listAvailable(cmd *cobra.Command, m *core.Manager, args []string) error {
	repoID := uuid.Nil
	if ref, _ := cmd.Flags().GetString("repo"); ref != "" {
		repo, err := resolveRepository(m, ref)
		if err != nil {
			return err
		}
		repoID = repo.ID
	}
	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	manifests := m.FilterManifests(query, repoID)
	if len(manifests) == 0 {
		fmt.Fprintln(os.Stdout, "No skills found. Sync a repository with 'skillrow repo sync'.")
		return nil
	}

	repoNames := make(map[uuid.UUID]string)
	for _, r := range m.Repositories() {
		repoNames[r.ID] = r.Name
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tName\tRepository\tAuthor\tStatus")
	for _, mf := range manifests {
		status := ""
		if m.IsSkillInstalled(mf.RepositoryID, mf.ID) {
			status = "installed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mf.ID, mf.Name, repoNames[mf.RepositoryID], mf.Author, status)
	}
	_ = w.Flush()
	return nil
}

// ---------------------------------------------------------------------------
// skill install
// ---------------------------------------------------------------------------

var skillInstallCmd = &cobra.Command{
	Use:   "install <repo> <skill>",
	Short: "Install a skill from a synced repository",
	Long: `Copy a skill out of a synced repository into the local library.
<skill> is the skill id or name as shown by 'skillrow skill list --available'.
Use --agent (repeatable) to enable it for agents right away.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		repo, err := resolveRepository(d.manager, args[0])
		if err != nil {
			return err
		}
		skill, err := d.manager.Install(cmd.Context(), repo.ID, manifestRef(repo, args[1]))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Installed: %s -> %s\n", skill.Name, skill.LocalPath)

		agents, _ := cmd.Flags().GetStringSlice("agent")
		return enableForAgents(cmd, d.manager, skill, agents)
	},
}

// manifestRef maps a skill name to its manifest id. Ids win over names.
func manifestRef(repo core.Repository, ref string) string {
	for _, mf := range repo.Skills {
		if mf.ID == ref {
			return ref
		}
	}
	for _, mf := range repo.Skills {
		if strings.EqualFold(mf.Name, ref) {
			return mf.ID
		}
	}
	return ref
}

func enableForAgents(cmd *cobra.Command, m *core.Manager, skill core.InstalledSkill, refs []string) error {
	for _, ref := range refs {
		agent, err := resolveAgent(m, ref)
		if err != nil {
			return err
		}
		if agent.EnabledSkillIDs.Has(skill.ID.String()) {
			continue
		}
		if _, err := m.ToggleSkillForAgent(cmd.Context(), skill.ID, agent.ID); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Enabled %s for %s\n", skill.Name, agent.Name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// skill import
// ---------------------------------------------------------------------------

var skillImportCmd = &cobra.Command{
	Use:   "import <dir|archive.zip>",
	Short: "Import a skill from a local directory or zip archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		src, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		var skill core.InstalledSkill
		if strings.EqualFold(filepath.Ext(src), ".zip") {
			skill, err = d.manager.ImportFromZip(cmd.Context(), src)
		} else {
			name, _ := cmd.Flags().GetString("name")
			skill, err = d.manager.ImportFromDirectory(cmd.Context(), src, name)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Imported: %s -> %s\n", skill.Name, skill.LocalPath)

		agents, _ := cmd.Flags().GetStringSlice("agent")
		return enableForAgents(cmd, d.manager, skill, agents)
	},
}

// ---------------------------------------------------------------------------
// skill uninstall
// ---------------------------------------------------------------------------

var skillUninstallCmd = &cobra.Command{
	Use:   "uninstall <skill>",
	Short: "Uninstall a skill",
	Long: `Remove an installed skill and disable it for every agent.
With --purge-source the skill's source inside its repository clone is
deleted too; it comes back on the next sync.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		skill, err := resolveSkill(d.manager, args[0])
		if err != nil {
			return err
		}
		purge, _ := cmd.Flags().GetBool("purge-source")

		res, err := d.manager.Uninstall(cmd.Context(), skill.ID, core.UninstallOptions{PurgeSource: purge})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Uninstalled: %s\n", res.Name)
		if len(res.AffectedAgents) > 0 {
			fmt.Fprintf(os.Stdout, "  disabled for: %s\n", joinStrings(res.AffectedAgents))
		}
		if res.PurgedSource != "" {
			fmt.Fprintf(os.Stdout, "  purged source: %s\n", res.PurgedSource)
		}
		return nil
	},
}

// ---------------------------------------------------------------------------
// skill show
// ---------------------------------------------------------------------------

var skillShowCmd = &cobra.Command{
	Use:   "show <skill>",
	Short: "Show an installed skill and render its SKILL.md",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		skill, err := resolveSkill(d.manager, args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Name:\t%s\n", skill.Name)
		fmt.Fprintf(w, "Description:\t%s\n", skill.Description)
		fmt.Fprintf(w, "Author:\t%s\n", skill.Author)
		fmt.Fprintf(w, "Version:\t%s\n", skill.Version)
		fmt.Fprintf(w, "License:\t%s\n", skill.License)
		fmt.Fprintf(w, "Repository:\t%s\n", skill.RepositoryName)
		fmt.Fprintf(w, "Installed:\t%s\n", skill.InstallDate.Local().Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "Path:\t%s\n", skill.LocalPath)
		_ = w.Flush()

		data, err := os.ReadFile(filepath.Join(skill.LocalPath, "SKILL.md"))
		if err != nil {
			return nil
		}
		content := string(data)
		if raw, _ := cmd.Flags().GetBool("raw"); !raw {
			content = renderMarkdown(content, d.manager.Preferences().ColorScheme)
		}
		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, strings.TrimRight(content, "\n"))
		return nil
	},
}

// renderMarkdown renders content for the terminal in the given color
// scheme, falling back to the source text if rendering fails.
func renderMarkdown(content, scheme string) string {
	r, err := glamour.NewTermRenderer(
		tui.MarkdownStyle(scheme),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

func init() {
	skillListCmd.Flags().BoolP("available", "a", false, "List skills available in synced repositories")
	skillListCmd.Flags().StringP("repo", "r", "", "Only list skills from this repository (with --available)")

	skillInstallCmd.Flags().StringSlice("agent", nil, "Agent to enable the skill for (repeatable)")

	skillImportCmd.Flags().String("name", "", "Skill name (default: directory name)")
	skillImportCmd.Flags().StringSlice("agent", nil, "Agent to enable the skill for (repeatable)")

	skillUninstallCmd.Flags().Bool("purge-source", false, "Also delete the skill's source in the repository clone")

	skillShowCmd.Flags().Bool("raw", false, "Print SKILL.md without rendering")

	skillCmd.AddCommand(skillListCmd, skillInstallCmd, skillImportCmd, skillUninstallCmd, skillShowCmd)
	rootCmd.AddCommand(skillCmd)
}
