package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/barysiuk/skillrow/internal/core"
	"github.com/spf13/cobra"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage skill repositories",
	Long:  `Add, list, update, sync and remove the git repositories skills are installed from.`,
}

var repoAddCmd = &cobra.Command{
	Use:   "add <source>",
	Short: "Add a skill repository",
	Long: `Add a git repository as a skill source. The repository is not cloned
until it is synced (pass --sync to do it right away).

Supported sources:
  owner/repo                                 GitHub repository
  owner/repo/path/to/skills                  GitHub repository, skills below a path
  git@host:owner/repo.git                    SSH URL
  https://host/owner/repo[/tree/branch/path] HTTPS URL
  file:///path/to/repo                       Local repository`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := core.ParseRepositorySource(args[0])
		if err != nil {
			return err
		}
		if name, _ := cmd.Flags().GetString("name"); name != "" {
			in.Name = name
		}
		if branch, _ := cmd.Flags().GetString("branch"); branch != "" {
			in.Branch = branch
		}
		if path, _ := cmd.Flags().GetString("path"); path != "" {
			in.SkillPath = path
		}

		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		repo, err := d.manager.AddRepository(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Added repository: %s (%s)\n", repo.Name, repo.URL)

		if doSync, _ := cmd.Flags().GetBool("sync"); doSync {
			return syncRepository(cmd, d.manager, repo)
		}
		return nil
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		repos := d.manager.Repositories()
		if len(repos) == 0 {
			fmt.Fprintln(os.Stdout, "No repositories configured. Use 'skillrow repo add <source>' to add one.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Name\tURL\tBranch\tPath\tSkills\tLast sync")
		for _, r := range repos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.Name, r.URL, r.Branch, r.SkillPath, len(r.Skills), formatSyncTime(r.LastSync))
		}
		_ = w.Flush()
		return nil
	},
}

var repoUpdateCmd = &cobra.Command{
	Use:   "update <name|id>",
	Short: "Edit a repository",
	Long: `Change a repository's name, URL, branch or skill path. Changing the URL
or branch discards the synced skill list; run 'skillrow repo sync' afterwards.`,
	Args: cobra.ExactArgs(1),
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

		in := core.RepositoryInput{Name: repo.Name, URL: repo.URL, Branch: repo.Branch, SkillPath: repo.SkillPath}
		flags := cmd.Flags()
		if flags.Changed("name") {
			in.Name, _ = flags.GetString("name")
		}
		if flags.Changed("url") {
			in.URL, _ = flags.GetString("url")
		}
		if flags.Changed("branch") {
			in.Branch, _ = flags.GetString("branch")
		}
		if flags.Changed("path") {
			in.SkillPath, _ = flags.GetString("path")
		}

		updated, err := d.manager.UpdateRepository(cmd.Context(), repo.ID, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Updated repository: %s (%s, branch %s, path %s)\n",
			updated.Name, updated.URL, updated.Branch, updated.SkillPath)
		return nil
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove <name|id>",
	Short: "Remove a repository",
	Long:  `Remove a repository record. Skills installed from it stay installed.`,
	Args:  cobra.ExactArgs(1),
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
		if err := d.manager.RemoveRepository(cmd.Context(), repo.ID); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Removed repository: %s\n", repo.Name)
		return nil
	},
}

var repoSyncCmd = &cobra.Command{
	Use:   "sync [name|id]",
	Short: "Clone or pull repositories and rescan their skills",
	Long: `Sync one repository, or all of them when no argument is given.
Repositories are synced in parallel; one failing does not affect the others.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		if len(args) == 1 {
			repo, err := resolveRepository(d.manager, args[0])
			if err != nil {
				return err
			}
			return syncRepository(cmd, d.manager, repo)
		}

		repos := d.manager.Repositories()
		if len(repos) == 0 {
			fmt.Fprintln(os.Stdout, "No repositories to sync.")
			return nil
		}

		summary := d.manager.SyncAll(cmd.Context())
		for _, r := range repos {
			if err, failed := summary.Errors[r.ID]; failed {
				fmt.Fprintf(os.Stderr, "Failed %s: %v\n", r.Name, err)
				printGitError(err)
				continue
			}
			synced, _ := d.manager.Repository(r.ID)
			fmt.Fprintf(os.Stdout, "Synced %s (%d skills)\n", synced.Name, len(synced.Skills))
		}
		fmt.Fprintf(os.Stdout, "%d synced, %d failed\n", summary.Succeeded, summary.Failed)
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d repositories failed to sync", summary.Failed, len(repos))
		}
		return nil
	},
}

func syncRepository(cmd *cobra.Command, m *core.Manager, repo core.Repository) error {
	if err := m.SyncOne(cmd.Context(), repo.ID); err != nil {
		printGitError(err)
		return fmt.Errorf("syncing %s: %w", repo.Name, err)
	}
	synced, _ := m.Repository(repo.ID)
	fmt.Fprintf(os.Stdout, "Synced %s (%d skills)\n", synced.Name, len(synced.Skills))
	return nil
}

func init() {
	repoAddCmd.Flags().String("name", "", "Display name (default: derived from the URL)")
	repoAddCmd.Flags().StringP("branch", "b", "", "Branch to track (default: main)")
	repoAddCmd.Flags().StringP("path", "p", "", "Skill root inside the repository (default: /)")
	repoAddCmd.Flags().Bool("sync", false, "Sync the repository after adding it")

	repoUpdateCmd.Flags().String("name", "", "New display name")
	repoUpdateCmd.Flags().String("url", "", "New repository URL")
	repoUpdateCmd.Flags().StringP("branch", "b", "", "New branch")
	repoUpdateCmd.Flags().StringP("path", "p", "", "New skill root")

	repoCmd.AddCommand(repoAddCmd, repoListCmd, repoUpdateCmd, repoRemoveCmd, repoSyncCmd)
	rootCmd.AddCommand(repoCmd)
}
