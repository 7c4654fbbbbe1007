package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/schaermu/mindesktop/internal/config"
	"github.com/schaermu/mindesktop/internal/site"
	"github.com/schaermu/mindesktop/internal/storage/prefs"
)

// recentRunsLimit bounds the history printed by sync --status
const recentRunsLimit = 5

var (
	syncRepo   string
	syncBranch string
	syncStatus bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the offline copy of the site without opening a window",
	Long: `Sync shallow-clones a branch of a Git repository into the user data directory
and publishes it as the offline copy of the site. The repository and branch are
remembered, so the next launch shows the offline copy.

Without --repo and --branch the remembered values are used.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncRepo, "repo", "", "Git repository URL")
	syncCmd.Flags().StringVar(&syncBranch, "branch", "", "branch to fetch")
	syncCmd.Flags().BoolVar(&syncStatus, "status", false, "print the published site and recent syncs instead of syncing")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, params, err := openPrefs(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	store, err := newSiteStore(cfg, params, logger)
	if err != nil {
		return err
	}

	if syncStatus {
		return printStatus(ctx, cmd.OutOrStdout(), store, params)
	}

	return syncSite(ctx, cfg, store, params, logger, syncRepo, syncBranch)
}

// syncSite publishes repo@branch, falling back to the remembered parameters
// for whichever of the two is empty.
func syncSite(ctx context.Context, cfg *config.Config, store *site.Store, params *prefs.Store, logger *slog.Logger, repo, branch string) error {
	if repo == "" || branch == "" {
		saved, ok, err := params.SyncParams(ctx)
		if err != nil {
			return fmt.Errorf("failed to read remembered sync parameters: %w", err)
		}
		if ok {
			if repo == "" {
				repo = saved.Repo
			}
			if branch == "" {
				branch = saved.Branch
			}
		}
	}
	if repo == "" || branch == "" {
		return fmt.Errorf("--repo and --branch are required when nothing was synced before")
	}

	loc, err := store.Sync(ctx, site.Request{RepositoryURL: repo, Branch: branch})
	if err != nil {
		return err
	}
	if err := params.SaveSyncParams(ctx, prefs.SyncParams{Repo: repo, Branch: branch}); err != nil {
		return fmt.Errorf("failed to remember sync parameters: %w", err)
	}

	logger.Info("offline site published", "path", loc.EntryPath(), "user_data_dir", cfg.Paths.UserDataDir)
	return nil
}

func printStatus(ctx context.Context, out io.Writer, store *site.Store, params *prefs.Store) error {
	loc, ok, err := store.Restore()
	if err != nil {
		return fmt.Errorf("failed to read published site: %w", err)
	}

	if !ok {
		fmt.Fprintln(out, "site:     none (remote only)")
	} else {
		fmt.Fprintf(out, "site:     %s\n", loc.EntryPath())
		if st := store.State(); st != nil {
			fmt.Fprintf(out, "repo:     %s\n", st.Repo)
			fmt.Fprintf(out, "branch:   %s\n", st.Branch)
			fmt.Fprintf(out, "commit:   %s\n", st.Commit)
			fmt.Fprintf(out, "synced:   %s\n", st.SyncedAt.Local().Format(time.RFC3339))
		}
	}

	runs, err := params.RecentRuns(ctx, recentRunsLimit)
	if err != nil {
		return fmt.Errorf("failed to read sync history: %w", err)
	}
	if len(runs) == 0 {
		return nil
	}
	fmt.Fprintln(out, "recent syncs:")
	for _, r := range runs {
		line := fmt.Sprintf("  %s  %-9s %s@%s", r.StartedAt.Local().Format(time.RFC3339), r.Status, r.Repo, r.Branch)
		if r.Commit != "" {
			line += " " + shortCommit(r.Commit)
		}
		if r.Error != "" {
			line += ": " + r.Error
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
