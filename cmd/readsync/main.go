package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"readsync/internal/bootstrap"
	"readsync/internal/platform/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataDir, configPath string

	root := &cobra.Command{
		Use:           "readsync",
		Short:         "Cross-device reading session tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data", defaultDataDir(), "data directory")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (YAML)")

	root.AddCommand(newTUICmd(&dataDir, &configPath))
	root.AddCommand(newBookCmd(&dataDir, &configPath))
	root.AddCommand(newSessionCmd(&dataDir, &configPath))
	root.AddCommand(newStatsCmd(&dataDir, &configPath))
	root.AddCommand(newSyncCmd(&dataDir, &configPath))
	return root
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".readsync"
	}
	return filepath.Join(home, ".readsync")
}

func loadApp(dataDir, configPath string) (*bootstrap.App, config.Config, error) {
	cfg, err := config.Load(dataDir, configPath)
	if err != nil {
		return nil, config.Config{}, err
	}
	app, err := bootstrap.New(cfg)
	if err != nil {
		return nil, config.Config{}, err
	}
	return app, cfg, nil
}

func newTUICmd(dataDir, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the readsync terminal UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, cfg, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			return bootstrap.RunTUI(cfg, app)
		},
	}
}

func newBookCmd(dataDir, configPath *string) *cobra.Command {
	book := &cobra.Command{Use: "book", Short: "Manage the book catalog"}

	var author string
	var totalPages int
	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			out, err := app.LibraryCLI.AddBook(context.Background(), args[0], author, totalPages)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", out.Title, out.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&author, "author", "", "author")
	addCmd.Flags().IntVar(&totalPages, "pages", 0, "total pages (0 = unknown)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List books",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			books, err := app.LibraryCLI.ListBooks(context.Background())
			if err != nil {
				return err
			}
			for _, b := range books {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-30s  p.%d/%d\n", b.ID, b.Title, b.CurrentPage, b.TotalPages)
			}
			return nil
		},
	}

	pageCmd := &cobra.Command{
		Use:   "page <book-id> <page>",
		Short: "Set the furthest read page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			page, err := parsePositiveInt(args[1])
			if err != nil {
				return err
			}
			out, err := app.LibraryCLI.AdvancePage(context.Background(), args[0], page)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s now at p.%d\n", out.Title, out.CurrentPage)
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <book-id>",
		Short: "Remove a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			return app.LibraryCLI.RemoveBook(context.Background(), args[0])
		},
	}

	book.AddCommand(addCmd, listCmd, pageCmd, removeCmd)
	return book
}

func newSessionCmd(dataDir, configPath *string) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Manage the reading session"}

	var startPage int
	startCmd := &cobra.Command{
		Use:   "start <book-id>",
		Short: "Start a reading session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			out, err := app.SessionCLI.Start(context.Background(), args[0], startPage)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session %s started\n", out.SessionID)
			return nil
		},
	}
	startCmd.Flags().IntVar(&startPage, "page", 0, "starting page (0 = book's current page)")

	pageCmd := &cobra.Command{
		Use:   "page <page>",
		Short: "Record a page turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			page, err := parsePositiveInt(args[0])
			if err != nil {
				return err
			}
			out, err := app.SessionCLI.AdvancePage(context.Background(), page)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "at p.%d\n", out.CurrentPage)
			return nil
		},
	}

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause the session",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			_, err = app.SessionCLI.Pause(context.Background())
			return err
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused session",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			_, err = app.SessionCLI.Resume(context.Background())
			return err
		},
	}

	finishCmd := &cobra.Command{
		Use:   "finish",
		Short: "Finish the session and record it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			out, err := app.SessionCLI.Finish(context.Background())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "finished: %d pages in %s, %d xp\n",
				out.PagesRead, out.Duration.Round(time.Second), out.XP)
			return nil
		},
	}

	abandonCmd := &cobra.Command{
		Use:   "abandon",
		Short: "Discard the session without a record",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			return app.SessionCLI.Abandon(context.Background())
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session in progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			out, err := app.SessionCLI.Status(context.Background())
			if err != nil {
				return err
			}
			state := "reading"
			if out.Paused {
				state = "paused"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  p.%d  since %s\n",
				out.BookTitle, state, out.CurrentPage, out.StartedAt.Local().Format(time.RFC822))
			return nil
		},
	}

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Retire an idle session and repair the live indicator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			out, err := app.SessionCLI.CleanupStale(context.Background())
			if err != nil {
				return err
			}
			for _, id := range out.Ended {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "auto-ended %s\n", id)
			}
			if out.IndicatorTorn {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "removed orphaned live indicator")
			}
			if out.IndicatorRestored {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "restored missing live indicator")
			}
			return nil
		},
	}

	session.AddCommand(startCmd, pageCmd, pauseCmd, resumeCmd, finishCmd, abandonCmd, statusCmd, cleanupCmd)
	return session
}

func newStatsCmd(dataDir, configPath *string) *cobra.Command {
	stats := &cobra.Command{Use: "stats", Short: "Reading statistics"}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			profile, achievements, err := app.StatsCLI.Show(context.Background())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "xp:      %d\n", profile.TotalXP)
			_, _ = fmt.Fprintf(w, "pages:   %d\n", profile.TotalPages)
			_, _ = fmt.Fprintf(w, "streak:  %d (best %d)\n", profile.CurrentStreak, profile.LongestStreak)
			if profile.StreakPaused {
				_, _ = fmt.Fprintln(w, "streak paused")
			}
			for _, a := range achievements {
				_, _ = fmt.Fprintf(w, "unlock:  %s (%s)\n", a.Type, a.UnlockedAt.Local().Format("2006-01-02"))
			}
			return nil
		},
	}

	recomputeCmd := &cobra.Command{
		Use:   "recompute",
		Short: "Re-derive every aggregate from session history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			profile, err := app.StatsCLI.Recompute(context.Background())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "xp=%d pages=%d streak=%d\n",
				profile.TotalXP, profile.TotalPages, profile.CurrentStreak)
			return nil
		},
	}

	pardonCmd := &cobra.Command{
		Use:   "pardon <day>",
		Short: "Forgive a missed streak day (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			out, err := app.StatsCLI.Pardon(context.Background(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pardoned %s, streak=%d\n", out.Day, out.CurrentStreak)
			return nil
		},
	}

	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the streak journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			events, err := app.StatsCLI.Journal(context.Background())
			if err != nil {
				return err
			}
			for _, ev := range events {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  %s\n", ev.Day, ev.Kind, ev.ID)
			}
			return nil
		},
	}

	var paused bool
	pauseStreakCmd := &cobra.Command{
		Use:   "pause-streak",
		Short: "Freeze or unfreeze streak accounting",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			return app.StatsCLI.SetStreakPaused(context.Background(), paused)
		},
	}
	pauseStreakCmd.Flags().BoolVar(&paused, "on", true, "pause (true) or resume (false)")

	stats.AddCommand(showCmd, recomputeCmd, pardonCmd, journalCmd, pauseStreakCmd)
	return stats
}

func newSyncCmd(dataDir, configPath *string) *cobra.Command {
	sync := &cobra.Command{Use: "sync", Short: "Peer synchronization"}

	nowCmd := &cobra.Command{
		Use:   "now",
		Short: "Flush pending transfers and publish full state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			out, err := app.SyncCLI.SyncNow(context.Background())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "flushed %d, published=%t\n", out.Flushed, out.Published)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			out, err := app.SyncCLI.Status(context.Background())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			role := "mirror"
			if out.StatsAuthority {
				role = "statistics owner"
			}
			_, _ = fmt.Fprintf(w, "device:  %s (%s)\n", out.Device, role)
			_, _ = fmt.Fprintf(w, "pending: %d\n", out.PendingMessages)
			if !out.LastPublishedAt.IsZero() {
				_, _ = fmt.Fprintf(w, "last publish: %s\n", out.LastPublishedAt.Local().Format(time.RFC822))
			}
			return nil
		},
	}

	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "List transfers waiting in the durable queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			pending, err := app.SyncCLI.Queue(context.Background())
			if err != nil {
				return err
			}
			for _, p := range pending {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s  %s\n", p.ID, p.Kind, p.SentAt.Local().Format(time.RFC822))
			}
			return nil
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Apply transfers dropped by the peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := loadApp(*dataDir, *configPath)
			if err != nil {
				return err
			}
			results, err := app.SyncCLI.Ingest(context.Background(), args[0])
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Applied {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", r.Kind)
				} else {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dropped %s: %s\n", r.Kind, r.Reason)
				}
			}
			return nil
		},
	}

	sync.AddCommand(nowCmd, statusCmd, queueCmd, ingestCmd)
	return sync
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n < 0 {
		return 0, fmt.Errorf("invalid page %q", s)
	}
	return n, nil
}
