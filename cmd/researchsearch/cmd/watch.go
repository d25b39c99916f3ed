package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
	"github.com/Aman-CERP/researchsearch/internal/finder"
	"github.com/Aman-CERP/researchsearch/internal/output"
	"github.com/Aman-CERP/researchsearch/internal/source"
	"github.com/Aman-CERP/researchsearch/internal/watcher"
)

func newWatchCmd(st *rootState) *cobra.Command {
	var noInitial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reindex whenever the SQLite source database changes",
		Long: `Watch the SQLite source database and run a full reindex after each burst
of writes. Runs never overlap. Stop with Ctrl+C.

Only SQLite sources can be watched; use 'schedule' for MySQL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, st, !noInitial)
		},
	}

	cmd.Flags().BoolVar(&noInitial, "no-initial", false, "Skip the full reindex at startup")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, st *rootState, initial bool) error {
	cfg := st.cfg
	if !cfg.Source.IsSQLite() {
		return apperrors.ValidationError("watch requires a sqlite source", nil).
			WithDetail("driver", cfg.Source.Driver).
			WithSuggestion("Use 'researchsearch schedule' for MySQL sources")
	}

	dbPath, ok := source.SQLitePath(cfg.Source.DSN)
	if !ok {
		return apperrors.ValidationError("an in-memory source cannot be watched", nil).
			WithDetail("dsn", cfg.Source.DSN).
			WithSuggestion("Point source.dsn at a database file")
	}

	w, err := watcher.New(dbPath, watcher.Options{
		Debounce: cfg.Watch.DebounceWindow(),
		Logger:   st.logger,
	})
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg, st.logger, appOptions{index: true, writer: true})
	if err != nil {
		return err
	}
	defer a.Close()

	out := output.New(cmd.OutOrStdout())
	reindex := func(ctx context.Context) error {
		result, err := a.driver.Run(ctx, finder.RunOptions{Prune: true})
		if err != nil {
			out.Errorf("Reindex failed: %v", err)
			return err
		}
		printRunResult(out, result)
		return nil
	}

	if initial {
		if err := reindex(ctx); err != nil && apperrors.IsFatal(err) {
			return err
		}
	}

	out.Statusf("👀", "Watching %s (Ctrl+C to stop)", dbPath)
	err = w.Run(ctx, func(ctx context.Context, batch []watcher.Event) error {
		st.logger.Debug("reindex_triggered", slog.Int("events", len(batch)))
		return reindex(ctx)
	})
	if err != nil {
		return err
	}
	out.Status("", "Stopped watching")
	return nil
}
