package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
	"github.com/Aman-CERP/researchsearch/internal/finder"
	"github.com/Aman-CERP/researchsearch/internal/output"
)

type indexOptions struct {
	since   string
	id      int
	noPrune bool
	timeout time.Duration
}

func newIndexCmd(st *rootState) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index eligible research projects",
		Long: `Index every eligible research project into the search index.

A full run also removes indexed projects that are no longer eligible.
With --since only projects created at or after the given time are indexed,
and nothing is removed. With --id a single project is reindexed.

The run stops at the first project that fails to index.`,
		Example: `  # Full reindex
  researchsearch index

  # Only projects created since the start of the year
  researchsearch index --since 2026-01-01

  # Reindex project 7
  researchsearch index --id 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, st, opts)
		},
	}

	cmd.Flags().StringVar(&opts.since, "since", "", "Only index projects created at or after this time (2006-01-02 or 2006-01-02 15:04:05)")
	cmd.Flags().IntVar(&opts.id, "id", 0, "Reindex a single project by id")
	cmd.Flags().BoolVar(&opts.noPrune, "no-prune", false, "Keep indexed projects that are no longer eligible")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this duration (0 means no limit)")
	cmd.MarkFlagsMutuallyExclusive("since", "id")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, st *rootState, opts indexOptions) error {
	out := output.New(cmd.OutOrStdout())

	since, err := parseSince(opts.since)
	if err != nil {
		return err
	}
	if opts.id < 0 {
		return apperrors.ValidationError(fmt.Sprintf("invalid project id %d", opts.id), nil)
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	a, err := openApp(ctx, st.cfg, st.logger, appOptions{
		index:  true,
		writer: true,
		progress: func(p finder.Progress) {
			out.Progress(p.Indexed, p.Total, "projects indexed")
		},
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.driver.Enabled() {
		out.Warning("Indexing is disabled (adapter.enabled is false); nothing to do")
		return nil
	}

	if opts.id > 0 {
		indexed, err := a.driver.IndexOne(ctx, opts.id)
		if err != nil {
			return err
		}
		if !indexed {
			out.Warningf("Extension is disabled; research project %d was not indexed", opts.id)
			return nil
		}
		out.Successf("Indexed research project %d", opts.id)
		return nil
	}

	result, err := a.driver.Run(ctx, finder.RunOptions{Since: since, Prune: !opts.noPrune})
	if err != nil {
		if result != nil && result.Indexed > 0 {
			out.Warningf("Stopped after indexing %d of %d projects", result.Indexed, result.Eligible)
		}
		return err
	}

	printRunResult(out, result)
	return nil
}

func printRunResult(out *output.Writer, result *finder.RunResult) {
	if result.Skipped {
		out.Warning("Indexing is disabled; run skipped")
		return
	}
	switch {
	case result.ExtensionDisabled:
		out.Warningf("Extension is disabled; %d projects were not indexed", result.Ignored)
	case result.Delta:
		out.Successf("Indexed %d new projects", result.Indexed)
	default:
		out.Successf("Indexed %d of %d eligible projects", result.Indexed, result.Eligible)
	}
	if result.Pruned > 0 {
		out.KeyValue("removed", result.Pruned)
	}
	out.KeyValue("duration", result.Duration.Round(time.Millisecond))
	out.KeyValue("run", result.RunID)
}

// parseSince accepts a date, a date-time or an RFC 3339 timestamp.
// Times without a zone are UTC.
func parseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperrors.ValidationError(fmt.Sprintf("invalid --since value %q", s), nil).
		WithSuggestion("Use 2006-01-02, \"2006-01-02 15:04:05\" or RFC 3339")
}
