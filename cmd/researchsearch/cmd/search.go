package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
	"github.com/Aman-CERP/researchsearch/internal/output"
	"github.com/Aman-CERP/researchsearch/internal/store"
)

type searchOptions struct {
	limit  int
	format string
}

func newSearchCmd(st *rootState) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the research projects index",
		Example: `  researchsearch search vaccine trial
  researchsearch search -n 3 --format json soil`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, st, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, st *rootState, query string, opts searchOptions) error {
	if opts.limit <= 0 {
		return apperrors.ValidationError(fmt.Sprintf("invalid limit %d", opts.limit), nil)
	}
	if opts.format != "text" && opts.format != "json" {
		return apperrors.ValidationError(fmt.Sprintf("invalid format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json")
	}

	cfg := st.cfg
	backend := store.DetectBackend(cfg.Index.Dir)
	if backend == "" {
		return apperrors.New(apperrors.ErrCodeIndexSearch, "no search index found", nil).
			WithDetail("dir", cfg.Index.Dir).
			WithSuggestion("Run 'researchsearch index' first")
	}

	idx, err := store.OpenIndex(cfg.Index.Dir, string(backend))
	if err != nil {
		return apperrors.New(apperrors.ErrCodeIndexCorrupt, "failed to open search index", err)
	}
	defer idx.Close()

	results, err := idx.Search(cmd.Context(), query, opts.limit)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(results)
	}

	out := output.New(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Statusf("🔍", "No projects match %q", query)
		return nil
	}
	out.Header(fmt.Sprintf("%d result(s) for %q", len(results), query))
	for i, r := range results {
		out.Statusf(fmt.Sprintf("%2d.", i+1), "%s  %s", r.Title, r.URL)
		out.Status("", truncate(r.Summary, 120))
	}
	return nil
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
