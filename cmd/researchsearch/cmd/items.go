package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newItemsCmd(st *rootState) *cobra.Command {
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "items",
		Short: "Print one page of indexable items as JSON",
		Long: `Print the items the indexer would produce for one page of eligible
projects, without writing to the index. An offset past the end prints [].`,
		Example: `  researchsearch items --offset 20 --limit 10`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), st.cfg, st.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.adapter.GetItems(cmd.Context(), offset, limit, nil)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(items)
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Number of eligible projects to skip")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of projects to print")

	return cmd
}
