package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCountCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of eligible research projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), st.cfg, st.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.adapter.GetEligibleCount(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
}
