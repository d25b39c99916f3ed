package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
	"github.com/Aman-CERP/researchsearch/internal/preflight"
)

func newDoctorCmd(st *rootState) *cobra.Command {
	var verbose, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the source database and index are ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checker := preflight.New(
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithVerbose(verbose),
			)
			results := checker.RunAll(cmd.Context(), st.cfg)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return apperrors.InternalError("system check failed", nil).
					WithSuggestion("Fix the failed checks above and run 'researchsearch doctor' again")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}
