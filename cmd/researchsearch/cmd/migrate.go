package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/researchsearch/internal/output"
	"github.com/Aman-CERP/researchsearch/internal/source"
)

func newMigrateCmd(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the research projects schema",
		Long: `Apply pending schema migrations to the source database.

This creates the research projects table and the extensions table used by
host.extensions: database. Existing tables are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), st, func(m *source.Migrator) error {
				applied, err := m.Up(cmd.Context())
				if err != nil {
					return err
				}
				out := output.New(cmd.OutOrStdout())
				if len(applied) == 0 {
					out.Success("Schema is up to date")
					return nil
				}
				out.Successf("Applied %d migration(s): %v", len(applied), applied)
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), st, func(m *source.Migrator) error {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				out := output.New(cmd.OutOrStdout())
				for _, s := range statuses {
					state := "pending"
					if s.Applied {
						state = "applied"
					}
					out.KeyValue(fmt.Sprintf("v%d", s.Version), state)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), st, func(m *source.Migrator) error {
				if err := m.Down(cmd.Context()); err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Success("Rolled back one migration")
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, st *rootState, fn func(*source.Migrator) error) error {
	cfg := st.cfg
	db, err := source.Open(ctx, source.Options{Driver: cfg.Source.Driver, DSN: cfg.Source.DSN})
	if err != nil {
		return err
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	m, err := source.NewMigrator(db, cfg.Source.Driver, cfg.Source.TablePrefix)
	if err != nil {
		return err
	}
	return fn(m)
}
