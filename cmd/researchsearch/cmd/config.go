package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/researchsearch/internal/config"
	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
	"github.com/Aman-CERP/researchsearch/internal/output"
)

func newConfigCmd(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage project configuration",
		Long: `Manage the project configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/researchsearch/config.yaml)
  3. Project config (.researchsearch.yaml)
  4. .env in the project directory
  5. Environment variables (RESEARCHSEARCH_*)`,
	}

	cmd.AddCommand(newConfigShowCmd(st))
	cmd.AddCommand(newConfigInitCmd(st))
	cmd.AddCommand(newConfigPathCmd(st))
	cmd.AddCommand(newConfigRestoreCmd(st))

	return cmd
}

func newConfigShowCmd(st *rootState) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st.cfg)
			}
			data, err := yaml.Marshal(st.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigInitCmd(st *rootState) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .researchsearch.yaml with default settings",
		Example: `  # Create project config
  researchsearch config init

  # Replace an existing config, keeping a backup
  researchsearch config init --force`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, st.root, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration (a backup is kept)")

	return cmd
}

func newConfigPathCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			out.KeyValue("user", config.GetUserConfigPath())
			out.KeyValue("project", filepath.Join(st.root, config.ProjectConfigYAML))
			return nil
		},
	}
}

func newConfigRestoreCmd(st *rootState) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore .researchsearch.yaml from a backup",
		Long: `Restore the project configuration from a backup written by
'config init --force'. Without an argument the newest backup is used.
The current file is backed up before it is replaced.`,
		Example: `  # List backups
  researchsearch config restore --list

  # Restore the newest backup
  researchsearch config restore`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var backup string
			if len(args) == 1 {
				backup = args[0]
			}
			return runConfigRestore(cmd, st.root, backup, list)
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List available backups, newest first")

	return cmd
}

func runConfigRestore(cmd *cobra.Command, root, backup string, list bool) error {
	out := output.New(cmd.OutOrStdout())
	path := filepath.Join(root, config.ProjectConfigYAML)

	if list {
		backups, err := config.ListBackups(path)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			out.Status("", "No backups")
			return nil
		}
		for _, b := range backups {
			out.Status("💾", b)
		}
		return nil
	}

	if backup == "" {
		latest, err := config.LatestBackup(path)
		if err != nil {
			return err
		}
		if latest == "" {
			return apperrors.New(apperrors.ErrCodeConfigNotFound, "no configuration backups found", nil).
				WithDetail("path", path).
				WithSuggestion("Backups are written by 'researchsearch config init --force'")
		}
		backup = latest
	} else if !filepath.IsAbs(backup) {
		backup = filepath.Join(root, backup)
	}

	previous, err := config.RestoreFile(path, backup)
	if err != nil {
		return apperrors.ConfigError("failed to restore configuration", err).
			WithDetail("backup", backup)
	}

	out.Successf("Restored configuration from %s", filepath.Base(backup))
	if previous != "" {
		out.Statusf("💾", "Backup: %s", previous)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, root string, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := filepath.Join(root, config.ProjectConfigYAML)

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Project configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Status("💡", "Use --force to replace it with defaults")
			return nil
		}
		backupPath, err := config.BackupFile(path)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		out.Statusf("💾", "Backup: %s", backupPath)
	}

	if err := config.NewConfig().WriteYAML(path); err != nil {
		return err
	}

	out.Success("Created project configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Set source.driver and source.dsn")
	out.Status("", "  2. Run 'researchsearch migrate' for a new database")
	out.Status("", "  3. Run 'researchsearch index'")
	return nil
}
