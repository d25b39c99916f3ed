// Package cmd provides the CLI commands for researchsearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/researchsearch/internal/config"
	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
	"github.com/Aman-CERP/researchsearch/internal/logging"
	"github.com/Aman-CERP/researchsearch/pkg/version"
)

// rootState is shared by every subcommand of one root command.
type rootState struct {
	projectDir string
	debug      bool

	root    string
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// NewRootCmd creates the root command for the researchsearch CLI.
func NewRootCmd() *cobra.Command {
	st := &rootState{}

	cmd := &cobra.Command{
		Use:   "researchsearch",
		Short: "Index research projects into a local search index",
		Long: `researchsearch reads published research projects from the site database
and keeps a full-text search index of them up to date.

Projects are indexed one page at a time; every item carries the route
/research/projects/<id>-<alias> and a summary of title and content.`,
		Version:           version.Short(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: st.setup,
		PersistentPostRun: func(*cobra.Command, []string) { st.close() },
	}

	cmd.SetVersionTemplate("researchsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&st.projectDir, "dir", "C", ".", "Project directory holding .researchsearch.yaml")
	cmd.PersistentFlags().BoolVar(&st.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newIndexCmd(st))
	cmd.AddCommand(newCountCmd(st))
	cmd.AddCommand(newItemsCmd(st))
	cmd.AddCommand(newSearchCmd(st))
	cmd.AddCommand(newMigrateCmd(st))
	cmd.AddCommand(newWatchCmd(st))
	cmd.AddCommand(newScheduleCmd(st))
	cmd.AddCommand(newConfigCmd(st))
	cmd.AddCommand(newDoctorCmd(st))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

const annotationSkipConfig = "skip_config"

// setup loads configuration and installs the logger.
func (st *rootState) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	root, err := config.FindProjectRoot(st.projectDir)
	if err != nil {
		return err
	}
	st.root = root

	// Commands that repair the project file must run while it is invalid.
	if cmd.Annotations[annotationSkipConfig] == "true" {
		return nil
	}

	cfg, err := config.Load(root)
	if err != nil {
		return apperrors.ConfigError("failed to load configuration", err).
			WithDetail("dir", root).
			WithSuggestion("Fix .researchsearch.yaml or run 'researchsearch config restore'")
	}
	st.cfg = cfg

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxBackups:    cfg.Logging.MaxBackups,
		MaxAgeDays:    cfg.Logging.MaxAgeDays,
		Compress:      cfg.Logging.Compress,
		WriteToStderr: cfg.Logging.Stderr,
	}
	if st.debug {
		logCfg.Level = "debug"
		if logCfg.FilePath == "" {
			logCfg.FilePath = logging.DefaultLogPath()
		}
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	st.logger = logger
	st.cleanup = cleanup
	slog.SetDefault(logger)

	logger.Debug("config_loaded",
		slog.String("root", root),
		slog.String("driver", cfg.Source.Driver),
		slog.String("index_backend", cfg.Index.Backend),
		slog.String("version", version.Short()))
	return nil
}

func (st *rootState) close() {
	if st.cleanup != nil {
		st.cleanup()
		st.cleanup = nil
	}
}

// Execute runs the root command and prints any error.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, apperrors.FormatForCLI(err))
	}
	return err
}
