package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/researchsearch/internal/finder"
	"github.com/Aman-CERP/researchsearch/internal/output"
	"github.com/Aman-CERP/researchsearch/internal/scheduler"
)

func newScheduleCmd(st *rootState) *cobra.Command {
	var cron string
	var noPrune bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Reindex on a cron schedule",
		Long: `Run a full reindex on the configured cron schedule (schedule.cron) until
interrupted. A run that is still going when the next tick arrives delays
that tick.`,
		Example: `  # Every night at 03:00
  researchsearch schedule --cron "0 3 * * *"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if cron == "" {
				cron = st.cfg.Schedule.Cron
			}
			return runSchedule(ctx, cmd, st, cron, !noPrune)
		},
	}

	cmd.Flags().StringVar(&cron, "cron", "", "Cron expression overriding schedule.cron")
	cmd.Flags().BoolVar(&noPrune, "no-prune", false, "Keep indexed projects that are no longer eligible")

	return cmd
}

func runSchedule(ctx context.Context, cmd *cobra.Command, st *rootState, cron string, prune bool) error {
	a, err := openApp(ctx, st.cfg, st.logger, appOptions{index: true, writer: true})
	if err != nil {
		return err
	}
	defer a.Close()

	out := output.New(cmd.OutOrStdout())
	s, err := scheduler.New(scheduler.Config{
		Name:       "reindex",
		Cron:       cron,
		RunOnStart: st.cfg.Schedule.RunOnStart,
	}, func(ctx context.Context) error {
		result, err := a.driver.Run(ctx, finder.RunOptions{Prune: prune})
		if err != nil {
			out.Errorf("Scheduled reindex failed: %v", err)
			return err
		}
		printRunResult(out, result)
		return nil
	}, st.logger)
	if err != nil {
		return err
	}

	s.Start(ctx)
	out.Statusf("⏰", "Reindexing on %q (Ctrl+C to stop)", cron)
	if info := s.Info(); info.NextRun != nil {
		out.KeyValue("next run", info.NextRun.Format("2006-01-02 15:04:05"))
	}

	<-ctx.Done()
	return s.Stop()
}
