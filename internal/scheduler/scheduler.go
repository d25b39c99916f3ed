// Package scheduler runs the index job on a cron schedule.
//
// The job runs in singleton mode: a tick that arrives while a run is still in
// progress is rescheduled, so two runs never overlap.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
)

// TaskFunc is the function signature for the scheduled job.
type TaskFunc func(ctx context.Context) error

// Config describes the scheduled job.
type Config struct {
	Name       string
	Cron       string // standard five-field expression, "0 */6 * * *"
	RunOnStart bool
}

// TaskInfo reports the job's state.
type TaskInfo struct {
	Name      string     `json:"name"`
	Cron      string     `json:"cron"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	Running   bool       `json:"running"`
	Runs      int        `json:"runs"`
}

// Scheduler owns a gocron scheduler with a single index job.
type Scheduler struct {
	gocron gocron.Scheduler
	job    gocron.Job
	config Config
	task   TaskFunc
	logger *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	lastRun *time.Time
	lastErr error
	running bool
	runs    int
}

// New creates a scheduler for task. The cron expression is validated here.
func New(cfg Config, task TaskFunc, logger *slog.Logger) (*Scheduler, error) {
	if task == nil {
		return nil, apperrors.ValidationError("scheduled task is required", nil)
	}
	if cfg.Name == "" {
		cfg.Name = "reindex"
	}
	if logger == nil {
		logger = slog.Default()
	}

	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	s := &Scheduler{
		gocron: gs,
		config: cfg,
		task:   task,
		logger: logger.With(slog.String("component", "scheduler")),
		ctx:    context.Background(),
	}

	opts := []gocron.JobOption{
		gocron.WithName(cfg.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if cfg.RunOnStart {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	job, err := gs.NewJob(gocron.CronJob(cfg.Cron, false), gocron.NewTask(s.execute), opts...)
	if err != nil {
		_ = gs.Shutdown()
		return nil, apperrors.ConfigError(fmt.Sprintf("invalid schedule %q", cfg.Cron), err).
			WithSuggestion("Use a five-field cron expression such as \"0 */6 * * *\"")
	}
	s.job = job

	return s, nil
}

// Start begins scheduling. Runs receive ctx and stop being scheduled after Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info("scheduler_started",
		slog.String("job", s.config.Name),
		slog.String("cron", s.config.Cron),
		slog.Bool("run_on_start", s.config.RunOnStart))
	s.gocron.Start()
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (s *Scheduler) Stop() error {
	s.logger.Info("scheduler_stopping")
	if err := s.gocron.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}

// RunNow triggers the job immediately, subject to singleton mode.
func (s *Scheduler) RunNow() error {
	if err := s.job.RunNow(); err != nil {
		return fmt.Errorf("failed to trigger %q: %w", s.config.Name, err)
	}
	return nil
}

// Info returns the job's current state.
func (s *Scheduler) Info() TaskInfo {
	s.mu.Lock()
	info := TaskInfo{
		Name:    s.config.Name,
		Cron:    s.config.Cron,
		LastRun: s.lastRun,
		Running: s.running,
		Runs:    s.runs,
	}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	s.mu.Unlock()

	if next, err := s.job.NextRun(); err == nil && !next.IsZero() {
		info.NextRun = &next
	}
	return info
}

func (s *Scheduler) execute() {
	s.mu.Lock()
	ctx := s.ctx
	s.running = true
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info("scheduled_run_started", slog.String("job", s.config.Name))

	err := s.task(ctx)

	s.mu.Lock()
	s.running = false
	s.lastRun = &start
	s.lastErr = err
	s.runs++
	s.mu.Unlock()

	if err != nil {
		attrs := append([]any{slog.String("job", s.config.Name), slog.Duration("duration", time.Since(start))},
			apperrors.LogAttrs(err)...)
		s.logger.Error("scheduled_run_failed", attrs...)
		return
	}
	s.logger.Info("scheduled_run_completed",
		slog.String("job", s.config.Name),
		slog.Duration("duration", time.Since(start)))
}
