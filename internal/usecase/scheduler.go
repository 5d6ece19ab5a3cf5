package usecase

import (
	"context"
	"io"
	"log/slog"
	"time"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/ports"
)

// Runner executes one pipeline run; *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, seed string, cfg RunConfig) (domain.PipelineRun, error)
}

// Scheduler re-runs a fixed set of seed queries on every trigger of the
// driver.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline Runner
	seeds    []string
	config   func() RunConfig
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs. config is
// consulted on every trigger so reloaded settings apply to the next run.
func NewScheduler(driver ports.Scheduler, pipeline Runner, seeds []string, config func() RunConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{driver: driver, pipeline: pipeline, seeds: seeds, config: config, logger: logger}
}

// Start registers the seed runs with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil || len(s.seeds) == 0 {
		return nil
	}

	job := func(trigger time.Time) {
		s.RunOnce(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// RunOnce runs every seed query sequentially. A failing seed is logged and
// does not prevent the others.
func (s *Scheduler) RunOnce(ctx context.Context, trigger time.Time) {
	cfg := DefaultRunConfig()
	if s.config != nil {
		cfg = s.config()
	}
	for _, seed := range s.seeds {
		if ctx.Err() != nil {
			return
		}
		run, err := s.pipeline.Run(ctx, seed, cfg)
		if err != nil {
			s.logger.Error("scheduled run failed", "seed", seed, "trigger", trigger, "error", err)
			continue
		}
		s.logger.Info("scheduled run done", "seed", seed, "run", run.ID, "stop_reason", run.StopReason)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
