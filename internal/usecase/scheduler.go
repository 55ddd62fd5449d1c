package usecase

import (
	"context"
	"time"

	"filingscout/internal/ports"
)

// Scheduler wires the cron-like driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	opts     RunOptions
}

// NewScheduler returns a helper to start/stop recurring cycles.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, opts RunOptions) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, opts: opts}
}

// Start registers the pipeline with the provided scheduler. Cycles run to
// completion before the next trigger fires; the report is handled inside
// Run's logging since there is no caller to return it to.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(_ time.Time) {
		_, _ = s.pipeline.Run(ctx, s.opts)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
