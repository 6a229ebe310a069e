package usecase

import (
	"context"
	"log/slog"
	"time"

	"ThreatScanner/internal/ports"
	"ThreatScanner/pkg/logger"
)

// FeedbackRunner applies pending analyst feedback.
type FeedbackRunner interface {
	Run(ctx context.Context) (int, error)
}

// ModelRefresher reloads the stored model when another process replaced it.
type ModelRefresher interface {
	Refresh(ctx context.Context) (bool, error)
}

// Scheduler wires the cron driver with the pipeline use case. Each tick picks
// up a model stored by another command, folds pending feedback into it, then
// runs a collection pass.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	model    ModelRefresher
	feedback FeedbackRunner
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs. model and
// feedback may be nil.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, model ModelRefresher, feedback FeedbackRunner, log *slog.Logger) *Scheduler {
	return &Scheduler{
		driver:   driver,
		pipeline: pipeline,
		model:    model,
		feedback: feedback,
		logger:   logger.Component(log, "scheduler"),
	}
}

// Tick runs one scheduled pass.
func (s *Scheduler) Tick(ctx context.Context, trigger time.Time) {
	if s.model != nil {
		if _, err := s.model.Refresh(ctx); err != nil {
			s.logger.Warn("model refresh failed, keeping current model", "trigger", trigger, "error", err)
		}
	}

	if s.feedback != nil {
		applied, err := s.feedback.Run(ctx)
		if err != nil {
			s.logger.Error("feedback retraining failed", "trigger", trigger, "error", err)
		} else if applied > 0 {
			s.logger.Info("feedback applied", "records", applied)
		}
	}

	if s.pipeline == nil {
		return
	}
	if _, err := s.pipeline.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
	}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.Tick(ctx, trigger)
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
