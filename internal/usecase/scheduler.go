package usecase

import (
	"context"
	"log/slog"
	"time"

	"LookTrainer/internal/ports"
)

// Scheduler wires the interval driver with rule compilation so the exported
// artifact stays fresh without a request.
type Scheduler struct {
	driver   ports.Scheduler
	compiler *RuleCompiler
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring exports.
func NewScheduler(driver ports.Scheduler, compiler *RuleCompiler, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, compiler: compiler, logger: logger}
}

// Start registers the compiler with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.compiler == nil {
		return nil
	}

	job := func(trigger time.Time) {
		ruleset, err := s.compiler.Compile(ctx)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("scheduled compile failed", "trigger", trigger, "error", err)
			}
			return
		}
		if s.logger != nil {
			s.logger.Info("rules exported", "version", ruleset.Version, "learned", len(ruleset.LearnedPatterns))
		}
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
