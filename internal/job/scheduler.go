package job

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs background jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger}),
			cron.SkipIfStillRunning(cronLogger{logger}),
		)),
		logger: logger,
	}
}

// Add registers job on schedule (standard 5-field cron or descriptors such as "@every 5m").
func (s *Scheduler) Add(name, schedule string, job cron.Job) error {
	if _, err := s.cron.AddJob(schedule, job); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, schedule, err)
	}
	s.logger.Info("Scheduled background job", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and returns a context that is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
