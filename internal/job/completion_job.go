package job

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EventCompleter marks events whose start time is past the grace period as completed.
type EventCompleter interface {
	CompleteEndedEvents(ctx context.Context) (int, error)
}

// CompletionJob closes out events that have already taken place.
type CompletionJob struct {
	events  EventCompleter
	timeout time.Duration
	logger  *zap.Logger
}

func NewCompletionJob(events EventCompleter, timeout time.Duration, logger *zap.Logger) *CompletionJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &CompletionJob{events: events, timeout: timeout, logger: logger}
}

// Run implements cron.Job.
func (j *CompletionJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.events.CompleteEndedEvents(ctx)
	if err != nil {
		j.logger.Error("Event completion sweep failed", zap.Error(err))
		return
	}
	if n == 0 {
		j.logger.Debug("No ended events to complete")
		return
	}
	j.logger.Info("Event completion sweep completed",
		zap.Int("completed", n),
		zap.Duration("duration", time.Since(start)),
	)
}
