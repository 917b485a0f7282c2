package job

import (
	"context"
	"time"

	"go.uber.org/zap"

	clockport "github.com/matchi-app/matchi-api/internal/ports/out/clock"
	"github.com/matchi-app/matchi-api/internal/ports/out/idempotency"
)

type IdempotencyPurgeJob struct {
	store  idempotency.Purger
	clk    clockport.Clock
	logger *zap.Logger
}

func NewIdempotencyPurgeJob(store idempotency.Purger, clk clockport.Clock, logger *zap.Logger) *IdempotencyPurgeJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyPurgeJob{store: store, clk: clk, logger: logger}
}

func (j *IdempotencyPurgeJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := j.store.Purge(ctx, j.clk.Now())
	if err != nil {
		j.logger.Error("Idempotency purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("Purged expired idempotency records", zap.Int64("deleted", n))
	}
}
