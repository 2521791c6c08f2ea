package jobs

import (
	"context"
	"time"

	"coin-ledger.backend/pkg/logger"
	"go.uber.org/zap"
)

const defaultSweepInterval = time.Minute

type sweeper interface {
	Sweep(ctx context.Context) int
}

// IdempotencySweepJob drops expired keys from an in-process idempotency store
type IdempotencySweepJob struct {
	store    sweeper
	interval time.Duration
	stop     chan struct{}
}

func NewIdempotencySweepJob(store sweeper, interval time.Duration) *IdempotencySweepJob {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &IdempotencySweepJob{
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (j *IdempotencySweepJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
			if removed := j.store.Sweep(ctx); removed > 0 {
				logger.Debug(ctx, "Swept idempotency keys", zap.Int("removed", removed))
			}
		}
	}
}

func (j *IdempotencySweepJob) Stop() {
	close(j.stop)
}
