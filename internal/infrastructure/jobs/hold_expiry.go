package jobs

import (
	"context"
	"errors"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/pkg/logger"
	"coin-ledger.backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHoldExpiryInterval = 30 * time.Second
	defaultHoldExpiryBatch    = 100
	holdExpiredReason         = "expired"
)

type expiredHoldLister interface {
	ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]*entities.LedgerEntry, error)
}

type holdReleaser interface {
	ReleaseHold(ctx context.Context, holdID uuid.UUID, reason string) (*entities.Hold, error)
	HoldTTL() time.Duration
}

// HoldExpiryJob releases holds that were neither captured nor released in time
type HoldExpiryJob struct {
	repo     expiredHoldLister
	engine   holdReleaser
	interval time.Duration
	batch    int
	now      func() time.Time
	stop     chan struct{}
}

func NewHoldExpiryJob(repo expiredHoldLister, engine holdReleaser, interval time.Duration, batch int) *HoldExpiryJob {
	if interval <= 0 {
		interval = defaultHoldExpiryInterval
	}
	if batch <= 0 {
		batch = defaultHoldExpiryBatch
	}
	return &HoldExpiryJob{
		repo:     repo,
		engine:   engine,
		interval: interval,
		batch:    batch,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

func (j *HoldExpiryJob) Start(ctx context.Context) {
	logger.Info(ctx, "Starting hold expiry job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Hold expiry job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Hold expiry job stopped")
			return
		case <-ticker.C:
			j.processExpiredHolds(ctx)
		}
	}
}

func (j *HoldExpiryJob) Stop() {
	close(j.stop)
}

func (j *HoldExpiryJob) processExpiredHolds(ctx context.Context) int {
	cutoff := j.now().Add(-j.engine.HoldTTL())
	expired, err := j.repo.ListExpiredHolds(ctx, cutoff, j.batch)
	if err != nil {
		logger.Error(ctx, "Error fetching expired holds", zap.Error(err))
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	released := 0
	for _, entry := range expired {
		if _, err := j.engine.ReleaseHold(ctx, entry.ID, holdExpiredReason); err != nil {
			// captured between listing and release
			if errors.Is(err, domainerrors.ErrAlreadySettled) {
				continue
			}
			logger.Error(ctx, "Error releasing expired hold",
				zap.String("hold_id", entry.ID.String()),
				zap.Error(err),
			)
			continue
		}
		released++
	}

	metrics.RecordHoldsExpired(released)
	logger.Info(ctx, "Released expired holds", zap.Int("count", released), zap.Int("found", len(expired)))
	return released
}
