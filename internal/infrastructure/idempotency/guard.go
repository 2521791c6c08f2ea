package idempotency

import (
	"context"
	"time"

	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/pkg/logger"
	"coin-ledger.backend/pkg/metrics"
	"go.uber.org/zap"
)

// Options tunes a Guard
type Options struct {
	// TTL is how long a successful result is replayed
	TTL time.Duration
	// LockTTL bounds how long a crashed caller can block a key
	LockTTL time.Duration
	// Wait is how long a concurrent caller polls for the first result
	Wait time.Duration
	// PollInterval is the delay between polls
	PollInterval time.Duration
}

// Request identifies one guarded call
type Request struct {
	Key         string
	Fingerprint string
}

// Guard replays finished results for a key and keeps concurrent duplicates
// from executing twice. It is a cache: the ledger's unique key is what makes
// money movement exactly-once.
type Guard struct {
	store Store
	opts  Options
}

// NewGuard creates a guard over store, filling unset options with defaults
func NewGuard(store Store, opts Options) *Guard {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	return &Guard{store: store, opts: opts}
}

// Execute runs fn at most once per key within the TTL
func (g *Guard) Execute(ctx context.Context, key string, fn func(ctx context.Context) (*Result, error)) (*Result, bool, error) {
	return g.ExecuteRequest(ctx, Request{Key: key}, fn)
}

// ExecuteRequest runs fn unless a result for req.Key is cached, in which case
// the cached result is returned with replayed set. A cached result recorded
// for a different fingerprint fails with ErrIdempotencyReused. Only
// successful results are cached; anything else frees the key for a retry.
func (g *Guard) ExecuteRequest(ctx context.Context, req Request, fn func(ctx context.Context) (*Result, error)) (*Result, bool, error) {
	deadline := time.Now().Add(g.opts.Wait)
	for {
		acquired, cached, err := g.store.Acquire(ctx, req.Key, g.opts.LockTTL)
		if err != nil {
			// the ledger tier still protects the write
			logger.Warn(ctx, "Idempotency store unavailable, executing without cache",
				zap.String("key", req.Key), zap.Error(err))
			res, fnErr := fn(ctx)
			return res, false, fnErr
		}

		if cached != nil {
			if req.Fingerprint != "" && cached.Fingerprint != "" && cached.Fingerprint != req.Fingerprint {
				return nil, false, domainerrors.ErrIdempotencyReused
			}
			metrics.RecordIdempotencyHit("cache")
			return cached, true, nil
		}

		if acquired {
			return g.run(ctx, req, fn)
		}

		if !time.Now().Before(deadline) {
			return nil, false, domainerrors.ErrRequestInFlight
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(g.opts.PollInterval):
		}
	}
}

func (g *Guard) run(ctx context.Context, req Request, fn func(ctx context.Context) (*Result, error)) (*Result, bool, error) {
	// the store has to be updated even if the caller went away
	storeCtx := context.WithoutCancel(ctx)

	res, err := fn(ctx)
	if err != nil || !res.Successful() {
		if abandonErr := g.store.Abandon(storeCtx, req.Key); abandonErr != nil {
			logger.Warn(ctx, "Failed to release idempotency key", zap.String("key", req.Key), zap.Error(abandonErr))
		}
		return res, false, err
	}

	res.Fingerprint = req.Fingerprint
	if err := g.store.Complete(storeCtx, req.Key, res, g.opts.TTL); err != nil {
		logger.Warn(ctx, "Failed to cache idempotent result", zap.String("key", req.Key), zap.Error(err))
	}
	return res, false, nil
}
