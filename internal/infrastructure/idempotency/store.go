package idempotency

import (
	"context"
	"time"
)

// Result is a finished response kept for replay
type Result struct {
	StatusCode  int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body"`
	// Fingerprint identifies the request parameters the result belongs to
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Successful reports whether the result may be cached
func (r *Result) Successful() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Store is the request-level cache behind a Guard.
type Store interface {
	// Acquire reserves key for lockTTL. acquired is true when the caller now
	// owns the key; otherwise cached holds the finished result, or is nil
	// while another caller is still working on it.
	Acquire(ctx context.Context, key string, lockTTL time.Duration) (acquired bool, cached *Result, err error)
	// Complete stores the result of an owned key for ttl.
	Complete(ctx context.Context, key string, result *Result, ttl time.Duration) error
	// Abandon releases an owned key without storing anything.
	Abandon(ctx context.Context, key string) error
}
