package repositories

import (
	"context"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	"github.com/google/uuid"
)

// LedgerRepository is the append-only transaction log. There is no update or delete.
type LedgerRepository interface {
	Append(ctx context.Context, entry *entities.LedgerEntry) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entities.LedgerEntry, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*entities.LedgerEntry, error)
	FindByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*entities.LedgerEntry, error)
	FindRelated(ctx context.Context, entryID uuid.UUID) ([]*entities.LedgerEntry, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.LedgerEntry, int64, error)
	SumCommitted(ctx context.Context, userID uuid.UUID) (int64, error)
	SumOpenHolds(ctx context.Context, userID uuid.UUID) (int64, error)
	ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]*entities.LedgerEntry, error)
}
