package repositories

import (
	"context"

	"coin-ledger.backend/internal/domain/entities"
	"github.com/google/uuid"
)

// WalletRepository owns every balance mutation. Mutating methods only work
// inside a UnitOfWork scope and return the wallet as it is after the change.
type WalletRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.Wallet, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	GetAvailableBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	EnsureWallet(ctx context.Context, userID uuid.UUID) error
	LockWallets(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]*entities.Wallet, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error)
	Hold(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error)
	ReleaseHold(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error)
	CaptureHold(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error)
}
