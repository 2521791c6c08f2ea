package repositories

import (
	"context"

	"coin-ledger.backend/internal/domain/entities"
	"github.com/google/uuid"
)

// AssetRepository defines purchasable asset and access grant operations
type AssetRepository interface {
	Create(ctx context.Context, asset *entities.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Asset, error)
	GrantAccess(ctx context.Context, unlock *entities.AssetUnlock) error
	GetUnlock(ctx context.Context, assetID, userID uuid.UUID) (*entities.AssetUnlock, error)
}
