package repositories

import (
	"context"
	"errors"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/infrastructure/models"
	"coin-ledger.backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssetRepository implements asset and access grant operations
type AssetRepository struct {
	db *gorm.DB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create creates a new asset
func (r *AssetRepository) Create(ctx context.Context, asset *entities.Asset) error {
	if asset.ID == uuid.Nil {
		asset.ID = utils.GenerateUUIDv7()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	m := &models.Asset{
		ID:        asset.ID,
		CreatorID: asset.CreatorID,
		Kind:      string(asset.Kind),
		Title:     asset.Title,
		Price:     asset.Price,
		CreatedAt: asset.CreatedAt,
		UpdatedAt: asset.CreatedAt,
	}
	return GetDB(ctx, r.db).Create(m).Error
}

// GetByID gets an asset by ID
func (r *AssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Asset, error) {
	var m models.Asset
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.Asset{
		ID:        m.ID,
		CreatorID: m.CreatorID,
		Kind:      entities.AssetKind(m.Kind),
		Title:     m.Title,
		Price:     m.Price,
		CreatedAt: m.CreatedAt,
	}, nil
}

// GrantAccess records an unlock. Granting twice fails with ErrAlreadyExists.
func (r *AssetRepository) GrantAccess(ctx context.Context, unlock *entities.AssetUnlock) error {
	if unlock.CreatedAt.IsZero() {
		unlock.CreatedAt = time.Now()
	}
	m := &models.AssetUnlock{
		AssetID:       unlock.AssetID,
		UserID:        unlock.UserID,
		TransactionID: unlock.TransactionID,
		CreatedAt:     unlock.CreatedAt,
	}
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetUnlock gets the access grant of a user for an asset
func (r *AssetRepository) GetUnlock(ctx context.Context, assetID, userID uuid.UUID) (*entities.AssetUnlock, error) {
	var m models.AssetUnlock
	if err := GetDB(ctx, r.db).Where("asset_id = ? AND user_id = ?", assetID, userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.AssetUnlock{
		AssetID:       m.AssetID,
		UserID:        m.UserID,
		TransactionID: m.TransactionID,
		CreatedAt:     m.CreatedAt,
	}, nil
}
