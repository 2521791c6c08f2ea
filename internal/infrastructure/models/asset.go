package models

import (
	"time"

	"github.com/google/uuid"
)

type Asset struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatorID uuid.UUID `gorm:"type:uuid;not null;index"`
	Kind      string    `gorm:"type:varchar(20);not null"`
	Title     string    `gorm:"type:varchar(255)"`
	Price     int64     `gorm:"not null;default:0;check:chk_assets_price,price >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Asset) TableName() string {
	return "assets"
}

type AssetUnlock struct {
	AssetID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt     time.Time
}

func (AssetUnlock) TableName() string {
	return "asset_unlocks"
}
