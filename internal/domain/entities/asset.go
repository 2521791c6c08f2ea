package entities

import (
	"time"

	"github.com/google/uuid"
)

// AssetKind represents what a purchasable asset is
type AssetKind string

const (
	AssetKindPost    AssetKind = "post"
	AssetKindMedia   AssetKind = "media"
	AssetKindMessage AssetKind = "message"
)

// Asset is pay-per-view content owned by a creator
type Asset struct {
	ID        uuid.UUID `json:"id"`
	CreatorID uuid.UUID `json:"creatorId"`
	Kind      AssetKind `json:"kind"`
	Title     string    `json:"title"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsFreeFor reports whether buyer gets access without paying
func (a *Asset) IsFreeFor(buyerID uuid.UUID) bool {
	return a.Price == 0 || a.CreatorID == buyerID
}

// AssetUnlock records that a user has access to an asset
type AssetUnlock struct {
	AssetID       uuid.UUID `json:"assetId"`
	UserID        uuid.UUID `json:"userId"`
	TransactionID uuid.UUID `json:"transactionId"`
	CreatedAt     time.Time `json:"createdAt"`
}
