package models

import (
	"time"

	"github.com/google/uuid"
)

type Wallet struct {
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Balance     int64     `gorm:"not null;default:0;check:chk_wallets_balance,balance >= 0"`
	HeldBalance int64     `gorm:"not null;default:0;check:chk_wallets_held,held_balance >= 0 AND held_balance <= balance"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Wallet) TableName() string {
	return "wallets"
}
