package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LedgerEntry rows are insert-only.
type LedgerEntry struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TransactionID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_ledger_user_created,priority:1"`
	Amount         int64      `gorm:"not null"`
	Type           string     `gorm:"type:varchar(32);not null;index"`
	Status         string     `gorm:"type:varchar(16);not null;index"`
	Description    string     `gorm:"type:text"`
	IdempotencyKey *string    `gorm:"type:varchar(255);uniqueIndex:uniq_ledger_idempotency_key"`
	RelatedEntryID *uuid.UUID `gorm:"type:uuid;index"`
	BalanceAfter   int64      `gorm:"not null"`
	Metadata       datatypes.JSON
	CreatedAt      time.Time `gorm:"not null;index:idx_ledger_user_created,priority:2"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
