package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// EntryType tags what a ledger entry was for
type EntryType string

const (
	EntryTypeTip              EntryType = "tip"
	EntryTypeGift             EntryType = "gift"
	EntryTypePPVUnlock        EntryType = "ppv_unlock"
	EntryTypeMessage          EntryType = "message"
	EntryTypeStreamTip        EntryType = "stream_tip"
	EntryTypeCreatorPayout    EntryType = "creator_payout"
	EntryTypeReferralBonus    EntryType = "referral_bonus"
	EntryTypeSystemAdjustment EntryType = "system_adjustment"
	EntryTypeFreeAccess       EntryType = "free_access"
	EntryTypeHoldRelease      EntryType = "hold_release"
)

// IsTransfer reports whether the type is a two-party transfer type
func (t EntryType) IsTransfer() bool {
	switch t {
	case EntryTypeTip, EntryTypeGift, EntryTypePPVUnlock, EntryTypeMessage, EntryTypeStreamTip:
		return true
	}
	return false
}

// IsSingleSided reports whether entries of this type are exempt from conservation
func (t EntryType) IsSingleSided() bool {
	switch t {
	case EntryTypeCreatorPayout, EntryTypeReferralBonus, EntryTypeSystemAdjustment,
		EntryTypeFreeAccess, EntryTypeHoldRelease:
		return true
	}
	return false
}

// IsSystemRecordable reports whether RecordSystemEntry accepts the type
func (t EntryType) IsSystemRecordable() bool {
	switch t {
	case EntryTypeCreatorPayout, EntryTypeReferralBonus, EntryTypeSystemAdjustment:
		return true
	}
	return false
}

// EntryStatus is the lifecycle state of a ledger entry
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusReversed  EntryStatus = "reversed"
)

// LedgerEntry is one immutable single-sided balance change
type LedgerEntry struct {
	ID             uuid.UUID   `json:"id"`
	TransactionID  uuid.UUID   `json:"transactionId"`
	UserID         uuid.UUID   `json:"userId"`
	Amount         int64       `json:"amount"`
	Type           EntryType   `json:"type"`
	Status         EntryStatus `json:"status"`
	Description    string      `json:"description"`
	IdempotencyKey null.String `json:"idempotencyKey,omitempty"`
	RelatedEntryID *uuid.UUID  `json:"relatedEntryId,omitempty"`
	BalanceAfter   int64       `json:"balanceAfter"`
	Metadata       Metadata    `json:"metadata,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// IsDebit reports whether the entry removes coins
func (e *LedgerEntry) IsDebit() bool {
	return e.Amount < 0
}

// Committed reports whether the entry affects the wallet balance
func (e *LedgerEntry) Committed() bool {
	return e.Status != EntryStatusPending
}
