package entities

import (
	"time"

	"github.com/google/uuid"
)

// TransferInput describes a two-party coin movement
type TransferInput struct {
	SenderID       uuid.UUID
	ReceiverID     uuid.UUID
	Amount         int64
	Type           EntryType
	Description    string
	IdempotencyKey string
	Metadata       Metadata
}

// TransferRecord is the outcome of a committed (or replayed) transfer
type TransferRecord struct {
	TransactionID      uuid.UUID `json:"transactionId"`
	DebitEntryID       uuid.UUID `json:"debitEntryId"`
	CreditEntryID      uuid.UUID `json:"creditEntryId"`
	SenderID           uuid.UUID `json:"senderId"`
	ReceiverID         uuid.UUID `json:"receiverId"`
	Amount             int64     `json:"amount"`
	Type               EntryType `json:"type"`
	Metadata           Metadata  `json:"metadata,omitempty"`
	NewSenderBalance   int64     `json:"newSenderBalance"`
	NewReceiverBalance int64     `json:"-"`
	Replayed           bool      `json:"replayed"`
	CreatedAt          time.Time `json:"createdAt"`
}

// SystemEntryInput describes a single-sided entry such as a referral bonus or payout
type SystemEntryInput struct {
	UserID         uuid.UUID
	Amount         int64
	Type           EntryType
	Description    string
	IdempotencyKey string
	Metadata       Metadata
}

// SystemEntryRecord is the outcome of RecordSystemEntry
type SystemEntryRecord struct {
	TransactionID uuid.UUID `json:"transactionId"`
	UserID        uuid.UUID `json:"userId"`
	Amount        int64     `json:"amount"`
	Type          EntryType `json:"type"`
	NewBalance    int64     `json:"newBalance"`
	Replayed      bool      `json:"replayed"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PurchaseInput asks to unlock an asset for a buyer
type PurchaseInput struct {
	BuyerID        uuid.UUID
	AssetID        uuid.UUID
	IdempotencyKey string
}

// PurchaseResult is the access grant plus the payment, if any
type PurchaseResult struct {
	AssetID       uuid.UUID       `json:"assetId"`
	BuyerID       uuid.UUID       `json:"buyerId"`
	FreeAccess    bool            `json:"freeAccess"`
	TransactionID uuid.UUID       `json:"transactionId"`
	Transfer      *TransferRecord `json:"transfer,omitempty"`
	NewBalance    int64           `json:"newBalance"`
	Replayed      bool            `json:"replayed"`
}

// HoldInput reserves part of a balance without moving it
type HoldInput struct {
	UserID         uuid.UUID
	Amount         int64
	Type           EntryType
	Purpose        string
	IdempotencyKey string
}

// Hold is an open or settled reservation
type Hold struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"userId"`
	Amount    int64       `json:"amount"`
	Type      EntryType   `json:"type"`
	Status    EntryStatus `json:"status"`
	Purpose   string      `json:"purpose,omitempty"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Replayed  bool        `json:"replayed"`
	CreatedAt time.Time   `json:"createdAt"`
}

// CaptureInput settles a hold by paying it to a receiver
type CaptureInput struct {
	HoldID      uuid.UUID
	ActorID     uuid.UUID
	ReceiverID  uuid.UUID
	Type        EntryType
	Description string
	Metadata    Metadata
}

// ReverseInput asks for the inverse of a committed transaction
type ReverseInput struct {
	EntryID uuid.UUID
	Reason  string
	ActorID uuid.UUID
}

// ReversalRecord describes the inverse entries written for a transaction
type ReversalRecord struct {
	TransactionID         uuid.UUID      `json:"transactionId"`
	OriginalTransactionID uuid.UUID      `json:"originalTransactionId"`
	Entries               []*LedgerEntry `json:"entries"`
	Replayed              bool           `json:"replayed"`
}

// SettlementKey is the ledger idempotency key shared by capture and release of a hold
func SettlementKey(holdID uuid.UUID) string {
	return "hold:" + holdID.String() + ":settle"
}

// ReversalKey makes reversal of a transaction at-most-once
func ReversalKey(transactionID uuid.UUID) string {
	return "reversal:" + transactionID.String()
}

// ScopedIdempotencyKey namespaces a client supplied key by the authenticated user
func ScopedIdempotencyKey(userID uuid.UUID, key string) string {
	return userID.String() + ":" + key
}
