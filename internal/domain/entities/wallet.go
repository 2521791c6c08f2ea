package entities

import (
	"time"

	"github.com/google/uuid"
)

// Wallet represents a user's coin balance
type Wallet struct {
	UserID      uuid.UUID `json:"userId"`
	Balance     int64     `json:"balance"`
	HeldBalance int64     `json:"heldBalance"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Available is the spendable part of the balance. Every spending check uses it.
func (w *Wallet) Available() int64 {
	if w == nil {
		return 0
	}
	return w.Balance - w.HeldBalance
}

// WalletView is the balance summary returned to clients
type WalletView struct {
	UserID      uuid.UUID `json:"userId"`
	Balance     int64     `json:"balance"`
	HeldBalance int64     `json:"heldBalance"`
	Available   int64     `json:"available"`
}

// WalletVerification compares a wallet row against its ledger history
type WalletVerification struct {
	UserID          uuid.UUID `json:"userId"`
	StoredBalance   int64     `json:"storedBalance"`
	LedgerBalance   int64     `json:"ledgerBalance"`
	StoredHeld      int64     `json:"storedHeld"`
	OpenHoldsAmount int64     `json:"openHoldsAmount"`
	Consistent      bool      `json:"consistent"`
}
