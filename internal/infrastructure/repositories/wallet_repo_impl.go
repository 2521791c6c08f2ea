package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/infrastructure/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepository implements balance storage on top of GORM
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByUserID gets a wallet by its owner
func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.Wallet, error) {
	var m models.Wallet
	if err := GetDB(ctx, r.db).Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toWalletEntity(&m), nil
}

// GetBalance returns the total balance. A user without a wallet row has zero coins.
func (r *WalletRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	w, err := r.GetByUserID(ctx, userID)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// GetAvailableBalance returns balance minus held balance
func (r *WalletRepository) GetAvailableBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	w, err := r.GetByUserID(ctx, userID)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return w.Available(), nil
}

// EnsureWallet creates a zero wallet if none exists. Concurrent callers never
// fail and never create duplicates.
func (r *WalletRepository) EnsureWallet(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()
	m := &models.Wallet{UserID: userID, CreatedAt: now, UpdatedAt: now}
	err := GetDB(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(m).Error
	if err != nil {
		return fmt.Errorf("failed to ensure wallet: %w", err)
	}
	return nil
}

// LockWallets takes row locks on the existing wallets of the given users, one
// row at a time in ascending user id order. Users without a wallet are absent
// from the result.
func (r *WalletRepository) LockWallets(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]*entities.Wallet, error) {
	tx, ok := txFromContext(ctx)
	if !ok {
		return nil, domainerrors.ErrNoTransaction
	}

	ids := sortedUnique(userIDs)
	locked := make(map[uuid.UUID]*entities.Wallet, len(ids))
	for _, id := range ids {
		var m models.Wallet
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", id).Take(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock wallet %s: %w", id, err)
		}
		locked[id] = toWalletEntity(&m)
	}
	return locked, nil
}

// Debit removes amount from the balance if the available balance covers it
func (r *WalletRepository) Debit(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error) {
	return r.apply(ctx, userID, amount,
		"balance - held_balance >= ?",
		map[string]interface{}{"balance": gorm.Expr("balance - ?", amount)},
	)
}

// Credit adds amount to an existing wallet
func (r *WalletRepository) Credit(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error) {
	return r.apply(ctx, userID, amount,
		"",
		map[string]interface{}{"balance": gorm.Expr("balance + ?", amount)},
	)
}

// Hold reserves amount of the available balance
func (r *WalletRepository) Hold(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error) {
	return r.apply(ctx, userID, amount,
		"balance - held_balance >= ?",
		map[string]interface{}{"held_balance": gorm.Expr("held_balance + ?", amount)},
	)
}

// ReleaseHold returns a reservation to the available balance
func (r *WalletRepository) ReleaseHold(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error) {
	return r.apply(ctx, userID, amount,
		"held_balance >= ?",
		map[string]interface{}{"held_balance": gorm.Expr("held_balance - ?", amount)},
	)
}

// CaptureHold spends a reservation: both balance and held balance drop by amount
func (r *WalletRepository) CaptureHold(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error) {
	return r.apply(ctx, userID, amount,
		"held_balance >= ?",
		map[string]interface{}{
			"balance":      gorm.Expr("balance - ?", amount),
			"held_balance": gorm.Expr("held_balance - ?", amount),
		},
	)
}

// apply runs one conditional UPDATE. guard is an extra predicate taking amount
// as its single argument; when it filters the row out nothing is changed.
func (r *WalletRepository) apply(ctx context.Context, userID uuid.UUID, amount int64, guard string, updates map[string]interface{}) (*entities.Wallet, error) {
	if amount <= 0 {
		return nil, domainerrors.NewValidationError("amount", "must be positive")
	}
	tx, ok := txFromContext(ctx)
	if !ok {
		return nil, domainerrors.ErrNoTransaction
	}

	updates["updated_at"] = time.Now()
	q := tx.Model(&models.Wallet{}).Where("user_id = ?", userID)
	if guard != "" {
		q = q.Where(guard, amount)
	}
	result := q.Updates(updates)
	if result.Error != nil {
		if isCheckViolation(result.Error) {
			return nil, r.rejection(ctx, userID, amount, guard)
		}
		return nil, fmt.Errorf("failed to update wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, r.rejection(ctx, userID, amount, guard)
	}

	var m models.Wallet
	if err := tx.Where("user_id = ?", userID).Take(&m).Error; err != nil {
		return nil, fmt.Errorf("failed to reload wallet: %w", err)
	}
	return toWalletEntity(&m), nil
}

// rejection explains why a conditional update matched no row
func (r *WalletRepository) rejection(ctx context.Context, userID uuid.UUID, amount int64, guard string) error {
	tx, _ := txFromContext(ctx)
	var m models.Wallet
	err := tx.Where("user_id = ?", userID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if guard == "" {
			return domainerrors.ErrNotFound
		}
		return &domainerrors.InsufficientFundsError{Required: amount, Available: 0}
	}
	if err != nil {
		return fmt.Errorf("failed to load wallet: %w", err)
	}
	if guard == "held_balance >= ?" {
		return domainerrors.ErrHeldBalanceMissing
	}
	return &domainerrors.InsufficientFundsError{Required: amount, Available: m.Balance - m.HeldBalance}
}

func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func toWalletEntity(m *models.Wallet) *entities.Wallet {
	return &entities.Wallet{
		UserID:      m.UserID,
		Balance:     m.Balance,
		HeldBalance: m.HeldBalance,
		UpdatedAt:   m.UpdatedAt,
	}
}
