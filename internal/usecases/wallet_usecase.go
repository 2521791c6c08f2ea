package usecases

import (
	"context"
	"errors"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/domain/repositories"
	"coin-ledger.backend/pkg/utils"
	"github.com/google/uuid"
)

// WalletUsecase handles balance and history reads
type WalletUsecase struct {
	walletRepo       repositories.WalletRepository
	ledgerRepo       repositories.LedgerRepository
	notificationRepo repositories.NotificationRepository
}

// NewWalletUsecase creates a new wallet usecase
func NewWalletUsecase(
	walletRepo repositories.WalletRepository,
	ledgerRepo repositories.LedgerRepository,
	notificationRepo repositories.NotificationRepository,
) *WalletUsecase {
	return &WalletUsecase{
		walletRepo:       walletRepo,
		ledgerRepo:       ledgerRepo,
		notificationRepo: notificationRepo,
	}
}

// GetBalance returns the stored balance. A user without a wallet has zero.
func (u *WalletUsecase) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return u.walletRepo.GetBalance(ctx, userID)
}

// GetAvailableBalance returns balance minus held balance
func (u *WalletUsecase) GetAvailableBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return u.walletRepo.GetAvailableBalance(ctx, userID)
}

// GetWallet returns the balance summary of a user
func (u *WalletUsecase) GetWallet(ctx context.Context, userID uuid.UUID) (*entities.WalletView, error) {
	view := &entities.WalletView{UserID: userID}
	wallet, err := u.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return view, nil
		}
		return nil, err
	}
	view.Balance = wallet.Balance
	view.HeldBalance = wallet.HeldBalance
	view.Available = wallet.Available()
	return view, nil
}

// ListEntries returns a page of the user's ledger entries, newest first
func (u *WalletUsecase) ListEntries(ctx context.Context, userID uuid.UUID, pagination utils.PaginationParams) ([]*entities.LedgerEntry, utils.PaginationMeta, error) {
	pagination = utils.GetPaginationParams(pagination.Page, pagination.Limit)
	entries, total, err := u.ledgerRepo.ListByUserID(ctx, userID, pagination.Limit, pagination.CalculateOffset())
	if err != nil {
		return nil, utils.PaginationMeta{}, err
	}
	return entries, utils.CalculateMeta(total, pagination.Page, pagination.Limit), nil
}

// GetTransaction returns the entries of one transaction. Only a party to the
// transaction or an admin may read it.
func (u *WalletUsecase) GetTransaction(ctx context.Context, requesterID uuid.UUID, isAdmin bool, transactionID uuid.UUID) ([]*entities.LedgerEntry, error) {
	entries, err := u.ledgerRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domainerrors.ErrNotFound
	}
	if isAdmin {
		return entries, nil
	}
	for _, entry := range entries {
		if entry.UserID == requesterID {
			return entries, nil
		}
	}
	return nil, domainerrors.ErrForbidden
}

// ListNotifications returns a page of the user's notifications, newest first
func (u *WalletUsecase) ListNotifications(ctx context.Context, userID uuid.UUID, pagination utils.PaginationParams) ([]*entities.Notification, utils.PaginationMeta, error) {
	pagination = utils.GetPaginationParams(pagination.Page, pagination.Limit)
	items, total, err := u.notificationRepo.ListByUserID(ctx, userID, pagination.Limit, pagination.CalculateOffset())
	if err != nil {
		return nil, utils.PaginationMeta{}, err
	}
	return items, utils.CalculateMeta(total, pagination.Page, pagination.Limit), nil
}
