package usecases_test

import (
	"context"
	"errors"
	"testing"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/usecases"
	"coin-ledger.backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletUsecase_GetWallet(t *testing.T) {
	ctx := context.Background()
	walletRepo := new(MockWalletRepository)
	uc := usecases.NewWalletUsecase(walletRepo, new(MockLedgerRepository), new(MockNotificationRepository))

	userID := uuid.New()
	walletRepo.On("GetByUserID", ctx, userID).Return(&entities.Wallet{UserID: userID, Balance: 100, HeldBalance: 30}, nil).Once()

	view, err := uc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), view.Balance)
	assert.Equal(t, int64(30), view.HeldBalance)
	assert.Equal(t, int64(70), view.Available)
}

func TestWalletUsecase_GetWallet_MissingWalletIsEmpty(t *testing.T) {
	ctx := context.Background()
	walletRepo := new(MockWalletRepository)
	uc := usecases.NewWalletUsecase(walletRepo, new(MockLedgerRepository), new(MockNotificationRepository))

	userID := uuid.New()
	walletRepo.On("GetByUserID", ctx, userID).Return(nil, domainerrors.ErrNotFound).Once()

	view, err := uc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, &entities.WalletView{UserID: userID}, view)

	other := uuid.New()
	walletRepo.On("GetByUserID", ctx, other).Return(nil, errors.New("db down")).Once()
	_, err = uc.GetWallet(ctx, other)
	assert.EqualError(t, err, "db down")
}

func TestWalletUsecase_Balances(t *testing.T) {
	ctx := context.Background()
	walletRepo := new(MockWalletRepository)
	uc := usecases.NewWalletUsecase(walletRepo, new(MockLedgerRepository), new(MockNotificationRepository))

	userID := uuid.New()
	walletRepo.On("GetBalance", ctx, userID).Return(int64(90), nil).Once()
	walletRepo.On("GetAvailableBalance", ctx, userID).Return(int64(40), nil).Once()

	balance, err := uc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(90), balance)

	available, err := uc.GetAvailableBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), available)
}

func TestWalletUsecase_ListEntries_ClampsPagination(t *testing.T) {
	ctx := context.Background()
	ledgerRepo := new(MockLedgerRepository)
	uc := usecases.NewWalletUsecase(new(MockWalletRepository), ledgerRepo, new(MockNotificationRepository))

	userID := uuid.New()
	entries := []*entities.LedgerEntry{{ID: uuid.New(), UserID: userID, Amount: -5}}
	ledgerRepo.On("ListByUserID", ctx, userID, utils.MaxPageLimit, utils.MaxPageLimit).Return(entries, int64(101), nil).Once()

	got, meta, err := uc.ListEntries(ctx, userID, utils.PaginationParams{Page: 2, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, entries, got)
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, utils.MaxPageLimit, meta.Limit)
	assert.Equal(t, 2, meta.TotalPages)
}

func TestWalletUsecase_GetTransaction(t *testing.T) {
	ctx := context.Background()
	ledgerRepo := new(MockLedgerRepository)
	uc := usecases.NewWalletUsecase(new(MockWalletRepository), ledgerRepo, new(MockNotificationRepository))

	sender, receiver, stranger := uuid.New(), uuid.New(), uuid.New()
	txID := uuid.New()
	entries := []*entities.LedgerEntry{
		{ID: txID, TransactionID: txID, UserID: sender, Amount: -10},
		{ID: uuid.New(), TransactionID: txID, UserID: receiver, Amount: 10},
	}
	ledgerRepo.On("FindByTransactionID", ctx, txID).Return(entries, nil)

	got, err := uc.GetTransaction(ctx, receiver, false, txID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = uc.GetTransaction(ctx, stranger, false, txID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	got, err = uc.GetTransaction(ctx, stranger, true, txID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	missing := uuid.New()
	ledgerRepo.On("FindByTransactionID", ctx, missing).Return([]*entities.LedgerEntry{}, nil)
	_, err = uc.GetTransaction(ctx, sender, false, missing)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestWalletUsecase_ListNotifications(t *testing.T) {
	ctx := context.Background()
	notifications := new(MockNotificationRepository)
	uc := usecases.NewWalletUsecase(new(MockWalletRepository), new(MockLedgerRepository), notifications)

	userID := uuid.New()
	items := []*entities.Notification{{ID: uuid.New(), UserID: userID, Kind: entities.NotificationKindCoinsReceived}}
	notifications.On("ListByUserID", ctx, userID, utils.DefaultPageLimit, 0).Return(items, int64(1), nil).Once()

	got, meta, err := uc.ListNotifications(ctx, userID, utils.PaginationParams{})
	require.NoError(t, err)
	assert.Equal(t, items, got)
	assert.Equal(t, int64(1), meta.TotalCount)

	notifications.On("ListByUserID", ctx, userID, utils.DefaultPageLimit, utils.DefaultPageLimit).Return(nil, int64(0), errors.New("boom")).Once()
	_, _, err = uc.ListNotifications(ctx, userID, utils.PaginationParams{Page: 2})
	assert.EqualError(t, err, "boom")
}
