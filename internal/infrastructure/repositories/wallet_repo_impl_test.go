package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"

	domainerrors "coin-ledger.backend/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestWalletRepository_EnsureWalletIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.EnsureWallet(ctx, userID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, int64(1), countWallets(t, db))
	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)
}

func TestWalletRepository_MissingWalletReadsAsZero(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	balance, err := repo.GetBalance(ctx, uuid.New())
	require.NoError(t, err)
	require.Zero(t, balance)

	available, err := repo.GetAvailableBalance(ctx, uuid.New())
	require.NoError(t, err)
	require.Zero(t, available)

	_, err = repo.GetByUserID(ctx, uuid.New())
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestWalletRepository_MutationsRequireTransaction(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	seedWallet(t, db, userID, 100, 0)

	_, err := repo.Debit(ctx, userID, 10)
	require.ErrorIs(t, err, domainerrors.ErrNoTransaction)
	_, err = repo.Credit(ctx, userID, 10)
	require.ErrorIs(t, err, domainerrors.ErrNoTransaction)
	_, err = repo.LockWallets(ctx, userID)
	require.ErrorIs(t, err, domainerrors.ErrNoTransaction)

	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)
}

func TestWalletRepository_DebitCreditInsideUnitOfWork(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	uow := NewUnitOfWork(db)
	sender, receiver := uuid.New(), uuid.New()
	seedWallet(t, db, sender, 100, 30)

	err := uow.Do(context.Background(), func(ctx context.Context) error {
		locked, err := repo.LockWallets(ctx, receiver, sender, sender)
		require.NoError(t, err)
		require.Len(t, locked, 1)
		require.Equal(t, int64(70), locked[sender].Available())

		w, err := repo.Debit(ctx, sender, 70)
		require.NoError(t, err)
		require.Equal(t, int64(30), w.Balance)

		require.NoError(t, repo.EnsureWallet(ctx, receiver))
		w, err = repo.Credit(ctx, receiver, 70)
		require.NoError(t, err)
		require.Equal(t, int64(70), w.Balance)
		return nil
	})
	require.NoError(t, err)
}

func TestWalletRepository_DebitNeverDipsIntoHeldBalance(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	uow := NewUnitOfWork(db)
	userID := uuid.New()
	seedWallet(t, db, userID, 100, 60)

	err := uow.Do(context.Background(), func(ctx context.Context) error {
		_, err := repo.Debit(ctx, userID, 50)
		return err
	})
	var insufficient *domainerrors.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, int64(50), insufficient.Required)
	require.Equal(t, int64(40), insufficient.Available)

	w, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, int64(100), w.Balance)
	require.Equal(t, int64(60), w.HeldBalance)
}

func TestWalletRepository_DebitMissingWallet(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	uow := NewUnitOfWork(db)

	err := uow.Do(context.Background(), func(ctx context.Context) error {
		_, err := repo.Debit(ctx, uuid.New(), 1)
		return err
	})
	require.ErrorIs(t, err, domainerrors.ErrInsufficientFunds)

	err = uow.Do(context.Background(), func(ctx context.Context) error {
		_, err := repo.Credit(ctx, uuid.New(), 1)
		return err
	})
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestWalletRepository_HoldLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	uow := NewUnitOfWork(db)
	userID := uuid.New()
	seedWallet(t, db, userID, 100, 0)
	ctx := context.Background()

	require.NoError(t, uow.Do(ctx, func(ctx context.Context) error {
		w, err := repo.Hold(ctx, userID, 40)
		require.NoError(t, err)
		require.Equal(t, int64(40), w.HeldBalance)
		require.Equal(t, int64(60), w.Available())

		_, err = repo.Hold(ctx, userID, 61)
		require.ErrorIs(t, err, domainerrors.ErrInsufficientFunds)

		w, err = repo.CaptureHold(ctx, userID, 25)
		require.NoError(t, err)
		require.Equal(t, int64(75), w.Balance)
		require.Equal(t, int64(15), w.HeldBalance)

		w, err = repo.ReleaseHold(ctx, userID, 15)
		require.NoError(t, err)
		require.Equal(t, int64(0), w.HeldBalance)

		_, err = repo.ReleaseHold(ctx, userID, 1)
		require.ErrorIs(t, err, domainerrors.ErrHeldBalanceMissing)
		return nil
	}))
}

func TestWalletRepository_RejectsNonPositiveAmounts(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	uow := NewUnitOfWork(db)
	userID := uuid.New()
	seedWallet(t, db, userID, 100, 0)

	err := uow.Do(context.Background(), func(ctx context.Context) error {
		_, err := repo.Credit(ctx, userID, 0)
		return err
	})
	require.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestWalletRepository_CheckConstraintBlocksNegativeBalance(t *testing.T) {
	db := newTestDB(t)
	userID := uuid.New()
	seedWallet(t, db, userID, 5, 0)

	err := db.Exec("UPDATE wallets SET balance = -1 WHERE user_id = ?", userID).Error
	require.Error(t, err)
	require.True(t, isCheckViolation(err))
}
