package usecases_test

import (
	"context"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, f func(context.Context) error) error {
	m.Called(ctx, f)
	return f(ctx)
}

func (m *MockUnitOfWork) WithLock(ctx context.Context) context.Context {
	args := m.Called(ctx)
	return args.Get(0).(context.Context)
}

// Mock WalletRepository
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletRepository) GetAvailableBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletRepository) EnsureWallet(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockWalletRepository) LockWallets(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]*entities.Wallet, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*entities.Wallet), args.Error(1)
}

func (m *MockWalletRepository) mutation(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Debit(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error) {
	return m.mutation(ctx, userID, amount)
}

func (m *MockWalletRepository) Credit(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error) {
	return m.mutation(ctx, userID, amount)
}

func (m *MockWalletRepository) Hold(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error) {
	return m.mutation(ctx, userID, amount)
}

func (m *MockWalletRepository) ReleaseHold(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error) {
	return m.mutation(ctx, userID, amount)
}

func (m *MockWalletRepository) CaptureHold(ctx context.Context, userID uuid.UUID, amount int64) (*entities.Wallet, error) {
	return m.mutation(ctx, userID, amount)
}

// Mock LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Append(ctx context.Context, entry *entities.LedgerEntry) (uuid.UUID, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockLedgerRepository) entry(args mock.Arguments) (*entities.LedgerEntry, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) entries(args mock.Arguments) ([]*entities.LedgerEntry, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.LedgerEntry, error) {
	return m.entry(m.Called(ctx, id))
}

func (m *MockLedgerRepository) FindByIdempotencyKey(ctx context.Context, key string) (*entities.LedgerEntry, error) {
	return m.entry(m.Called(ctx, key))
}

func (m *MockLedgerRepository) FindByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*entities.LedgerEntry, error) {
	return m.entries(m.Called(ctx, transactionID))
}

func (m *MockLedgerRepository) FindRelated(ctx context.Context, entryID uuid.UUID) ([]*entities.LedgerEntry, error) {
	return m.entries(m.Called(ctx, entryID))
}

func (m *MockLedgerRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.LedgerEntry, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.LedgerEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerRepository) SumCommitted(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) SumOpenHolds(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]*entities.LedgerEntry, error) {
	return m.entries(m.Called(ctx, cutoff, limit))
}

// Mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// Mock AssetRepository
type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) Create(ctx context.Context, asset *entities.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

func (m *MockAssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Asset), args.Error(1)
}

func (m *MockAssetRepository) GrantAccess(ctx context.Context, unlock *entities.AssetUnlock) error {
	args := m.Called(ctx, unlock)
	return args.Error(0)
}

func (m *MockAssetRepository) GetUnlock(ctx context.Context, assetID, userID uuid.UUID) (*entities.AssetUnlock, error) {
	args := m.Called(ctx, assetID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AssetUnlock), args.Error(1)
}

// Mock GoalRepository
type MockGoalRepository struct {
	mock.Mock
}

func (m *MockGoalRepository) Create(ctx context.Context, goal *entities.Goal) error {
	args := m.Called(ctx, goal)
	return args.Error(0)
}

func (m *MockGoalRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Goal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Goal), args.Error(1)
}

func (m *MockGoalRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]*entities.Goal, error) {
	args := m.Called(ctx, ownerID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Goal), args.Error(1)
}

func (m *MockGoalRepository) AddProgress(ctx context.Context, ownerID uuid.UUID, streamID *uuid.UUID, amount int64) ([]*entities.Goal, error) {
	args := m.Called(ctx, ownerID, streamID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Goal), args.Error(1)
}

func (m *MockGoalRepository) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// Mock SupporterTotalRepository
type MockSupporterTotalRepository struct {
	mock.Mock
}

func (m *MockSupporterTotalRepository) Add(ctx context.Context, creatorID, supporterID uuid.UUID, amount int64) error {
	args := m.Called(ctx, creatorID, supporterID, amount)
	return args.Error(0)
}

func (m *MockSupporterTotalRepository) TopSupporters(ctx context.Context, creatorID uuid.UUID, limit int) ([]*entities.SupporterTotal, error) {
	args := m.Called(ctx, creatorID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SupporterTotal), args.Error(1)
}

// Mock NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *entities.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Notification, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.Notification), args.Get(1).(int64), args.Error(2)
}

// Mock Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, channel string, event entities.RealtimeEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}
