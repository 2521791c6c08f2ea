package usecases_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	"coin-ledger.backend/internal/infrastructure/models"
	"coin-ledger.backend/internal/infrastructure/repositories"
	"coin-ledger.backend/internal/usecases"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingEffects struct {
	mu        sync.Mutex
	transfers []*entities.TransferRecord
	system    []*entities.SystemEntryRecord
}

func (r *recordingEffects) AfterTransfer(_ context.Context, rec *entities.TransferRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, rec)
}

func (r *recordingEffects) AfterSystemEntry(_ context.Context, rec *entities.SystemEntryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.system = append(r.system, rec)
}

func (r *recordingEffects) transferCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transfers)
}

type ledgerFixture struct {
	db      *gorm.DB
	engine  *usecases.TransferEngine
	wallets *repositories.WalletRepository
	ledger  *repositories.LedgerRepository
	users   *repositories.UserRepository
	assets  *repositories.AssetRepository
	effects *recordingEffects
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db), "migrate")
	return db
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db := openTestDB(t)
	f := &ledgerFixture{
		db:      db,
		wallets: repositories.NewWalletRepository(db),
		ledger:  repositories.NewLedgerRepository(db),
		users:   repositories.NewUserRepository(db),
		assets:  repositories.NewAssetRepository(db),
		effects: &recordingEffects{},
	}
	f.engine = usecases.NewTransferEngine(
		repositories.NewUnitOfWork(db),
		f.wallets,
		f.ledger,
		f.users,
		f.assets,
		f.effects,
		time.Minute,
	)
	return f
}

func (f *ledgerFixture) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, f.users.Create(context.Background(), &entities.User{
		ID:        id,
		Username:  name,
		Role:      entities.UserRoleUser,
		CreatedAt: time.Now(),
	}))
	return id
}

// fund credits a wallet through the ledger so reconciliation stays exact
func (f *ledgerFixture) fund(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	_, err := f.engine.RecordSystemEntry(context.Background(), &entities.SystemEntryInput{
		UserID:         userID,
		Amount:         amount,
		Type:           entities.EntryTypeSystemAdjustment,
		IdempotencyKey: "fund:" + uuid.NewString(),
	})
	require.NoError(t, err)
}

func (f *ledgerFixture) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	b, err := f.wallets.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (f *ledgerFixture) wallet(t *testing.T, userID uuid.UUID) *entities.Wallet {
	t.Helper()
	w, err := f.wallets.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func (f *ledgerFixture) entryCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table("ledger_entries").Count(&n).Error)
	return n
}

func (f *ledgerFixture) requireConsistent(t *testing.T, userIDs ...uuid.UUID) {
	t.Helper()
	for _, id := range userIDs {
		v, err := f.engine.VerifyWallet(context.Background(), id)
		require.NoError(t, err)
		require.True(t, v.Consistent, "wallet %s drifted from ledger: %+v", id, v)
	}
}

// requireConserved checks that two-party entry types net to zero across the ledger
func (f *ledgerFixture) requireConserved(t *testing.T) {
	t.Helper()
	var sum int64
	require.NoError(t, f.db.Table("ledger_entries").
		Where("type IN ?", []string{"tip", "gift", "ppv_unlock", "message", "stream_tip"}).
		Where("status <> ?", "pending").
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error)
	require.Zero(t, sum)
}

func tipInput(sender, receiver uuid.UUID, amount int64, key string) *entities.TransferInput {
	return &entities.TransferInput{
		SenderID:       sender,
		ReceiverID:     receiver,
		Amount:         amount,
		Type:           entities.EntryTypeTip,
		Description:    "tip",
		IdempotencyKey: key,
	}
}
