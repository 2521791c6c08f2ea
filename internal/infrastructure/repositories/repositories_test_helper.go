package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	"coin-ledger.backend/internal/infrastructure/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db), "migrate")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func seedUser(t *testing.T, db *gorm.DB, username string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, NewUserRepository(db).Create(context.Background(), &entities.User{
		ID:        id,
		Username:  username,
		Role:      entities.UserRoleUser,
		CreatedAt: time.Now(),
	}))
	return id
}

func seedWallet(t *testing.T, db *gorm.DB, userID uuid.UUID, balance, held int64) {
	t.Helper()
	now := time.Now()
	mustExec(t, db, "INSERT INTO wallets (user_id, balance, held_balance, created_at, updated_at) VALUES (?,?,?,?,?)",
		userID, balance, held, now, now)
}
