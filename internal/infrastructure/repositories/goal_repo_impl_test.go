package repositories

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoalRepository_ProgressAndCompletion(t *testing.T) {
	db := newTestDB(t)
	repo := NewGoalRepository(db)
	ctx := context.Background()
	owner, stream, otherStream := uuid.New(), uuid.New(), uuid.New()

	unbound := &entities.Goal{OwnerID: owner, Title: "any", TargetAmount: 100, Active: true}
	bound := &entities.Goal{OwnerID: owner, StreamID: &stream, Title: "stream", TargetAmount: 50, Active: true}
	other := &entities.Goal{OwnerID: owner, StreamID: &otherStream, Title: "other", TargetAmount: 50, Active: true}
	inactive := &entities.Goal{OwnerID: owner, Title: "old", TargetAmount: 10, Active: false}
	for _, g := range []*entities.Goal{unbound, bound, other, inactive} {
		require.NoError(t, repo.Create(ctx, g))
	}
	stored, err := repo.GetByID(ctx, inactive.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active, "inactive goals keep active=false")

	updated, err := repo.AddProgress(ctx, owner, &stream, 60)
	require.NoError(t, err)
	require.Len(t, updated, 2)

	byID := map[uuid.UUID]*entities.Goal{}
	for _, g := range updated {
		byID[g.ID] = g
	}
	assert.Equal(t, int64(60), byID[unbound.ID].CurrentAmount)
	assert.Equal(t, int64(60), byID[bound.ID].CurrentAmount)

	updated, err = repo.AddProgress(ctx, owner, nil, 5)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, unbound.ID, updated[0].ID)

	done, err := repo.MarkCompleted(ctx, unbound.ID)
	require.NoError(t, err)
	assert.False(t, done, "goal below target must stay open")

	done, err = repo.MarkCompleted(ctx, bound.ID)
	require.NoError(t, err)
	assert.True(t, done)
	done, err = repo.MarkCompleted(ctx, bound.ID)
	require.NoError(t, err)
	assert.False(t, done, "completion flips only once")

	g, err := repo.GetByID(ctx, bound.ID)
	require.NoError(t, err)
	assert.True(t, g.Completed)
	assert.True(t, g.CompletedAt.Valid)

	active, err := repo.ListByOwner(ctx, owner, true)
	require.NoError(t, err)
	assert.Len(t, active, 3)
	all, err := repo.ListByOwner(ctx, owner, false)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	stored, err = repo.GetByID(ctx, inactive.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.CurrentAmount)
	assert.False(t, stored.Completed)
}

func TestGoalRepository_ConcurrentCompletionHasOneWinner(t *testing.T) {
	db := newTestDB(t)
	repo := NewGoalRepository(db)
	ctx := context.Background()
	goal := &entities.Goal{OwnerID: uuid.New(), Title: "g", TargetAmount: 10, CurrentAmount: 10, Active: true}
	require.NoError(t, repo.Create(ctx, goal))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkCompleted(ctx, goal.ID)
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins)
}

func TestSupporterTotalRepository_Upsert(t *testing.T) {
	db := newTestDB(t)
	repo := NewSupporterTotalRepository(db)
	ctx := context.Background()
	creator, alice, bob := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, repo.Add(ctx, creator, alice, 10))
	require.NoError(t, repo.Add(ctx, creator, alice, 15))
	require.NoError(t, repo.Add(ctx, creator, bob, 20))

	top, err := repo.TopSupporters(ctx, creator, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, alice, top[0].SupporterID)
	assert.Equal(t, int64(25), top[0].TotalAmount)
	assert.Equal(t, int64(2), top[0].TipCount)
	assert.Equal(t, bob, top[1].SupporterID)
}

func TestNotificationRepository_CreateAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Create(ctx, &entities.Notification{
		UserID:  userID,
		Kind:    entities.NotificationKindCoinsReceived,
		Title:   "You received coins",
		Payload: []byte(`{"amount":5}`),
	}))

	items, total, err := repo.ListByUserID(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"amount":5}`, string(items[0].Payload))
	assert.False(t, items[0].ReadAt.Valid)
}

func TestAssetRepository_GrantAccessOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewAssetRepository(db)
	ctx := context.Background()

	asset := &entities.Asset{CreatorID: uuid.New(), Kind: entities.AssetKindPost, Title: "post", Price: 25}
	require.NoError(t, repo.Create(ctx, asset))

	got, err := repo.GetByID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), got.Price)

	buyer := uuid.New()
	unlock := &entities.AssetUnlock{AssetID: asset.ID, UserID: buyer, TransactionID: uuid.New()}
	require.NoError(t, repo.GrantAccess(ctx, unlock))
	err = repo.GrantAccess(ctx, &entities.AssetUnlock{AssetID: asset.ID, UserID: buyer, TransactionID: uuid.New()})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)

	stored, err := repo.GetUnlock(ctx, asset.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, unlock.TransactionID, stored.TransactionID)
}

func TestUserRepository_Exists(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	id := seedUser(t, db, "alice")

	ok, err := repo.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	u, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, entities.UserRoleUser, u.Role)
}
