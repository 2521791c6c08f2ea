package repositories

import (
	"context"

	"coin-ledger.backend/internal/domain/entities"
	"github.com/google/uuid"
)

// GoalRepository defines goal operations
type GoalRepository interface {
	Create(ctx context.Context, goal *entities.Goal) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Goal, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]*entities.Goal, error)
	AddProgress(ctx context.Context, ownerID uuid.UUID, streamID *uuid.UUID, amount int64) ([]*entities.Goal, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)
}

// SupporterTotalRepository maintains the per-creator leaderboard aggregate
type SupporterTotalRepository interface {
	Add(ctx context.Context, creatorID, supporterID uuid.UUID, amount int64) error
	TopSupporters(ctx context.Context, creatorID uuid.UUID, limit int) ([]*entities.SupporterTotal, error)
}

// NotificationRepository defines notification record operations
type NotificationRepository interface {
	Create(ctx context.Context, n *entities.Notification) error
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Notification, int64, error)
}
