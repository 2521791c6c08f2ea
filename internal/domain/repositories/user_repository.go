package repositories

import (
	"context"

	"coin-ledger.backend/internal/domain/entities"
	"github.com/google/uuid"
)

// UserRepository reads accounts owned by the auth collaborator
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
