package usecases

import (
	"context"
	"strings"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/domain/repositories"
	"coin-ledger.backend/pkg/utils"
	"github.com/google/uuid"
)

// GoalUsecase handles creator goals and the supporter leaderboard
type GoalUsecase struct {
	goalRepo      repositories.GoalRepository
	supporterRepo repositories.SupporterTotalRepository
}

// NewGoalUsecase creates a new goal usecase
func NewGoalUsecase(goalRepo repositories.GoalRepository, supporterRepo repositories.SupporterTotalRepository) *GoalUsecase {
	return &GoalUsecase{goalRepo: goalRepo, supporterRepo: supporterRepo}
}

// CreateGoal creates an active goal owned by ownerID
func (u *GoalUsecase) CreateGoal(ctx context.Context, ownerID uuid.UUID, input *entities.CreateGoalInput) (*entities.Goal, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainerrors.NewValidationError("title", "is required")
	}
	if input.TargetAmount <= 0 {
		return nil, domainerrors.NewValidationError("targetAmount", "must be positive")
	}

	goal := &entities.Goal{
		OwnerID:      ownerID,
		StreamID:     input.StreamID,
		Title:        title,
		TargetAmount: input.TargetAmount,
		Active:       true,
	}
	if err := u.goalRepo.Create(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// ListGoals lists the goals of an owner
func (u *GoalUsecase) ListGoals(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]*entities.Goal, error) {
	return u.goalRepo.ListByOwner(ctx, ownerID, activeOnly)
}

// Leaderboard returns the top supporters of a creator
func (u *GoalUsecase) Leaderboard(ctx context.Context, creatorID uuid.UUID, limit int) ([]*entities.SupporterTotal, error) {
	if limit <= 0 {
		limit = utils.DefaultPageLimit
	}
	if limit > utils.MaxPageLimit {
		limit = utils.MaxPageLimit
	}
	return u.supporterRepo.TopSupporters(ctx, creatorID, limit)
}
