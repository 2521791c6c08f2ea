package repositories

import (
	"context"
	"errors"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/infrastructure/models"
	"coin-ledger.backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
)

// GoalRepository implements goal data operations
type GoalRepository struct {
	db *gorm.DB
}

// NewGoalRepository creates a new goal repository
func NewGoalRepository(db *gorm.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

// Create creates a new goal
func (r *GoalRepository) Create(ctx context.Context, goal *entities.Goal) error {
	now := time.Now()
	if goal.ID == uuid.Nil {
		goal.ID = utils.GenerateUUIDv7()
	}
	goal.CreatedAt = now
	goal.UpdatedAt = now

	m := &models.Goal{
		ID:            goal.ID,
		OwnerID:       goal.OwnerID,
		StreamID:      goal.StreamID,
		Title:         goal.Title,
		TargetAmount:  goal.TargetAmount,
		CurrentAmount: goal.CurrentAmount,
		Completed:     goal.Completed,
		CompletedAt:   goal.CompletedAt.Ptr(),
		Active:        goal.Active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	// zero values must override column defaults
	return GetDB(ctx, r.db).Select("*").Create(m).Error
}

// GetByID gets a goal by ID
func (r *GoalRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Goal, error) {
	var m models.Goal
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toGoalEntity(&m), nil
}

// ListByOwner lists a creator's goals, newest first
func (r *GoalRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]*entities.Goal, error) {
	q := GetDB(ctx, r.db).Where("owner_id = ?", ownerID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var ms []models.Goal
	if err := q.Order("created_at DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	goals := make([]*entities.Goal, 0, len(ms))
	for i := range ms {
		goals = append(goals, toGoalEntity(&ms[i]))
	}
	return goals, nil
}

// AddProgress adds amount to every active goal of the owner and returns the
// goals as they are after the increment. With a stream, only goals bound to
// that stream or to no stream count; without one, only unbound goals count.
func (r *GoalRepository) AddProgress(ctx context.Context, ownerID uuid.UUID, streamID *uuid.UUID, amount int64) ([]*entities.Goal, error) {
	var updated []*entities.Goal
	err := GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		scope := func() *gorm.DB {
			q := tx.Model(&models.Goal{}).Where("owner_id = ? AND active = ?", ownerID, true)
			if streamID != nil {
				return q.Where("stream_id IS NULL OR stream_id = ?", *streamID)
			}
			return q.Where("stream_id IS NULL")
		}

		var ids []uuid.UUID
		if err := scope().Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Model(&models.Goal{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"current_amount": gorm.Expr("current_amount + ?", amount),
			"updated_at":     time.Now(),
		}).Error; err != nil {
			return err
		}

		var ms []models.Goal
		if err := tx.Where("id IN ?", ids).Order("created_at ASC").Find(&ms).Error; err != nil {
			return err
		}
		for i := range ms {
			updated = append(updated, toGoalEntity(&ms[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkCompleted flips a reached goal to completed. It reports true only for
// the single call that performed the flip.
func (r *GoalRepository) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	result := GetDB(ctx, r.db).Model(&models.Goal{}).
		Where("id = ? AND completed = ? AND current_amount >= target_amount", id, false).
		Updates(map[string]interface{}{
			"completed":    true,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func toGoalEntity(m *models.Goal) *entities.Goal {
	return &entities.Goal{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		StreamID:      m.StreamID,
		Title:         m.Title,
		TargetAmount:  m.TargetAmount,
		CurrentAmount: m.CurrentAmount,
		Completed:     m.Completed,
		CompletedAt:   null.TimeFromPtr(m.CompletedAt),
		Active:        m.Active,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
