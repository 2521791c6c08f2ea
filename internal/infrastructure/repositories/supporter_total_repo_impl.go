package repositories

import (
	"context"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	"coin-ledger.backend/internal/infrastructure/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SupporterTotalRepository maintains the leaderboard aggregate
type SupporterTotalRepository struct {
	db *gorm.DB
}

// NewSupporterTotalRepository creates a new leaderboard repository
func NewSupporterTotalRepository(db *gorm.DB) *SupporterTotalRepository {
	return &SupporterTotalRepository{db: db}
}

// Add upserts the supporter's running total for a creator
func (r *SupporterTotalRepository) Add(ctx context.Context, creatorID, supporterID uuid.UUID, amount int64) error {
	now := time.Now()
	m := &models.SupporterTotal{
		CreatorID:   creatorID,
		SupporterID: supporterID,
		TotalAmount: amount,
		TipCount:    1,
		UpdatedAt:   now,
	}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "creator_id"}, {Name: "supporter_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_amount": gorm.Expr("supporter_totals.total_amount + ?", amount),
			"tip_count":    gorm.Expr("supporter_totals.tip_count + 1"),
			"updated_at":   now,
		}),
	}).Create(m).Error
}

// TopSupporters returns the biggest supporters of a creator
func (r *SupporterTotalRepository) TopSupporters(ctx context.Context, creatorID uuid.UUID, limit int) ([]*entities.SupporterTotal, error) {
	var ms []models.SupporterTotal
	if err := GetDB(ctx, r.db).
		Where("creator_id = ?", creatorID).
		Order("total_amount DESC").Order("updated_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.SupporterTotal, 0, len(ms))
	for _, m := range ms {
		out = append(out, &entities.SupporterTotal{
			CreatorID:   m.CreatorID,
			SupporterID: m.SupporterID,
			TotalAmount: m.TotalAmount,
			TipCount:    m.TipCount,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	return out, nil
}
