package repositories

import (
	"context"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	"coin-ledger.backend/internal/infrastructure/models"
	"coin-ledger.backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationRepository implements notification record operations
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification
func (r *NotificationRepository) Create(ctx context.Context, n *entities.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = utils.GenerateUUIDv7()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	m := &models.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Kind:      string(n.Kind),
		Title:     n.Title,
		Body:      n.Body,
		ReadAt:    n.ReadAt.Ptr(),
		CreatedAt: n.CreatedAt,
	}
	if len(n.Payload) > 0 {
		m.Payload = datatypes.JSON(n.Payload)
	}
	return GetDB(ctx, r.db).Create(m).Error
}

// ListByUserID gets a user's notifications, newest first
func (r *NotificationRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Notification, int64, error) {
	var total int64
	if err := GetDB(ctx, r.db).Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.Notification
	if err := GetDB(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*entities.Notification, 0, len(ms))
	for _, m := range ms {
		out = append(out, &entities.Notification{
			ID:        m.ID,
			UserID:    m.UserID,
			Kind:      entities.NotificationKind(m.Kind),
			Title:     m.Title,
			Body:      m.Body,
			Payload:   []byte(m.Payload),
			ReadAt:    null.TimeFromPtr(m.ReadAt),
			CreatedAt: m.CreatedAt,
		})
	}
	return out, total, nil
}
