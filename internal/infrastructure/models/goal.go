package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Goal struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OwnerID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_goals_owner_active,priority:1"`
	StreamID      *uuid.UUID `gorm:"type:uuid;index"`
	Title         string     `gorm:"type:varchar(255);not null"`
	TargetAmount  int64      `gorm:"not null;check:chk_goals_target,target_amount > 0"`
	CurrentAmount int64      `gorm:"not null;default:0"`
	Completed     bool       `gorm:"not null;default:false"`
	CompletedAt   *time.Time
	Active        bool `gorm:"not null;index:idx_goals_owner_active,priority:2"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Goal) TableName() string {
	return "goals"
}

type SupporterTotal struct {
	CreatorID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	SupporterID uuid.UUID `gorm:"type:uuid;primaryKey"`
	TotalAmount int64     `gorm:"not null;default:0"`
	TipCount    int64     `gorm:"not null;default:0"`
	UpdatedAt   time.Time
}

func (SupporterTotal) TableName() string {
	return "supporter_totals"
}

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Kind      string    `gorm:"type:varchar(32);not null"`
	Title     string    `gorm:"type:varchar(255)"`
	Body      string    `gorm:"type:text"`
	Payload   datatypes.JSON
	ReadAt    *time.Time
	CreatedAt time.Time `gorm:"index"`
}

func (Notification) TableName() string {
	return "notifications"
}
