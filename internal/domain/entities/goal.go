package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// Goal is a creator's funding target that tips count towards
type Goal struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"ownerId"`
	StreamID      *uuid.UUID `json:"streamId,omitempty"`
	Title         string     `json:"title"`
	TargetAmount  int64      `json:"targetAmount"`
	CurrentAmount int64      `json:"currentAmount"`
	Completed     bool       `json:"completed"`
	CompletedAt   null.Time  `json:"completedAt"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// CreateGoalInput represents input for creating a goal
type CreateGoalInput struct {
	Title        string     `json:"title" binding:"required"`
	TargetAmount int64      `json:"targetAmount" binding:"required"`
	StreamID     *uuid.UUID `json:"streamId"`
}

// SupporterTotal is the leaderboard aggregate of one supporter for one creator
type SupporterTotal struct {
	CreatorID   uuid.UUID `json:"creatorId"`
	SupporterID uuid.UUID `json:"supporterId"`
	TotalAmount int64     `json:"totalAmount"`
	TipCount    int64     `json:"tipCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
