package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// NotificationKind represents what a notification is about
type NotificationKind string

const (
	NotificationKindCoinsReceived NotificationKind = "coins_received"
	NotificationKindGoalCompleted NotificationKind = "goal_completed"
	NotificationKindSystemCredit  NotificationKind = "system_credit"
)

// Notification is an in-app notification record
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"userId"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
	ReadAt    null.Time        `json:"readAt"`
	CreatedAt time.Time        `json:"createdAt"`
}
