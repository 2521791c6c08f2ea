package entities

import (
	"time"

	"github.com/google/uuid"
)

// Realtime event names
const (
	EventTransferCompleted = "transfer.completed"
	EventGoalProgress      = "goal.progress"
	EventGoalCompleted     = "goal.completed"
	EventSystemEntry       = "ledger.system_entry"
)

// RealtimeEvent is the envelope published to realtime channels
type RealtimeEvent struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// TransferEventData is the public payload of a transfer broadcast
type TransferEventData struct {
	TransactionID uuid.UUID  `json:"transactionId"`
	SenderID      uuid.UUID  `json:"senderId"`
	ReceiverID    uuid.UUID  `json:"receiverId"`
	Amount        int64      `json:"amount"`
	Type          EntryType  `json:"type"`
	StreamID      *uuid.UUID `json:"streamId,omitempty"`
}

// GoalEventData is the payload of goal progress and completion broadcasts
type GoalEventData struct {
	GoalID        uuid.UUID `json:"goalId"`
	OwnerID       uuid.UUID `json:"ownerId"`
	CurrentAmount int64     `json:"currentAmount"`
	TargetAmount  int64     `json:"targetAmount"`
	Completed     bool      `json:"completed"`
}

// UserChannel is the realtime channel of a single user
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// StreamChannel is the realtime channel of a live stream
func StreamChannel(streamID uuid.UUID) string {
	return "stream:" + streamID.String()
}

// GoalChannel is the realtime channel of a goal
func GoalChannel(goalID uuid.UUID) string {
	return "goal:" + goalID.String()
}
