package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/domain/repositories"
	"coin-ledger.backend/internal/infrastructure/realtime"
	"coin-ledger.backend/pkg/logger"
	"coin-ledger.backend/pkg/metrics"
	"coin-ledger.backend/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSideEffectTimeout = 2 * time.Second

// Side effect action names, used in logs and metrics
const (
	ActionPublishTransfer = "publish_transfer"
	ActionGoalProgress    = "goal_progress"
	ActionLeaderboard     = "leaderboard"
	ActionNotification    = "notification"
	ActionPublishSystem   = "publish_system_entry"
)

// SideEffectDispatcher runs the follow-ups of a committed transfer. Every
// action gets its own deadline and a failure is only logged and counted.
type SideEffectDispatcher struct {
	publisher        realtime.Publisher
	goalRepo         repositories.GoalRepository
	supporterRepo    repositories.SupporterTotalRepository
	notificationRepo repositories.NotificationRepository
	timeout          time.Duration
	now              func() time.Time
}

// NewSideEffectDispatcher creates a new dispatcher. A nil publisher disables broadcasts.
func NewSideEffectDispatcher(
	publisher realtime.Publisher,
	goalRepo repositories.GoalRepository,
	supporterRepo repositories.SupporterTotalRepository,
	notificationRepo repositories.NotificationRepository,
	timeout time.Duration,
) *SideEffectDispatcher {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	if timeout <= 0 {
		timeout = defaultSideEffectTimeout
	}
	return &SideEffectDispatcher{
		publisher:        publisher,
		goalRepo:         goalRepo,
		supporterRepo:    supporterRepo,
		notificationRepo: notificationRepo,
		timeout:          timeout,
		now:              time.Now,
	}
}

// AfterTransfer fans out the follow-ups of a fresh transfer and waits for them
func (d *SideEffectDispatcher) AfterTransfer(ctx context.Context, rec *entities.TransferRecord) {
	ctx = context.WithoutCancel(ctx)

	actions := map[string]func(context.Context) error{
		ActionPublishTransfer: func(ctx context.Context) error { return d.publishTransfer(ctx, rec) },
		ActionNotification:    func(ctx context.Context) error { return d.notifyReceiver(ctx, rec) },
	}
	if countsAsSupport(rec.Type) {
		actions[ActionGoalProgress] = func(ctx context.Context) error { return d.advanceGoals(ctx, rec) }
		actions[ActionLeaderboard] = func(ctx context.Context) error {
			return d.supporterRepo.Add(ctx, rec.ReceiverID, rec.SenderID, rec.Amount)
		}
	}

	var wg sync.WaitGroup
	for action, fn := range actions {
		wg.Add(1)
		go func(action string, fn func(context.Context) error) {
			defer wg.Done()
			d.run(ctx, action, fn)
		}(action, fn)
	}
	wg.Wait()
}

// AfterSystemEntry tells the affected user about a system credit or debit
func (d *SideEffectDispatcher) AfterSystemEntry(ctx context.Context, rec *entities.SystemEntryRecord) {
	ctx = context.WithoutCancel(ctx)

	d.run(ctx, ActionPublishSystem, func(ctx context.Context) error {
		return d.publisher.Publish(ctx, entities.UserChannel(rec.UserID), d.event(entities.EventSystemEntry, rec))
	})
	if rec.Amount > 0 {
		d.run(ctx, ActionNotification, func(ctx context.Context) error {
			return d.notify(ctx, rec.UserID, entities.NotificationKindSystemCredit,
				fmt.Sprintf("You received %d coins", rec.Amount), string(rec.Type), rec)
		})
	}
}

// run executes one action with its own timeout and turns panics into errors
func (d *SideEffectDispatcher) run(ctx context.Context, action string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(ctx)
	}()
	if err == nil {
		return
	}

	sideErr := &domainerrors.SideEffectError{Action: action, Err: err}
	logger.Error(ctx, "Side effect failed", zap.String("action", action), zap.Error(sideErr))
	metrics.RecordSideEffectFailure(action)
}

func (d *SideEffectDispatcher) publishTransfer(ctx context.Context, rec *entities.TransferRecord) error {
	streamID := entities.StreamOf(rec.Metadata)
	event := d.event(entities.EventTransferCompleted, entities.TransferEventData{
		TransactionID: rec.TransactionID,
		SenderID:      rec.SenderID,
		ReceiverID:    rec.ReceiverID,
		Amount:        rec.Amount,
		Type:          rec.Type,
		StreamID:      streamID,
	})

	err := d.publisher.Publish(ctx, entities.UserChannel(rec.ReceiverID), event)
	if streamID != nil {
		err = errors.Join(err, d.publisher.Publish(ctx, entities.StreamChannel(*streamID), event))
	}
	return err
}

// advanceGoals adds the transfer to the receiver's goals. MarkCompleted only
// succeeds once per goal, so each crossed goal is announced exactly once.
func (d *SideEffectDispatcher) advanceGoals(ctx context.Context, rec *entities.TransferRecord) error {
	goals, err := d.goalRepo.AddProgress(ctx, rec.ReceiverID, entities.StreamOf(rec.Metadata), rec.Amount)
	if err != nil {
		return fmt.Errorf("failed to add goal progress: %w", err)
	}

	var errs []error
	for _, goal := range goals {
		data := entities.GoalEventData{
			GoalID:        goal.ID,
			OwnerID:       goal.OwnerID,
			CurrentAmount: goal.CurrentAmount,
			TargetAmount:  goal.TargetAmount,
			Completed:     goal.Completed,
		}
		errs = append(errs, d.publisher.Publish(ctx, entities.GoalChannel(goal.ID), d.event(entities.EventGoalProgress, data)))

		if goal.Completed || goal.CurrentAmount < goal.TargetAmount {
			continue
		}
		won, err := d.goalRepo.MarkCompleted(ctx, goal.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to complete goal %s: %w", goal.ID, err))
			continue
		}
		if !won {
			continue
		}

		metrics.RecordGoalCompleted()
		data.Completed = true
		completed := d.event(entities.EventGoalCompleted, data)
		errs = append(errs,
			d.publisher.Publish(ctx, entities.GoalChannel(goal.ID), completed),
			d.publisher.Publish(ctx, entities.UserChannel(goal.OwnerID), completed),
			d.notify(ctx, goal.OwnerID, entities.NotificationKindGoalCompleted, "Goal reached", goal.Title, data),
		)
	}
	return errors.Join(errs...)
}

func (d *SideEffectDispatcher) notifyReceiver(ctx context.Context, rec *entities.TransferRecord) error {
	return d.notify(ctx, rec.ReceiverID, entities.NotificationKindCoinsReceived,
		fmt.Sprintf("You received %d coins", rec.Amount), string(rec.Type),
		entities.TransferEventData{
			TransactionID: rec.TransactionID,
			SenderID:      rec.SenderID,
			ReceiverID:    rec.ReceiverID,
			Amount:        rec.Amount,
			Type:          rec.Type,
			StreamID:      entities.StreamOf(rec.Metadata),
		})
}

func (d *SideEffectDispatcher) notify(ctx context.Context, userID uuid.UUID, kind entities.NotificationKind, title, body string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification payload: %w", err)
	}
	return d.notificationRepo.Create(ctx, &entities.Notification{
		ID:        utils.GenerateUUIDv7(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Payload:   raw,
		CreatedAt: d.now(),
	})
}

func (d *SideEffectDispatcher) event(name string, data any) entities.RealtimeEvent {
	return entities.RealtimeEvent{Event: name, Data: data, Timestamp: d.now()}
}

// countsAsSupport reports whether a transfer type feeds goals and the leaderboard
func countsAsSupport(t entities.EntryType) bool {
	switch t {
	case entities.EntryTypeTip, entities.EntryTypeStreamTip, entities.EntryTypeGift:
		return true
	}
	return false
}
