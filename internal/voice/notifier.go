package voice

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"

	"github.com/tablevox/tablevox/pkg/event"
)

// Notifier pushes transient user-facing messages to the staff UI. Failures
// to deliver a toast are logged, never surfaced to the dispatch flow.
type Notifier struct {
	publisher events.Publisher
	logger    aqm.Logger
}

func NewNotifier(publisher events.Publisher, logger aqm.Logger) *Notifier {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Notifier{
		publisher: publisher,
		logger:    logger,
	}
}

func (n *Notifier) Info(ctx context.Context, restaurantID uuid.UUID, message string) {
	n.publish(ctx, restaurantID, "info", message)
}

func (n *Notifier) Error(ctx context.Context, restaurantID uuid.UUID, message string) {
	n.publish(ctx, restaurantID, "error", message)
}

func (n *Notifier) publish(ctx context.Context, restaurantID uuid.UUID, level, message string) {
	if n.publisher == nil {
		return
	}

	evt := event.NotificationEvent{
		EventType:    event.EventNotification,
		RestaurantID: restaurantID.String(),
		Level:        level,
		Message:      message,
		OccurredAt:   time.Now(),
	}

	msg, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("cannot marshal notification", "error", err)
		return
	}

	if err := n.publisher.Publish(ctx, event.NotificationsTopic, msg); err != nil {
		n.logger.Error("cannot publish notification", "error", err)
	}
}

// RecoveryPrompt surfaces a stored incomplete command so the UI can show the
// missing-field description and offer dismiss or retry-by-voice.
func (n *Notifier) RecoveryPrompt(ctx context.Context, ic *IncompleteContext) {
	if n.publisher == nil || ic == nil {
		return
	}

	evt := event.RecoveryPromptEvent{
		EventType:     event.EventRecoveryPrompt,
		RestaurantID:  ic.RestaurantID.String(),
		OriginalText:  ic.Command.OriginalText,
		MissingFields: ic.MissingFields,
		CreatedAt:     ic.CreatedAt,
		OccurredAt:    time.Now(),
	}

	msg, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("cannot marshal recovery prompt", "error", err)
		return
	}

	if err := n.publisher.Publish(ctx, event.NotificationsTopic, msg); err != nil {
		n.logger.Error("cannot publish recovery prompt", "error", err)
	}
}
