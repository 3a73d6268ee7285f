package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"

	"github.com/tablevox/tablevox/pkg/event"
	"github.com/tablevox/tablevox/pkg/enums/commandkind"
)

// signalNames maps each command kind to the signal screens subscribe to.
// PLACE_ORDER commands carrying menu items are coerced to ORDER before they
// reach the emitter, so they fire the order signal.
var signalNames = map[string]string{
	commandkind.Kinds.Order.Name:         "order-signal",
	commandkind.Kinds.PlaceOrder.Name:    "place-order-signal",
	commandkind.Kinds.Payment.Name:       "payment-signal",
	commandkind.Kinds.KOTPrint.Name:      "kot-print-signal",
	commandkind.Kinds.OrderCancel.Name:   "order-cancel-signal",
	commandkind.Kinds.TableMerge.Name:    "table-merge-signal",
	commandkind.Kinds.TableTransfer.Name: "table-transfer-signal",
	commandkind.Kinds.TableStatus.Name:   "table-status-signal",
	commandkind.Kinds.Customer.Name:      "customer-signal",
	commandkind.Kinds.MenuInquiry.Name:   "menu-inquiry-signal",
}

// SignalName returns the screen-facing signal for a command kind.
func SignalName(kind string) (string, bool) {
	name, ok := signalNames[kind]
	return name, ok
}

// SignalEmitter publishes dispatched commands and navigation requests on the
// event bus that decouples the dispatcher from the screens executing them.
type SignalEmitter struct {
	publisher events.Publisher
	logger    aqm.Logger
}

func NewSignalEmitter(publisher events.Publisher, logger aqm.Logger) *SignalEmitter {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &SignalEmitter{
		publisher: publisher,
		logger:    logger,
	}
}

func (e *SignalEmitter) EmitCommand(ctx context.Context, cmd *Command) error {
	if e.publisher == nil {
		return fmt.Errorf("signal emitter not configured")
	}

	signal, ok := SignalName(cmd.Kind)
	if !ok {
		return fmt.Errorf("no signal for command kind %q", cmd.Kind)
	}

	evt := event.CommandSignalEvent{
		EventType:    event.EventCommandDispatched,
		Signal:       signal,
		RestaurantID: cmd.RestaurantID.String(),
		Command:      commandPayload(cmd),
		OccurredAt:   time.Now(),
	}

	msg, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("cannot marshal command signal: %w", err)
	}

	if err := e.publisher.Publish(ctx, event.CommandsTopic, msg); err != nil {
		return fmt.Errorf("cannot publish command signal: %w", err)
	}

	e.logger.Debug("command signal emitted", "signal", signal, "command_id", cmd.ID.String())
	return nil
}

func (e *SignalEmitter) EmitNavigation(ctx context.Context, cmd *Command, targetRoute, action string) error {
	if e.publisher == nil {
		return fmt.Errorf("signal emitter not configured")
	}

	evt := event.NavigationEvent{
		EventType:    event.EventNavigationRequested,
		RestaurantID: cmd.RestaurantID.String(),
		TargetRoute:  targetRoute,
		Action:       action,
		TableNumber:  cmd.TableNumber,
		OccurredAt:   time.Now(),
	}

	msg, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("cannot marshal navigation event: %w", err)
	}

	return e.publisher.Publish(ctx, event.NavigationTopic, msg)
}

func commandPayload(cmd *Command) event.CommandPayload {
	payload := event.CommandPayload{
		ID:                cmd.ID.String(),
		Kind:              cmd.Kind,
		OriginalText:      cmd.OriginalText,
		TableNumber:       cmd.TableNumber,
		TargetTableNumber: cmd.TargetTableNumber,
		PaymentMethod:     cmd.PaymentMethod,
		CustomerName:      cmd.CustomerName,
		CustomerPhone:     cmd.CustomerPhone,
	}
	for _, item := range cmd.MenuItems {
		payload.MenuItems = append(payload.MenuItems, event.MenuItemPayload{
			Name:     item.Name,
			Quantity: item.Quantity,
		})
	}
	return payload
}
