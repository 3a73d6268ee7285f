package voice

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tablevox/tablevox/pkg/event"
	"github.com/tablevox/tablevox/pkg/enums/commandkind"
)

var dispatcherRestaurantID = uuid.MustParse("550e8400-e29b-41d4-a716-446655440020")

func scriptedClassifier(cmd *Command) *MockClassifier {
	return &MockClassifier{
		ClassifyFunc: func(ctx context.Context, restaurantID uuid.UUID, rawText string, prior *Command) (*Command, error) {
			c := cmd.Clone()
			c.RestaurantID = restaurantID
			c.OriginalText = rawText
			c.EnsureID()
			return c, nil
		},
	}
}

func TestDispatchValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name:    "orderWithoutTable",
			command: Command{Kind: commandkind.Kinds.Order.Name, MenuItems: []MenuItemRef{{Name: "burger", Quantity: 1}}},
		},
		{
			name:    "orderWithoutItems",
			command: Command{Kind: commandkind.Kinds.Order.Name, TableNumber: "4"},
		},
		{
			name:    "placeOrderWithoutTable",
			command: Command{Kind: commandkind.Kinds.PlaceOrder.Name},
		},
		{
			name:    "paymentWithoutTable",
			command: Command{Kind: commandkind.Kinds.Payment.Name},
		},
		{
			name:    "kotPrintWithoutTable",
			command: Command{Kind: commandkind.Kinds.KOTPrint.Name},
		},
		{
			name:    "orderCancelWithoutTable",
			command: Command{Kind: commandkind.Kinds.OrderCancel.Name},
		},
		{
			name:    "tableMergeWithoutTarget",
			command: Command{Kind: commandkind.Kinds.TableMerge.Name, TableNumber: "4"},
		},
		{
			name:    "tableTransferWithoutTable",
			command: Command{Kind: commandkind.Kinds.TableTransfer.Name, TargetTableNumber: "7"},
		},
		{
			name:    "tableStatusWithoutTable",
			command: Command{Kind: commandkind.Kinds.TableStatus.Name},
		},
		{
			name:    "customerWithoutNameOrPhone",
			command: Command{Kind: commandkind.Kinds.Customer.Name},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := NewMockPublisher()
			d, _ := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&tt.command), pub, fastOptions())

			if err := d.HandleUtterance(context.Background(), tt.name); err != nil {
				t.Fatalf("HandleUtterance() error: %v", err)
			}

			if signals := pub.CommandSignals(t); len(signals) != 0 {
				t.Errorf("validation failure must not emit a signal, got %d", len(signals))
			}
			if len(pub.Published(event.NotificationsTopic)) == 0 {
				t.Error("validation failure should notify the user")
			}
			if got := d.State().Kind; got != StateIdle {
				t.Errorf("state = %s, want idle after validation failure", got)
			}
		})
	}
}

func TestIncompleteCommandStoredNotDispatched(t *testing.T) {
	incomplete := Command{
		Kind:          commandkind.Kinds.Order.Name,
		TableNumber:   "4",
		IsIncomplete:  true,
		MissingFields: "at least one menu item is required",
	}

	pub := NewMockPublisher()
	d, repo := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&incomplete), pub, fastOptions())

	if err := d.HandleUtterance(context.Background(), "order for table 4"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}

	if signals := pub.CommandSignals(t); len(signals) != 0 {
		t.Error("incomplete command must not be dispatched")
	}

	stored, err := repo.Get(context.Background(), dispatcherRestaurantID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored == nil {
		t.Fatal("incomplete command should be persisted")
	}
	if stored.MissingFields != incomplete.MissingFields {
		t.Errorf("stored missing fields = %q", stored.MissingFields)
	}

	if got := d.State().Kind; got != StateAwaitingMerge {
		t.Errorf("state = %s, want awaiting-merge", got)
	}
	if d.IncompleteContext() == nil {
		t.Error("IncompleteContext() should expose the stored context")
	}
}

func TestMergeFlowEmitsExactlyOneSignal(t *testing.T) {
	pub := NewMockPublisher()
	d, repo := newTestDispatcher(dispatcherRestaurantID, NewRuleClassifier(nil), pub, fastOptions())
	ctx := context.Background()

	// The screen is already on the table-order screen for table 4.
	d.ReportRoute(ctx, TableOrderRoute(dispatcherRestaurantID, "4"))

	if err := d.HandleUtterance(ctx, "order for table 4"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}
	if got := d.State().Kind; got != StateAwaitingMerge {
		t.Fatalf("state = %s, want awaiting-merge", got)
	}

	if err := d.HandleUtterance(ctx, "two burgers"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}

	signals := pub.CommandSignals(t)
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want exactly one", len(signals))
	}
	if signals[0].Signal != "order-signal" {
		t.Errorf("signal = %q, want order-signal", signals[0].Signal)
	}
	if signals[0].Command.TableNumber != "4" {
		t.Errorf("signal table = %q, want 4", signals[0].Command.TableNumber)
	}
	if len(signals[0].Command.MenuItems) != 1 || signals[0].Command.MenuItems[0].Quantity != 2 {
		t.Errorf("signal items = %v, want burger x2", signals[0].Command.MenuItems)
	}

	stored, err := repo.Get(ctx, dispatcherRestaurantID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored != nil {
		t.Error("merge success must clear the stored context")
	}
	if got := d.State().Kind; got != StateIdle {
		t.Errorf("state = %s, want idle", got)
	}
}

func TestMergeFlowNavigatesWhenRouteDiffers(t *testing.T) {
	pub := NewMockPublisher()
	d, _ := newTestDispatcher(dispatcherRestaurantID, NewRuleClassifier(nil), pub, fastOptions())
	ctx := context.Background()

	d.ReportRoute(ctx, TablesOverviewRoute(dispatcherRestaurantID))

	if err := d.HandleUtterance(ctx, "order for table 4"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}
	if err := d.HandleUtterance(ctx, "two burgers"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}

	if signals := pub.CommandSignals(t); len(signals) != 0 {
		t.Fatal("signal must wait for the table-order route")
	}
	if len(pub.Published(event.NavigationTopic)) != 1 {
		t.Fatal("a navigation push should be requested")
	}

	d.ReportRoute(ctx, TableOrderRoute(dispatcherRestaurantID, "4"))

	signals := pub.CommandSignals(t)
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want exactly one after arrival", len(signals))
	}
	if signals[0].Signal != "order-signal" {
		t.Errorf("signal = %q, want order-signal", signals[0].Signal)
	}
}

func TestMergeFailureDiscardsContext(t *testing.T) {
	classifier := &MockClassifier{
		ClassifyFunc: func(ctx context.Context, restaurantID uuid.UUID, rawText string, prior *Command) (*Command, error) {
			if prior != nil {
				// Merge attempts never resolve the missing fields.
				still := prior.Clone()
				still.IsIncomplete = true
				return still, nil
			}
			if rawText == "order for table 4" {
				cmd := NewCommand(restaurantID, commandkind.Kinds.Order.Name, rawText)
				cmd.TableNumber = "4"
				cmd.IsIncomplete = true
				cmd.MissingFields = "at least one menu item is required"
				return cmd, nil
			}
			// Fresh classification of the second utterance: an unrelated,
			// complete payment command.
			cmd := NewCommand(restaurantID, commandkind.Kinds.Payment.Name, rawText)
			cmd.TableNumber = "9"
			return cmd, nil
		},
	}

	pub := NewMockPublisher()
	d, repo := newTestDispatcher(dispatcherRestaurantID, classifier, pub, fastOptions())
	ctx := context.Background()

	d.ReportRoute(ctx, TablesOverviewRoute(dispatcherRestaurantID))

	if err := d.HandleUtterance(ctx, "order for table 4"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}
	if err := d.HandleUtterance(ctx, "take payment for table 9"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}

	stored, err := repo.Get(ctx, dispatcherRestaurantID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored != nil {
		t.Error("failed merge must discard the stored context")
	}

	signals := pub.CommandSignals(t)
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want the fresh command only", len(signals))
	}
	if signals[0].Signal != "payment-signal" {
		t.Errorf("signal = %q, want payment-signal", signals[0].Signal)
	}
	if signals[0].Command.TableNumber != "9" {
		t.Errorf("signal table = %q, fields from the discarded context must not leak", signals[0].Command.TableNumber)
	}
	if len(signals[0].Command.MenuItems) != 0 {
		t.Error("discarded context fields must not leak into the fresh command")
	}
}

func TestPlaceOrderWithItemsCoercesToOrder(t *testing.T) {
	placeOrder := Command{
		Kind:        commandkind.Kinds.PlaceOrder.Name,
		TableNumber: "4",
		MenuItems:   []MenuItemRef{{Name: "burger", Quantity: 2}},
	}

	pub := NewMockPublisher()
	d, _ := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&placeOrder), pub, fastOptions())
	ctx := context.Background()

	d.ReportRoute(ctx, TableOrderRoute(dispatcherRestaurantID, "4"))

	if err := d.HandleUtterance(ctx, "place order for table 4 with two burgers"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}

	signals := pub.CommandSignals(t)
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want one", len(signals))
	}
	if signals[0].Signal != "order-signal" {
		t.Errorf("signal = %q, want order-signal (coerced), not place-order-signal", signals[0].Signal)
	}
	if signals[0].Command.Kind != commandkind.Kinds.Order.Name {
		t.Errorf("command kind = %q, want order", signals[0].Command.Kind)
	}
}

func TestPlaceOrderWithoutItemsEmitsPlainSignal(t *testing.T) {
	placeOrder := Command{
		Kind:        commandkind.Kinds.PlaceOrder.Name,
		TableNumber: "4",
	}

	pub := NewMockPublisher()
	d, _ := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&placeOrder), pub, fastOptions())

	if err := d.HandleUtterance(context.Background(), "place order for table 4"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}

	signals := pub.CommandSignals(t)
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want one", len(signals))
	}
	if signals[0].Signal != "place-order-signal" {
		t.Errorf("signal = %q, want place-order-signal", signals[0].Signal)
	}
}

func TestOrderNavigationDeferral(t *testing.T) {
	order := Command{
		Kind:        commandkind.Kinds.Order.Name,
		TableNumber: "4",
		MenuItems:   []MenuItemRef{{Name: "burger", Quantity: 2}},
	}

	pub := NewMockPublisher()
	d, _ := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&order), pub, fastOptions())
	ctx := context.Background()

	d.ReportRoute(ctx, TablesOverviewRoute(dispatcherRestaurantID))

	if err := d.HandleUtterance(ctx, "order two burgers for table 4"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}

	if signals := pub.CommandSignals(t); len(signals) != 0 {
		t.Fatal("signal must not fire before the route matches")
	}

	pending := d.Pending()
	if pending == nil {
		t.Fatal("a pending command should be stored")
	}
	want := TableOrderRoute(dispatcherRestaurantID, "4")
	if pending.TargetRoute != want {
		t.Errorf("pending target = %q, want %q", pending.TargetRoute, want)
	}
	if len(pub.Published(event.NavigationTopic)) != 1 {
		t.Error("a navigation push should be requested")
	}

	// An unrelated route does not release the pending command.
	d.ReportRoute(ctx, TableOrderRoute(dispatcherRestaurantID, "9"))
	if signals := pub.CommandSignals(t); len(signals) != 0 {
		t.Fatal("signal must not fire on an unrelated route")
	}
	if d.Pending() == nil {
		t.Fatal("pending command must survive unrelated navigation")
	}

	d.ReportRoute(ctx, want)
	signals := pub.CommandSignals(t)
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want exactly one after arrival", len(signals))
	}
	if d.Pending() != nil {
		t.Error("pending slot should clear after delivery")
	}

	// Re-arriving must not emit a duplicate.
	d.ReportRoute(ctx, want)
	if signals := pub.CommandSignals(t); len(signals) != 1 {
		t.Errorf("signals = %d, want no duplicate emission", len(signals))
	}
}

func TestPendingCommandSuperseded(t *testing.T) {
	pub := NewMockPublisher()
	d, _ := newTestDispatcher(dispatcherRestaurantID, NewRuleClassifier(nil), pub, fastOptions())
	ctx := context.Background()

	d.ReportRoute(ctx, TablesOverviewRoute(dispatcherRestaurantID))

	if err := d.HandleUtterance(ctx, "order two burgers for table 4"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}
	if err := d.HandleUtterance(ctx, "order one cola for table 7"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}

	pending := d.Pending()
	if pending == nil || pending.Command.TableNumber != "7" {
		t.Fatal("the newer command should overwrite the pending slot")
	}

	// Arriving at the superseded command's route delivers nothing.
	d.ReportRoute(ctx, TableOrderRoute(dispatcherRestaurantID, "4"))
	if signals := pub.CommandSignals(t); len(signals) != 0 {
		t.Fatal("superseded command must never fire")
	}

	d.ReportRoute(ctx, TableOrderRoute(dispatcherRestaurantID, "7"))
	signals := pub.CommandSignals(t)
	if len(signals) != 1 {
		t.Fatalf("signals = %d, want one", len(signals))
	}
	if signals[0].Command.TableNumber != "7" {
		t.Errorf("signal table = %q, want the superseding command", signals[0].Command.TableNumber)
	}
}

func TestPaymentGatedOnTablesOverview(t *testing.T) {
	payment := Command{Kind: commandkind.Kinds.Payment.Name, TableNumber: "3"}

	t.Run("awayFromOverview", func(t *testing.T) {
		pub := NewMockPublisher()
		d, _ := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&payment), pub, fastOptions())
		ctx := context.Background()

		d.ReportRoute(ctx, "/restaurants/"+dispatcherRestaurantID.String()+"/menu")
		if err := d.HandleUtterance(ctx, "bill for table 3"); err != nil {
			t.Fatalf("HandleUtterance() error: %v", err)
		}

		if signals := pub.CommandSignals(t); len(signals) != 0 {
			t.Fatal("payment must wait for the tables overview")
		}

		d.ReportRoute(ctx, TablesOverviewRoute(dispatcherRestaurantID))
		if signals := pub.CommandSignals(t); len(signals) != 1 || signals[0].Signal != "payment-signal" {
			t.Fatalf("want exactly one payment-signal after arrival, got %v", signals)
		}
	})

	t.Run("tableScreenCountsAsOverview", func(t *testing.T) {
		pub := NewMockPublisher()
		d, _ := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&payment), pub, fastOptions())
		ctx := context.Background()

		d.ReportRoute(ctx, TableOrderRoute(dispatcherRestaurantID, "3"))
		if err := d.HandleUtterance(ctx, "bill for table 3"); err != nil {
			t.Fatalf("HandleUtterance() error: %v", err)
		}

		if signals := pub.CommandSignals(t); len(signals) != 1 {
			t.Fatal("payment should emit directly from under the overview")
		}
	})
}

func TestTableOpsGating(t *testing.T) {
	merge := Command{
		Kind:              commandkind.Kinds.TableMerge.Name,
		TableNumber:       "4",
		TargetTableNumber: "7",
	}

	t.Run("ungatedByDefault", func(t *testing.T) {
		pub := NewMockPublisher()
		d, _ := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&merge), pub, fastOptions())

		if err := d.HandleUtterance(context.Background(), "merge table 4 into table 7"); err != nil {
			t.Fatalf("HandleUtterance() error: %v", err)
		}

		signals := pub.CommandSignals(t)
		if len(signals) != 1 || signals[0].Signal != "table-merge-signal" {
			t.Fatalf("want a direct table-merge-signal, got %v", signals)
		}
	})

	t.Run("gatedWhenConfigured", func(t *testing.T) {
		opts := fastOptions()
		opts.GateTableOps = true

		pub := NewMockPublisher()
		d, _ := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&merge), pub, opts)
		ctx := context.Background()

		if err := d.HandleUtterance(ctx, "merge table 4 into table 7"); err != nil {
			t.Fatalf("HandleUtterance() error: %v", err)
		}
		if signals := pub.CommandSignals(t); len(signals) != 0 {
			t.Fatal("gated table merge must wait for the overview")
		}

		d.ReportRoute(ctx, TablesOverviewRoute(dispatcherRestaurantID))
		if signals := pub.CommandSignals(t); len(signals) != 1 || signals[0].Signal != "table-merge-signal" {
			t.Fatalf("want table-merge-signal after arrival, got %v", signals)
		}
	})
}

func TestDismissClearsStoreAndState(t *testing.T) {
	incomplete := Command{
		Kind:          commandkind.Kinds.Order.Name,
		TableNumber:   "4",
		IsIncomplete:  true,
		MissingFields: "at least one menu item is required",
	}

	pub := NewMockPublisher()
	d, repo := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&incomplete), pub, fastOptions())
	ctx := context.Background()

	if err := d.HandleUtterance(ctx, "order for table 4"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}
	if d.IncompleteContext() == nil {
		t.Fatal("expected a stored incomplete context")
	}

	if err := d.Dismiss(ctx); err != nil {
		t.Fatalf("Dismiss() error: %v", err)
	}

	stored, err := repo.Get(ctx, dispatcherRestaurantID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored != nil {
		t.Error("Dismiss() must clear the persisted entry")
	}
	if d.IncompleteContext() != nil {
		t.Error("Dismiss() must clear the in-memory context")
	}
	if got := d.State().Kind; got != StateIdle {
		t.Errorf("state = %s, want idle after dismiss", got)
	}
}

func TestExecutionErrorRecoversToIdle(t *testing.T) {
	order := Command{
		Kind:        commandkind.Kinds.Order.Name,
		TableNumber: "4",
		MenuItems:   []MenuItemRef{{Name: "burger", Quantity: 1}},
	}

	pub := NewMockPublisher()
	pub.PublishFunc = func(ctx context.Context, topic string, msg []byte) error {
		if topic == event.CommandsTopic {
			return fmt.Errorf("bus unavailable")
		}
		return nil
	}

	opts := fastOptions()
	opts.ErrorRecovery = 20 * time.Millisecond

	d, _ := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&order), pub, opts)
	ctx := context.Background()

	d.ReportRoute(ctx, TableOrderRoute(dispatcherRestaurantID, "4"))

	if err := d.HandleUtterance(ctx, "order one burger for table 4"); err == nil {
		t.Fatal("HandleUtterance() should surface the execution error")
	}
	if got := d.State().Kind; got != StateError {
		t.Fatalf("state = %s, want error", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.State().Kind == StateIdle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("dispatcher should auto-recover to idle")
}

func TestUnrecognizedCommandNotified(t *testing.T) {
	unknown := Command{Kind: ""}

	pub := NewMockPublisher()
	d, _ := newTestDispatcher(dispatcherRestaurantID, scriptedClassifier(&unknown), pub, fastOptions())

	if err := d.HandleUtterance(context.Background(), "do a barrel roll"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}

	if signals := pub.CommandSignals(t); len(signals) != 0 {
		t.Error("unrecognized command must not emit a signal")
	}
	if len(pub.Published(event.NotificationsTopic)) == 0 {
		t.Error("unrecognized command should notify the user")
	}
	if got := d.State().Kind; got != StateIdle {
		t.Errorf("state = %s, want idle", got)
	}
}

func TestNewIncompleteCommandOverwritesPrevious(t *testing.T) {
	pub := NewMockPublisher()

	calls := 0
	classifier := &MockClassifier{
		ClassifyFunc: func(ctx context.Context, restaurantID uuid.UUID, rawText string, prior *Command) (*Command, error) {
			calls++
			cmd := NewCommand(restaurantID, commandkind.Kinds.Order.Name, rawText)
			cmd.TableNumber = fmt.Sprintf("%d", calls)
			cmd.IsIncomplete = true
			cmd.MissingFields = "at least one menu item is required"
			return cmd, nil
		},
	}

	d, repo := newTestDispatcher(dispatcherRestaurantID, classifier, pub, fastOptions())
	ctx := context.Background()

	if err := d.HandleUtterance(ctx, "order for table 1"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}
	if err := d.HandleUtterance(ctx, "order for table 2"); err != nil {
		t.Fatalf("HandleUtterance() error: %v", err)
	}

	stored, err := repo.Get(ctx, dispatcherRestaurantID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored == nil {
		t.Fatal("expected a stored context")
	}
	if stored.Command.TableNumber == "1" {
		t.Error("a newer incomplete command must overwrite the previous one")
	}
}
