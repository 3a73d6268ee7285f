package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/tablevox/tablevox/pkg/enums/commandkind"
)

const (
	// DefaultErrorRecovery is how long the dispatcher stays in the error
	// state before cycling back to idle.
	DefaultErrorRecovery = 3 * time.Second
	// DefaultSettleDelay is the wait after route arrival before a pending
	// command is delivered, covering the destination screen's subscribe lag.
	DefaultSettleDelay = 400 * time.Millisecond
)

// Options tune dispatcher behavior. A zero duration selects the default; a
// negative duration disables the wait entirely.
type Options struct {
	// GateTableOps routes table merge/transfer/status through the tables
	// overview like payment does. Off by default: those three emit directly.
	GateTableOps  bool
	ErrorRecovery time.Duration
	SettleDelay   time.Duration
}

func (o Options) normalized() Options {
	o.ErrorRecovery = normalizeDelay(o.ErrorRecovery, DefaultErrorRecovery)
	o.SettleDelay = normalizeDelay(o.SettleDelay, DefaultSettleDelay)
	return o
}

func normalizeDelay(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	if d < 0 {
		return 0
	}
	return d
}

type DispatcherDeps struct {
	Classifier Classifier
	Contexts   ContextRepo
	Signals    *SignalEmitter
	Notifier   *Notifier
	Tables     *TableStateCache
}

// Dispatcher owns the command lifecycle for one restaurant's voice session:
// classify, store-or-merge incomplete commands, and route complete commands
// to the screen that executes them, navigating first when needed. All state
// lives on the session, never in package-level slots.
type Dispatcher struct {
	mu           sync.Mutex
	restaurantID uuid.UUID
	state        State
	pending      *PendingCommand
	activeRoute  string

	classifier Classifier
	merger     *MergeEngine
	contexts   ContextRepo
	signals    *SignalEmitter
	notifier   *Notifier
	tables     *TableStateCache
	opts       Options
	logger     aqm.Logger
}

func NewDispatcher(restaurantID uuid.UUID, deps DispatcherDeps, opts Options, logger aqm.Logger) *Dispatcher {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Dispatcher{
		restaurantID: restaurantID,
		state:        Idle(),
		classifier:   deps.Classifier,
		merger:       NewMergeEngine(deps.Classifier, logger),
		contexts:     deps.Contexts,
		signals:      deps.Signals,
		notifier:     deps.Notifier,
		tables:       deps.Tables,
		opts:         opts.normalized(),
		logger:       logger,
	}
}

func (d *Dispatcher) RestaurantID() uuid.UUID {
	return d.restaurantID
}

// State returns a copy of the current control state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) ActiveRoute() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeRoute
}

// Pending returns the deferred command waiting on navigation, if any.
func (d *Dispatcher) Pending() *PendingCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil
	}
	p := *d.pending
	return &p
}

// IncompleteContext returns the stored partial command awaiting more input.
func (d *Dispatcher) IncompleteContext() *IncompleteContext {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Kind != StateAwaitingMerge {
		return nil
	}
	return d.state.Context
}

// Restore reads back a persisted incomplete context after a reload or
// restaurant switch and surfaces it as a recovery prompt.
func (d *Dispatcher) Restore(ctx context.Context) error {
	ic, err := d.contexts.Get(ctx, d.restaurantID)
	if err != nil {
		return fmt.Errorf("cannot restore incomplete context: %w", err)
	}
	if ic == nil {
		return nil
	}

	d.mu.Lock()
	d.setState(AwaitingMerge(ic))
	d.mu.Unlock()

	d.notifier.RecoveryPrompt(ctx, ic)
	d.logger.Info("incomplete command restored", "restaurant_id", d.restaurantID.String(), "missing", ic.MissingFields)
	return nil
}

// HandleUtterance drives one recognized utterance through the lifecycle:
// merge against a pending incomplete command when one exists, otherwise
// classify fresh; store incomplete results, execute complete ones.
func (d *Dispatcher) HandleUtterance(ctx context.Context, rawText string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Kind == StateAwaitingMerge && d.state.Context != nil {
		stored := d.state.Context

		merged, err := d.merger.Merge(ctx, stored, rawText)
		if err != nil {
			d.logger.Error("merge engine failed", "error", err)
			merged = nil
		}

		// One shot: the stored context is discarded whatever the outcome.
		if cerr := d.contexts.Clear(ctx, d.restaurantID); cerr != nil {
			d.logger.Error("cannot clear incomplete context", "error", cerr)
		}
		d.setState(Idle())

		if merged != nil {
			return d.execute(ctx, merged)
		}
		d.logger.Debug("merge failed, treating input as fresh", "restaurant_id", d.restaurantID.String())
	}

	cmd, err := d.classifier.Classify(ctx, d.restaurantID, rawText, nil)
	if err != nil {
		d.notifier.Error(ctx, d.restaurantID, "Could not understand the command, please try again")
		return fmt.Errorf("cannot classify utterance: %w", err)
	}

	if cmd.IsIncomplete {
		ic := NewIncompleteContext(cmd)
		if err := d.contexts.Set(ctx, ic); err != nil {
			d.logger.Error("cannot persist incomplete context", "error", err)
		}
		d.setState(AwaitingMerge(ic))
		d.notifier.RecoveryPrompt(ctx, ic)
		return nil
	}

	return d.execute(ctx, cmd)
}

// Dismiss clears the pending incomplete command in memory and in the store.
func (d *Dispatcher) Dismiss(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.contexts.Clear(ctx, d.restaurantID); err != nil {
		return fmt.Errorf("cannot clear incomplete context: %w", err)
	}
	if d.state.Kind == StateAwaitingMerge {
		d.setState(Idle())
	}
	return nil
}

// ReportRoute records the screen's active route. When the route satisfies a
// pending command's target the command is delivered exactly once after the
// settling delay.
func (d *Dispatcher) ReportRoute(ctx context.Context, route string) {
	d.mu.Lock()
	d.activeRoute = route
	p := d.pending
	if p == nil || !RouteMatches(route, p.TargetRoute) {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()

	if d.opts.SettleDelay <= 0 {
		d.deliverPending(ctx, p)
		return
	}
	time.AfterFunc(d.opts.SettleDelay, func() {
		d.deliverPending(context.Background(), p)
	})
}

func (d *Dispatcher) deliverPending(ctx context.Context, p *PendingCommand) {
	if err := d.signals.EmitCommand(ctx, p.Command); err != nil {
		d.logger.Error("cannot deliver pending command", "error", err, "action", p.Action)
		d.notifier.Error(ctx, d.restaurantID, "Command could not be delivered")
		return
	}
	d.logger.Info("pending command delivered", "action", p.Action, "route", p.TargetRoute)
}

// execute runs a complete command through its per-kind branch. Validation
// failures notify the user and return to idle; only unexpected failures move
// the machine to the error state.
func (d *Dispatcher) execute(ctx context.Context, cmd *Command) error {
	d.setState(Executing(cmd))

	err := d.runBranch(ctx, cmd)
	if err != nil {
		d.notifier.Error(ctx, d.restaurantID, "Command failed, please try again")
		d.setState(Errored(err.Error()))
		d.scheduleRecovery()
		return err
	}

	d.setState(Idle())
	return nil
}

func (d *Dispatcher) runBranch(ctx context.Context, cmd *Command) error {
	switch cmd.Kind {
	case commandkind.Kinds.PlaceOrder.Name:
		// A merged "place order for table 4 with two burgers" must add the
		// items before placing, so it re-types as ORDER and takes that branch.
		if len(cmd.MenuItems) > 0 {
			coerced := cmd.Clone()
			coerced.Kind = commandkind.Kinds.Order.Name
			return d.runBranch(ctx, coerced)
		}
		if !d.validated(ctx, cmd) {
			return nil
		}
		return d.signals.EmitCommand(ctx, cmd)

	case commandkind.Kinds.Order.Name:
		if !d.validated(ctx, cmd) {
			return nil
		}
		target := TableOrderRoute(d.restaurantID, cmd.TableNumber)
		if !RouteMatches(d.activeRoute, target) {
			return d.deferTo(ctx, cmd, target, "order")
		}
		return d.signals.EmitCommand(ctx, cmd)

	case commandkind.Kinds.Payment.Name,
		commandkind.Kinds.KOTPrint.Name,
		commandkind.Kinds.OrderCancel.Name:
		if !d.validated(ctx, cmd) {
			return nil
		}
		return d.gateOnOverview(ctx, cmd)

	case commandkind.Kinds.TableMerge.Name,
		commandkind.Kinds.TableTransfer.Name,
		commandkind.Kinds.TableStatus.Name:
		if !d.validated(ctx, cmd) {
			return nil
		}
		if d.opts.GateTableOps {
			return d.gateOnOverview(ctx, cmd)
		}
		return d.signals.EmitCommand(ctx, cmd)

	case commandkind.Kinds.Customer.Name, commandkind.Kinds.MenuInquiry.Name:
		if !d.validated(ctx, cmd) {
			return nil
		}
		return d.signals.EmitCommand(ctx, cmd)

	default:
		d.notifier.Error(ctx, d.restaurantID, "Command not recognized")
		return nil
	}
}

func (d *Dispatcher) validated(ctx context.Context, cmd *Command) bool {
	errs := ValidateCommand(cmd)
	if len(errs) > 0 {
		d.notifier.Error(ctx, d.restaurantID, strings.Join(errs, "; "))
		return false
	}
	if d.tables != nil && cmd.TableNumber != "" && !d.tables.Known(cmd.TableNumber) {
		d.notifier.Error(ctx, d.restaurantID, fmt.Sprintf("Table %s is not recognized", cmd.TableNumber))
		return false
	}
	return true
}

// gateOnOverview emits from the tables overview, deferring behind a
// navigation when the screen is elsewhere.
func (d *Dispatcher) gateOnOverview(ctx context.Context, cmd *Command) error {
	target := TablesOverviewRoute(d.restaurantID)
	if !RouteMatches(d.activeRoute, target) {
		return d.deferTo(ctx, cmd, target, cmd.Kind)
	}
	return d.signals.EmitCommand(ctx, cmd)
}

// deferTo stores the command as pending and asks the screen to navigate. A
// newer deferred command overwrites the slot; an unreached route leaves the
// command pending indefinitely.
func (d *Dispatcher) deferTo(ctx context.Context, cmd *Command, target, action string) error {
	d.pending = &PendingCommand{
		Command:     cmd,
		TargetRoute: target,
		Action:      action,
		StoredAt:    time.Now(),
	}

	msg := fmt.Sprintf("Navigating to run %s", action)
	if cmd.TableNumber != "" {
		msg = fmt.Sprintf("%s for table %s", msg, cmd.TableNumber)
	}
	d.notifier.Info(ctx, d.restaurantID, msg)

	return d.signals.EmitNavigation(ctx, cmd, target, action)
}

func (d *Dispatcher) scheduleRecovery() {
	delay := d.opts.ErrorRecovery
	if delay <= 0 {
		d.setState(Idle())
		return
	}
	time.AfterFunc(delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.state.Kind == StateError {
			d.setState(Idle())
		}
	})
}

func (d *Dispatcher) setState(to State) {
	next, err := Transition(d.state, to)
	if err != nil {
		d.logger.Error("dispatcher transition rejected", "error", err)
		return
	}
	d.state = next
	d.logger.Debug("dispatcher state", "restaurant_id", d.restaurantID.String(), "state", next.Kind.String())
}
