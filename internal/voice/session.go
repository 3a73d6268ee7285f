package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

// SessionRegistry owns one dispatcher per restaurant. Attaching to a
// restaurant creates the session on first use and restores any persisted
// incomplete command, which surfaces the recovery prompt.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Dispatcher
	deps     DispatcherDeps
	opts     Options
	logger   aqm.Logger
}

func NewSessionRegistry(deps DispatcherDeps, opts Options, logger aqm.Logger) *SessionRegistry {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &SessionRegistry{
		sessions: make(map[uuid.UUID]*Dispatcher),
		deps:     deps,
		opts:     opts,
		logger:   logger,
	}
}

// Attach returns the restaurant's dispatcher, creating and restoring it on
// first use.
func (r *SessionRegistry) Attach(ctx context.Context, restaurantID uuid.UUID) (*Dispatcher, error) {
	if restaurantID == uuid.Nil {
		return nil, fmt.Errorf("invalid restaurant id")
	}

	r.mu.RLock()
	d, ok := r.sessions[restaurantID]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	r.mu.Lock()
	if d, ok = r.sessions[restaurantID]; !ok {
		d = NewDispatcher(restaurantID, r.deps, r.opts, r.logger)
		r.sessions[restaurantID] = d
	}
	r.mu.Unlock()

	if err := d.Restore(ctx); err != nil {
		r.logger.Error("cannot restore voice session", "restaurant_id", restaurantID.String(), "error", err)
	}
	return d, nil
}

// Get returns an existing session without creating one.
func (r *SessionRegistry) Get(restaurantID uuid.UUID) (*Dispatcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.sessions[restaurantID]
	return d, ok
}
