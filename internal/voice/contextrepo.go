package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ContextRepo is the durable single-slot store for incomplete commands,
// keyed by restaurant. Get returns nil when no context is stored; no
// expiry is applied at the store level.
type ContextRepo interface {
	Get(ctx context.Context, restaurantID uuid.UUID) (*IncompleteContext, error)
	Set(ctx context.Context, ic *IncompleteContext) error
	Clear(ctx context.Context, restaurantID uuid.UUID) error
}

// MemoryContextRepo is an in-process ContextRepo used when no database is
// configured and throughout the tests.
type MemoryContextRepo struct {
	mu       sync.RWMutex
	contexts map[uuid.UUID]*IncompleteContext
}

func NewMemoryContextRepo() *MemoryContextRepo {
	return &MemoryContextRepo{
		contexts: make(map[uuid.UUID]*IncompleteContext),
	}
}

func (r *MemoryContextRepo) Get(ctx context.Context, restaurantID uuid.UUID) (*IncompleteContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ic, ok := r.contexts[restaurantID]
	if !ok {
		return nil, nil
	}
	return ic, nil
}

func (r *MemoryContextRepo) Set(ctx context.Context, ic *IncompleteContext) error {
	if ic == nil || ic.RestaurantID == uuid.Nil {
		return fmt.Errorf("incomplete context requires a restaurant id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[ic.RestaurantID] = ic
	return nil
}

func (r *MemoryContextRepo) Clear(ctx context.Context, restaurantID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, restaurantID)
	return nil
}
