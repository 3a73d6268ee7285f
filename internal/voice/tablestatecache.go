package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/aquamarinepk/aqm"
)

// TableStateCache tracks table status keyed by the spoken table number. The
// dispatcher consults it only for advisory validation messages; a cold or
// absent cache never blocks dispatch.
type TableStateCache struct {
	mu     sync.RWMutex
	state  map[string]string
	client *aqm.ServiceClient
	logger aqm.Logger
}

func NewTableStateCache(client *aqm.ServiceClient, logger aqm.Logger) *TableStateCache {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &TableStateCache{
		state:  make(map[string]string),
		client: client,
		logger: logger,
	}
}

func (c *TableStateCache) Warm(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	resp, err := c.client.List(ctx, "tables")
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	return c.ingestCollection(resp.Data)
}

func (c *TableStateCache) Get(number string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status, ok := c.state[number]
	return status, ok
}

func (c *TableStateCache) Set(number, status string) {
	if number == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[number] = status
}

// Known reports whether a table number is known at all. An empty cache knows
// nothing and reports true so validation stays advisory.
func (c *TableStateCache) Known(number string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.state) == 0 {
		return true
	}
	_, ok := c.state[number]
	return ok
}

func (c *TableStateCache) ingestCollection(data interface{}) error {
	var records []tableStateDTO
	if err := rehydrate(data, &records); err != nil {
		return err
	}
	for _, record := range records {
		if record.Number == "" {
			c.logger.Debug("skipping table without number", "table_id", record.ID)
			continue
		}
		c.Set(record.Number, record.Status)
	}
	return nil
}

type tableStateDTO struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`
}
