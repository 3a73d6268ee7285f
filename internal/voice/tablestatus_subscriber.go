package voice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"

	"github.com/tablevox/tablevox/pkg"
)

// TableStatusSubscriber keeps the table-state cache current from table
// status events published by the table service.
type TableStatusSubscriber struct {
	subscriber events.Subscriber
	cache      *TableStateCache
	logger     aqm.Logger
}

func NewTableStatusSubscriber(sub events.Subscriber, cache *TableStateCache, logger aqm.Logger) *TableStatusSubscriber {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &TableStatusSubscriber{
		subscriber: sub,
		cache:      cache,
		logger:     logger,
	}
}

func (s *TableStatusSubscriber) Start(ctx context.Context) error {
	s.logger.Info("starting table status subscriber", "topic", pkg.TableStatusTopic)
	if s.cache != nil {
		if err := s.cache.Warm(ctx); err != nil {
			s.logger.Info("table cache warmup failed", "error", err)
		}
	}
	if s.subscriber == nil {
		return fmt.Errorf("table status subscriber not configured")
	}
	return s.subscriber.Subscribe(ctx, pkg.TableStatusTopic, s.handleEvent)
}

func (s *TableStatusSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var evt pkg.TableStatusEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Info("invalid table status event", "error", err)
		return nil
	}

	if evt.TableNumber == "" {
		s.logger.Debug("table status event without number", "table_id", evt.TableID)
		return nil
	}

	s.cache.Set(evt.TableNumber, evt.Status)
	s.logger.Debug("table status updated", "table_number", evt.TableNumber, "status", evt.Status)
	return nil
}
