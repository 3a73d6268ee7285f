package voice

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/tablevox/tablevox/pkg/event"
)

// MockPublisher records everything published so tests can assert on emitted
// signals and notifications per topic.
type MockPublisher struct {
	mu          sync.Mutex
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
	published   map[string][][]byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		published: make(map[string][][]byte),
	}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, topic, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[topic] = append(m.published[topic], msg)
	return nil
}

func (m *MockPublisher) Published(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([][]byte, len(m.published[topic]))
	copy(msgs, m.published[topic])
	return msgs
}

func (m *MockPublisher) CommandSignals(t *testing.T) []event.CommandSignalEvent {
	t.Helper()
	var signals []event.CommandSignalEvent
	for _, msg := range m.Published(event.CommandsTopic) {
		var evt event.CommandSignalEvent
		if err := json.Unmarshal(msg, &evt); err != nil {
			t.Fatalf("cannot decode command signal: %v", err)
		}
		signals = append(signals, evt)
	}
	return signals
}

// MockClassifier is a func-field classifier for scripting exact drafts.
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, restaurantID uuid.UUID, rawText string, prior *Command) (*Command, error)
}

func (m *MockClassifier) Classify(ctx context.Context, restaurantID uuid.UUID, rawText string, prior *Command) (*Command, error) {
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, restaurantID, rawText, prior)
	}
	return NewCommand(restaurantID, "", rawText), nil
}

func newTestDispatcher(restaurantID uuid.UUID, classifier Classifier, pub *MockPublisher, opts Options) (*Dispatcher, *MemoryContextRepo) {
	repo := NewMemoryContextRepo()
	deps := DispatcherDeps{
		Classifier: classifier,
		Contexts:   repo,
		Signals:    NewSignalEmitter(pub, nil),
		Notifier:   NewNotifier(pub, nil),
	}
	return NewDispatcher(restaurantID, deps, opts, nil), repo
}

// fastOptions disables the waits so dispatch flows run synchronously.
func fastOptions() Options {
	return Options{
		ErrorRecovery: -1,
		SettleDelay:   -1,
	}
}
