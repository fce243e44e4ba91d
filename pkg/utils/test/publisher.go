package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/quill/pkg/eventstream"
)

// ErrMockPublish is returned by MockPublisher when FailPublish is set.
var ErrMockPublish = errors.New("mock publish failure")

// MockPublisher records published events.
type MockPublisher struct {
	mu          sync.Mutex
	events      []*eventstream.GenerationCompletedEvent
	FailPublish bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishGeneration(_ context.Context, event *eventstream.GenerationCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPublish {
		return ErrMockPublish
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns the published events in order.
func (m *MockPublisher) Events() []*eventstream.GenerationCompletedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.GenerationCompletedEvent(nil), m.events...)
}

func (m *MockPublisher) Close() error {
	return nil
}
