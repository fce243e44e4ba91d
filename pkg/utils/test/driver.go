package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/storage/inmemory"
)

// ErrMockPut is returned by MockDriver.Put when FailPut is set.
var ErrMockPut = errors.New("mock put failure")

// MockDriver wraps the in-memory driver and records every Put.
type MockDriver struct {
	*inmemory.Driver

	mu      sync.Mutex
	puts    []*llm.Generation
	FailPut bool
}

func NewMockDriver() *MockDriver {
	return &MockDriver{Driver: inmemory.NewDriver()}
}

func (m *MockDriver) Put(ctx context.Context, gen *llm.Generation) (bool, error) {
	m.mu.Lock()
	m.puts = append(m.puts, gen)
	fail := m.FailPut
	m.mu.Unlock()

	if fail {
		return false, ErrMockPut
	}
	return m.Driver.Put(ctx, gen)
}

// Puts returns every generation passed to Put, in call order.
func (m *MockDriver) Puts() []*llm.Generation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.Generation(nil), m.puts...)
}

var _ storage.Driver = (*MockDriver)(nil)
