// Package inmemory provides a map-backed storage driver. Generations are lost
// when the process exits.
package inmemory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards generations
	mu sync.RWMutex

	// generations is keyed by generation ID
	generations map[string]*llm.Generation
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		generations: make(map[string]*llm.Generation),
	}
}

// Put stores a copy of gen.
func (s *Driver) Put(_ context.Context, gen *llm.Generation) (bool, error) {
	if gen == nil {
		return false, errors.New("cannot store nil generation")
	}
	if gen.ID == "" {
		return false, errors.New("cannot store generation without an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.generations[gen.ID]; ok {
		return false, nil
	}

	stored := *gen
	s.generations[gen.ID] = &stored
	return true, nil
}

// Get retrieves a generation by ID.
func (s *Driver) Get(_ context.Context, id string) (*llm.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gen, ok := s.generations[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	out := *gen
	return &out, nil
}

// List returns generations newest first.
func (s *Driver) List(_ context.Context, opts storage.ListOptions) ([]*llm.Generation, error) {
	opts = opts.Normalize()

	s.mu.RLock()
	result := make([]*llm.Generation, 0, len(s.generations))
	for _, gen := range s.generations {
		if opts.Kind != "" && gen.Kind != opts.Kind {
			continue
		}
		out := *gen
		result = append(result, &out)
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b *llm.Generation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}
