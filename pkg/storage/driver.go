// Package storage persists finished generations.
package storage

import (
	"context"

	"github.com/papercomputeco/quill/pkg/llm"
)

const (
	// DefaultListLimit is used when ListOptions.Limit is zero.
	DefaultListLimit = 50

	// MaxListLimit caps ListOptions.Limit.
	MaxListLimit = 500
)

// ListOptions filters List.
type ListOptions struct {
	// Kind restricts results to one generation kind. Empty means all kinds.
	Kind string

	// Limit caps the number of results, newest first.
	Limit int
}

// Normalize applies the default and maximum limit.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	return o
}

// Driver defines the interface for persisting and retrieving generations in
// a storage backend.
type Driver interface {
	// Put stores a generation. Returns true if it was newly inserted, false
	// if a generation with the same ID already exists, in which case Put is
	// a no-op.
	Put(ctx context.Context, gen *llm.Generation) (bool, error)

	// Get retrieves a generation by ID. A missing ID is a NotFoundError.
	Get(ctx context.Context, id string) (*llm.Generation, error)

	// List returns generations newest first.
	List(ctx context.Context, opts ListOptions) ([]*llm.Generation, error)

	// Close closes the store and releases any resources.
	Close() error
}
