// Package eventstream publishes an event for every persisted generation so
// downstream consumers (moderation, analytics) can follow along without
// polling the read API.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/quill/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeGenerationCompleted is emitted after a generation is persisted,
	// whatever its terminal status.
	EventTypeGenerationCompleted = "quill.generation.completed"
)

// GenerationCompletedEvent is a transport-neutral event payload for a
// persisted generation.
type GenerationCompletedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	Generation    llm.Generation `json:"generation"`
	DurationMs    int64          `json:"duration_ms"`
}

// EventSource identifies which server produced the generation.
type EventSource struct {
	Service  string `json:"service"`
	Instance string `json:"instance,omitempty"`
}

// NewGenerationCompletedEvent wraps gen in a fresh event.
func NewGenerationCompletedEvent(gen *llm.Generation, source EventSource) *GenerationCompletedEvent {
	return &GenerationCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeGenerationCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Generation:    *gen,
		DurationMs:    gen.Duration().Milliseconds(),
	}
}
