package testutils

import (
	"time"

	"github.com/papercomputeco/quill/pkg/llm"
)

// NewTestGeneration creates a complete generation for testing
func NewTestGeneration(id, kind string, createdAt time.Time) *llm.Generation {
	return &llm.Generation{
		ID:          id,
		Kind:        kind,
		Model:       "test-model",
		System:      "You are a test.",
		Prompt:      "prompt for " + id,
		Text:        "text for " + id,
		Frames:      3,
		Status:      llm.StatusComplete,
		CreatedAt:   createdAt.UTC().Truncate(time.Microsecond),
		CompletedAt: createdAt.Add(time.Second).UTC().Truncate(time.Microsecond),
	}
}
