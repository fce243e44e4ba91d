package llm

import "time"

// Status is the terminal state of a generation.
type Status string

const (
	// StatusComplete means the upstream finished and every frame was delivered.
	StatusComplete Status = "complete"

	// StatusFailed means the upstream stream broke mid-generation.
	StatusFailed Status = "failed"

	// StatusCancelled means the client went away before the stream ended.
	StatusCancelled Status = "cancelled"
)

// Generation is one finished generation request as it is persisted: the
// prompt that was sent upstream and the visible text that reached the client.
type Generation struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`

	// Text is the concatenation of every frame delivered downstream.
	Text   string `json:"text"`
	Frames int    `json:"frames"`

	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Duration returns how long the generation streamed.
func (g *Generation) Duration() time.Duration {
	if g.CompletedAt.IsZero() {
		return 0
	}
	return g.CompletedAt.Sub(g.CreatedAt)
}
