package llm

// ChatRequest is the body POSTed to an OpenAI-compatible
// /chat/completions endpoint.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o-mini", "deepseek-r1")
	Model string `json:"model"`

	// Conversation messages, system prompt first
	Messages []Message `json:"messages"`

	// Stream must be true for the relay to receive incremental events.
	Stream bool `json:"stream"`

	// Generation parameters
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`

	// User is an opaque end-user identifier forwarded for provider abuse
	// monitoring.
	User string `json:"user,omitempty"`
}

// System returns the content of the first system message, if any.
func (r *ChatRequest) System() string {
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			return m.Content
		}
	}
	return ""
}

// Prompt returns the content of the last user message, if any.
func (r *ChatRequest) Prompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}
