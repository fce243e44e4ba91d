package upstream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrMissingBody is returned when the upstream accepted the request but
	// sent no body to stream.
	ErrMissingBody = errors.New("upstream response has no body")

	// ErrIdleTimeout ends a stream that produced no bytes for longer than
	// the configured idle timeout.
	ErrIdleTimeout = errors.New("upstream idle timeout")
)

// ConfigurationError means the request could not be attempted, typically
// because no API key is configured. Nothing was sent over the network.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "upstream not configured: " + e.Reason
}

// DialError means the request failed before any response was received.
type DialError struct {
	URL string
	Err error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("upstream request to %s failed: %v", e.URL, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// RejectionError is a non-success HTTP status from the upstream. Body holds
// at most maxRejectionBody bytes of the response.
type RejectionError struct {
	Status int
	Body   string
}

func (e *RejectionError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("upstream rejected request with status %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("upstream rejected request with status %d", e.Status)
}

// Message extracts the provider's error message from an OpenAI style
// {"error":{"message":...}} body, falling back to the raw body text.
func (e *RejectionError) Message() string {
	if gjson.Valid(e.Body) {
		for _, path := range []string{"error.message", "error", "message"} {
			if r := gjson.Get(e.Body, path); r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
	}
	return strings.TrimSpace(e.Body)
}
