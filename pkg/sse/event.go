// Package sse turns an upstream provider's server-sent event stream into text
// deltas for the quill relay.
//
// It is deliberately narrow: the relay only needs single-line "data:" events
// carrying a JSON payload, a termination sentinel, and the text delta nested
// somewhere inside the payload. Everything else on the wire is skipped.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Kind classifies a parsed upstream line.
type Kind int

const (
	// Skip is a line the relay ignores: comments, blank keep-alives, other
	// SSE fields, malformed payloads and payloads without a delta.
	Skip Kind = iota

	// Data is an event carrying a text delta.
	Data

	// Done is the termination sentinel. It is never forwarded downstream.
	Done
)

func (k Kind) String() string {
	switch k {
	case Data:
		return "data"
	case Done:
		return "done"
	default:
		return "skip"
	}
}

// Event is the result of parsing one complete upstream line.
type Event struct {
	Kind Kind

	// Delta is the extracted text delta. Only set when Kind is Data.
	Delta string
}

// DecodeStatus is the outcome of decoding a data payload.
type DecodeStatus int

const (
	// DecodeOK means the payload was valid and carried a delta.
	DecodeOK DecodeStatus = iota

	// DecodeEmpty means the payload was valid but carried no delta.
	DecodeEmpty

	// DecodeMalformed means the payload could not be decoded.
	DecodeMalformed
)

// Decoded is the tagged result of decoding one event payload.
type Decoded struct {
	Status DecodeStatus
	Delta  string
}
