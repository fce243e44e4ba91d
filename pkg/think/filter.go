// Package think suppresses hidden reasoning spans that some models embed in
// their streamed output between literal <think> and </think> markers.
//
// The Filter is a two-state machine fed one delta at a time. Markers may be
// split across deltas ("<th" followed by "ink>"), so the filter holds back any
// trailing text that could be the start of the marker it is waiting for and
// re-examines it together with the next delta. Every open/close pair inside a
// single delta is honoured, not just the first.
package think

import "strings"

const (
	// DefaultOpenMarker starts a hidden reasoning span.
	DefaultOpenMarker = "<think>"

	// DefaultCloseMarker ends a hidden reasoning span.
	DefaultCloseMarker = "</think>"
)

// State is the suppression state of a Filter.
type State int

const (
	// Passthrough forwards text. It is the initial state.
	Passthrough State = iota

	// Suppressed discards text until the close marker is seen.
	Suppressed
)

func (s State) String() string {
	if s == Suppressed {
		return "suppressed"
	}
	return "passthrough"
}

// Filter strips hidden spans from a sequence of deltas. A Filter carries
// state across calls and belongs to exactly one stream.
type Filter struct {
	open  string
	close string

	state   State
	pending string
}

// New creates a Filter for the given marker pair. Empty markers fall back to
// the <think> defaults.
func New(open, close string) *Filter {
	if open == "" {
		open = DefaultOpenMarker
	}
	if close == "" {
		close = DefaultCloseMarker
	}

	return &Filter{
		open:  open,
		close: close,
	}
}

// State returns the current suppression state.
func (f *Filter) State() State {
	return f.state
}

// Apply feeds one delta through the filter and returns the visible fragments
// it produced, in order. Text before an open marker and text after a close
// marker are separate fragments. Whitespace-only fragments are dropped.
func (f *Filter) Apply(delta string) []string {
	text := f.pending + delta
	f.pending = ""

	var out []string
	for text != "" {
		switch f.state {
		case Passthrough:
			if i := strings.Index(text, f.open); i >= 0 {
				out = appendVisible(out, text[:i])
				text = text[i+len(f.open):]
				f.state = Suppressed
				continue
			}

			hold := partialSuffix(text, f.open)
			if hold > 0 && isBlank(text[:len(text)-hold]) {
				// Blank text ahead of a held marker prefix stays with it, or
				// the space in " <" would be dropped on its own.
				f.pending = text
				text = ""
				continue
			}
			out = appendVisible(out, text[:len(text)-hold])
			f.pending = text[len(text)-hold:]
			text = ""

		case Suppressed:
			if i := strings.Index(text, f.close); i >= 0 {
				text = text[i+len(f.close):]
				f.state = Passthrough
				continue
			}

			hold := partialSuffix(text, f.close)
			f.pending = text[len(text)-hold:]
			text = ""
		}
	}

	return out
}

// Flush releases text held back as a possible marker prefix. It is called
// once when the stream ends. Held text is visible only in Passthrough; an
// unterminated hidden span is discarded.
func (f *Filter) Flush() []string {
	pending := f.pending
	f.pending = ""

	if f.state == Suppressed {
		return nil
	}
	return appendVisible(nil, pending)
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of marker.
func partialSuffix(s, marker string) int {
	n := min(len(s), len(marker)-1)
	for ; n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func appendVisible(out []string, s string) []string {
	if isBlank(s) {
		return out
	}
	return append(out, s)
}
