package relay

import (
	"github.com/papercomputeco/quill/pkg/frame"
	"github.com/papercomputeco/quill/pkg/sse"
	"github.com/papercomputeco/quill/pkg/think"
)

const defaultReadSize = 4 * 1024

// Config parameterizes a relay for one upstream dialect and one downstream
// frame format. The zero value is usable: every empty field takes the
// OpenAI / <think> / "0:" default.
type Config struct {
	// EventPrefix marks upstream event lines (default "data:").
	EventPrefix string

	// Sentinel is the payload that ends the stream (default "[DONE]").
	Sentinel string

	// DeltaPath is the gjson path of the text delta in each payload
	// (default "choices.0.delta.content").
	DeltaPath string

	// OpenMarker and CloseMarker delimit hidden reasoning spans
	// (default "<think>" and "</think>").
	OpenMarker  string
	CloseMarker string

	// FramePrefix is written before each quoted fragment (default "0:").
	FramePrefix string

	// DropTrailing discards an unterminated final line when the upstream
	// closes. By default that line is parsed like any other.
	DropTrailing bool

	// ReadSize is the size of each upstream read (default 4 KiB).
	ReadSize int
}

// DefaultConfig returns the fully populated default Config.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.EventPrefix == "" {
		c.EventPrefix = sse.DefaultPrefix
	}
	if c.Sentinel == "" {
		c.Sentinel = sse.DefaultSentinel
	}
	if c.DeltaPath == "" {
		c.DeltaPath = sse.DefaultDeltaPath
	}
	if c.OpenMarker == "" {
		c.OpenMarker = think.DefaultOpenMarker
	}
	if c.CloseMarker == "" {
		c.CloseMarker = think.DefaultCloseMarker
	}
	if c.FramePrefix == "" {
		c.FramePrefix = frame.DefaultPrefix
	}
	if c.ReadSize <= 0 {
		c.ReadSize = defaultReadSize
	}
	return c
}
