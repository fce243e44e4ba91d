package relay

import (
	"fmt"
	"io"
	"net/http"

	"github.com/papercomputeco/quill/pkg/frame"
)

// flusher matches buffered writers such as *bufio.Writer.
type flusher interface {
	Flush() error
}

// Emitter writes frames to the downstream transport in the order it receives
// them. When the writer can flush, every frame is flushed as soon as it is
// written so the client sees text as it is generated.
type Emitter struct {
	w      io.Writer
	frames int
}

// NewEmitter returns an Emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes one frame. An error means the downstream is gone and the
// stream should stop.
func (e *Emitter) Emit(f frame.Frame) error {
	if _, err := io.WriteString(e.w, f.Wire); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}

	switch fl := e.w.(type) {
	case flusher:
		if err := fl.Flush(); err != nil {
			return fmt.Errorf("flushing frame: %w", err)
		}
	case http.Flusher:
		fl.Flush()
	}

	e.frames++
	return nil
}

// Frames returns the number of frames emitted so far.
func (e *Emitter) Frames() int {
	return e.frames
}
