package sse

import "bytes"

// Assembler turns an arbitrary sequence of byte chunks into complete lines.
//
// Upstream transports deliver chunks with no regard for line or event
// boundaries: a chunk may hold several lines, half a line, or split a multi-byte
// rune. The Assembler buffers the unterminated tail of each chunk and only
// releases text once a '\n' has been seen. A trailing '\r' is stripped so CRLF
// streams produce the same lines as LF streams.
//
// An Assembler belongs to a single relay and is not safe for concurrent use.
type Assembler struct {
	buf []byte
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Feed appends chunk to the buffer and returns every line that is now
// complete, without its terminator. The final, possibly empty, unterminated
// segment stays buffered for the next call.
func (a *Assembler) Feed(chunk []byte) []string {
	a.buf = append(a.buf, chunk...)

	last := bytes.LastIndexByte(a.buf, '\n')
	if last < 0 {
		return nil
	}

	segments := bytes.Split(a.buf[:last], []byte{'\n'})
	lines := make([]string, len(segments))
	for i, seg := range segments {
		lines[i] = string(bytes.TrimSuffix(seg, []byte{'\r'}))
	}

	// Shift the tail down so the backing array does not grow for the
	// lifetime of a long stream.
	n := copy(a.buf, a.buf[last+1:])
	a.buf = a.buf[:n]

	return lines
}

// Flush returns whatever is left in the buffer as a final line and empties
// the buffer. ok is false when nothing was buffered.
func (a *Assembler) Flush() (line string, ok bool) {
	if len(a.buf) == 0 {
		return "", false
	}

	line = string(bytes.TrimSuffix(a.buf, []byte{'\r'}))
	a.buf = a.buf[:0]
	return line, true
}

// Buffered reports how many bytes are waiting for a line terminator.
func (a *Assembler) Buffered() int {
	return len(a.buf)
}
