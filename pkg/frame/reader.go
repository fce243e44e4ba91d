package frame

import (
	"bufio"
	"io"
)

// Reader decodes a frame stream, as a client would.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Reader{scanner: scanner}
}

// Next returns the text of the next frame. Blank lines are skipped. Next
// returns io.EOF once the stream is exhausted. A stream cut mid-line surfaces
// as ErrMalformedFrame.
func (r *Reader) Next() (string, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			continue
		}

		_, text, err := Decode(line)
		if err != nil {
			return "", err
		}
		return text, nil
	}

	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
