// Package frame implements quill's downstream wire format: one line per
// visible text fragment, of the form
//
//	0:"<escaped text>"\n
//
// Backslash, double quote, newline, carriage return and tab are escaped. The
// backslash is escaped first so already-escaped sequences are never escaped
// twice. Every other byte is written verbatim.
package frame

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultPrefix is the frame type prefix for text fragments.
const DefaultPrefix = "0:"

// ErrMalformedFrame is returned by Decode for lines that are not frames.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one visible fragment and its wire encoding.
type Frame struct {
	// Text is the visible fragment as produced by the relay.
	Text string

	// Wire is the encoded line, including its terminating newline.
	Wire string
}

// escaper runs in a single pass, which gives the same result as escaping
// backslash first and the remaining characters afterwards.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Escape escapes text for the inside of a frame's quotes.
func Escape(text string) string {
	return escaper.Replace(text)
}

// Encoder produces frames with a fixed prefix.
type Encoder struct {
	prefix string
}

// NewEncoder creates an Encoder. An empty prefix falls back to DefaultPrefix.
func NewEncoder(prefix string) *Encoder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Encoder{prefix: prefix}
}

// Encode wraps text into a Frame.
func (e *Encoder) Encode(text string) Frame {
	return Frame{
		Text: text,
		Wire: e.prefix + `"` + Escape(text) + "\"\n",
	}
}

// Encode encodes text with the default prefix and returns the wire line.
func Encode(text string) string {
	return DefaultPrefix + `"` + Escape(text) + "\"\n"
}

// Decode is the client-side inverse of Encode. It accepts a line with or
// without its trailing newline and returns the prefix and the unescaped text.
func Decode(line string) (prefix, text string, err error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	i := strings.IndexByte(line, ':')
	if i < 0 || len(line) < i+3 || line[i+1] != '"' || line[len(line)-1] != '"' {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedFrame, line)
	}

	prefix = line[:i+1]
	text, err = unescape(line[i+2 : len(line)-1])
	if err != nil {
		return "", "", err
	}
	return prefix, text, nil
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}

		i++
		if i == len(s) {
			return "", fmt.Errorf("%w: trailing backslash", ErrMalformedFrame)
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			return "", fmt.Errorf("%w: unknown escape \\%c", ErrMalformedFrame, s[i])
		}
	}
	return b.String(), nil
}
