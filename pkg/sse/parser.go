package sse

import (
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// DefaultPrefix is the SSE field prefix for data lines.
	DefaultPrefix = "data:"

	// DefaultSentinel is the OpenAI-style end of stream marker.
	DefaultSentinel = "[DONE]"

	// DefaultDeltaPath is the gjson path to the text delta in an OpenAI
	// chat.completion.chunk payload.
	DefaultDeltaPath = "choices.0.delta.content"
)

// ParserConfig parameterizes a Parser for a given provider dialect.
type ParserConfig struct {
	// Prefix marks an event line. A single space following the prefix is
	// stripped, per the SSE spec.
	Prefix string

	// Sentinel is the payload that signals logical completion.
	Sentinel string

	// DeltaPath is the gjson path to the text delta inside the payload.
	DeltaPath string
}

// Parser classifies complete upstream lines into Events.
type Parser struct {
	config ParserConfig
	logger *slog.Logger

	malformed int
}

// NewParser creates a Parser. Zero-value config fields fall back to the
// OpenAI defaults.
func NewParser(config ParserConfig, logger *slog.Logger) *Parser {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.Sentinel == "" {
		config.Sentinel = DefaultSentinel
	}
	if config.DeltaPath == "" {
		config.DeltaPath = DefaultDeltaPath
	}

	return &Parser{
		config: config,
		logger: logger,
	}
}

// Parse classifies one line. Lines without the event prefix are skipped. A
// payload equal to the sentinel yields Done. Any other payload is decoded; a
// malformed payload is logged and skipped so that one bad line never aborts
// the stream.
func (p *Parser) Parse(line string) Event {
	payload, ok := strings.CutPrefix(line, p.config.Prefix)
	if !ok {
		return Event{Kind: Skip}
	}
	payload = strings.TrimPrefix(payload, " ")

	if strings.TrimSpace(payload) == p.config.Sentinel {
		return Event{Kind: Done}
	}

	decoded := p.Decode(payload)
	switch decoded.Status {
	case DecodeOK:
		return Event{Kind: Data, Delta: decoded.Delta}
	case DecodeMalformed:
		p.malformed++
		p.logger.Warn("skipping malformed event payload",
			"payload", payload,
			"malformed_count", p.malformed,
		)
		return Event{Kind: Skip}
	default:
		return Event{Kind: Skip}
	}
}

// Decode extracts the delta text from a single event payload.
func (p *Parser) Decode(payload string) Decoded {
	if !gjson.Valid(payload) {
		return Decoded{Status: DecodeMalformed}
	}

	delta := gjson.Get(payload, p.config.DeltaPath)
	if delta.Type != gjson.String || delta.Str == "" {
		return Decoded{Status: DecodeEmpty}
	}

	return Decoded{Status: DecodeOK, Delta: delta.Str}
}

// Malformed returns the number of payloads skipped as malformed so far.
func (p *Parser) Malformed() int {
	return p.malformed
}
