// Package relay turns an upstream model provider's incremental event stream
// into quill's downstream frame stream.
//
// Data flows strictly through five stages:
//
//	upstream chunks
//	      │
//	      ▼
//	┌───────────────┐   ┌────────────┐   ┌──────────────┐   ┌─────────┐   ┌─────────┐
//	│ sse.Assembler │──▶│ sse.Parser │──▶│ think.Filter │──▶│ Encoder │──▶│ Emitter │
//	└───────────────┘   └────────────┘   └──────────────┘   └─────────┘   └─────────┘
//
// A Relay is pull-driven. The upstream is read only when the consumer asks
// for the next frame, so a slow client slows the upstream read rather than
// growing a buffer. Stopping iteration, cancelling the context, or a failed
// downstream write all close the upstream body.
package relay

import (
	"context"
	"errors"
	"expvar"
	"io"
	"iter"
	"log/slog"

	"github.com/papercomputeco/quill/pkg/frame"
	"github.com/papercomputeco/quill/pkg/sse"
	"github.com/papercomputeco/quill/pkg/think"
)

// metrics is published on /debug/vars by the read API.
var metrics = expvar.NewMap("quill_relay")

// Stats summarizes one relayed stream.
type Stats struct {
	// Frames is the number of frames yielded.
	Frames int

	// Malformed is the number of upstream payloads skipped as malformed.
	Malformed int

	// Done is true if the upstream sent its termination sentinel.
	Done bool
}

// Relay relays exactly one upstream stream. Its state (line buffer, filter
// state) is private to that stream; create a new Relay per request.
type Relay struct {
	config Config
	logger *slog.Logger

	assembler *sse.Assembler
	parser    *sse.Parser
	filter    *think.Filter
	encoder   *frame.Encoder

	stats Stats
}

// New creates a Relay for one stream.
func New(config Config, logger *slog.Logger) *Relay {
	config = config.withDefaults()

	return &Relay{
		config:    config,
		logger:    logger,
		assembler: sse.NewAssembler(),
		parser: sse.NewParser(sse.ParserConfig{
			Prefix:    config.EventPrefix,
			Sentinel:  config.Sentinel,
			DeltaPath: config.DeltaPath,
		}, logger),
		filter:  think.New(config.OpenMarker, config.CloseMarker),
		encoder: frame.NewEncoder(config.FramePrefix),
	}
}

// Stats returns the stream summary. It is complete once iteration has ended.
func (r *Relay) Stats() Stats {
	s := r.stats
	s.Malformed = r.parser.Malformed()
	return s
}

// Frames returns the frames relayed from src, in upstream arrival order.
//
// The sequence ends cleanly after the sentinel or at upstream EOF. A failed
// upstream read ends it with a *TransportError; a cancelled context ends it
// with the context's error. src is always closed when the sequence ends,
// including when the consumer stops early.
func (r *Relay) Frames(ctx context.Context, src io.ReadCloser) iter.Seq2[frame.Frame, error] {
	return func(yield func(frame.Frame, error) bool) {
		// Closing src unblocks a Read that is waiting on a cancelled stream.
		stop := context.AfterFunc(ctx, func() { _ = src.Close() })
		defer func() {
			stop()
			_ = src.Close()
		}()

		metrics.Add("streams", 1)
		buf := make([]byte, r.config.ReadSize)

		for {
			n, readErr := src.Read(buf)
			if n > 0 {
				for _, line := range r.assembler.Feed(buf[:n]) {
					done, more := r.handleLine(line, yield)
					if !more {
						metrics.Add("abandoned", 1)
						return
					}
					if done {
						r.stats.Done = true
						r.finish(yield)
						return
					}
				}
			}

			switch {
			case readErr == nil:
				continue

			case ctx.Err() != nil:
				metrics.Add("cancelled", 1)
				r.logger.Debug("relay cancelled", "error", ctx.Err(), "frames", r.stats.Frames)
				yield(frame.Frame{}, ctx.Err())
				return

			case errors.Is(readErr, io.EOF):
				r.logger.Debug("upstream closed without sentinel", "frames", r.stats.Frames)
				if line, ok := r.assembler.Flush(); ok && !r.config.DropTrailing {
					done, more := r.handleLine(line, yield)
					if !more {
						return
					}
					r.stats.Done = done
				}
				r.finish(yield)
				return

			default:
				metrics.Add("transport_errors", 1)
				r.logger.Warn("upstream read failed", "error", readErr, "frames", r.stats.Frames)
				yield(frame.Frame{}, &TransportError{Err: readErr})
				return
			}
		}
	}
}

// handleLine runs one complete line through parse, filter and encode. done
// reports the sentinel; more is false once the consumer stopped iterating.
func (r *Relay) handleLine(line string, yield func(frame.Frame, error) bool) (done, more bool) {
	ev := r.parser.Parse(line)
	switch ev.Kind {
	case sse.Done:
		return true, true
	case sse.Data:
		return false, r.emit(r.filter.Apply(ev.Delta), yield)
	default:
		return false, true
	}
}

// finish releases text the filter held back as a possible marker prefix.
func (r *Relay) finish(yield func(frame.Frame, error) bool) {
	r.emit(r.filter.Flush(), yield)
}

func (r *Relay) emit(fragments []string, yield func(frame.Frame, error) bool) bool {
	for _, text := range fragments {
		if !yield(r.encoder.Encode(text), nil) {
			return false
		}
		r.stats.Frames++
		metrics.Add("frames", 1)
	}
	return true
}

// Run drives Frames into emitter until the stream ends. It returns nil when
// the upstream completed, the relay's stream error otherwise, or the
// emitter's error if the downstream went away.
func (r *Relay) Run(ctx context.Context, src io.ReadCloser, emitter *Emitter) (Stats, error) {
	for f, err := range r.Frames(ctx, src) {
		if err != nil {
			return r.Stats(), err
		}
		if err := emitter.Emit(f); err != nil {
			return r.Stats(), err
		}
	}
	return r.Stats(), nil
}
