// Package proxy provides the quill generation server. It turns a generation
// form into an upstream chat completion and relays the visible text back to
// the browser as a frame stream, then hands the finished generation to a
// worker pool for storage.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/quill/pkg/eventstream"
	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/prompt"
	"github.com/papercomputeco/quill/pkg/relay"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/upstream"
	"github.com/papercomputeco/quill/pkg/verify"
	"github.com/papercomputeco/quill/proxy/header"
	"github.com/papercomputeco/quill/proxy/worker"
)

// settings is one immutable snapshot of Settings with its prompt builder.
type settings struct {
	relay   relay.Config
	model   string
	builder *prompt.Builder
}

func newSettings(s Settings) *settings {
	return &settings{
		relay:   s.Relay,
		model:   s.Prompt.Model,
		builder: prompt.NewBuilder(s.Prompt),
	}
}

// Proxy is the generation server. Each request gets its own relay; nothing
// about one stream is visible to another.
type Proxy struct {
	config        Config
	upstream      Upstream
	verifier      verify.Verifier
	workerPool    *worker.Pool
	logger        *slog.Logger
	server        *fiber.App
	headerHandler *header.Handler

	settings atomic.Pointer[settings]

	// streams derive from ctx so Close can end them.
	ctx    context.Context
	cancel context.CancelFunc

	// streams counts relay goroutines that have yet to enqueue their
	// generation. The worker pool must outlive all of them.
	streams sync.WaitGroup
}

// New creates a new Proxy. Finished generations are persisted to driver by
// the proxy's worker pool.
func New(config Config, driver storage.Driver, logger *slog.Logger) (*Proxy, error) {
	if config.Upstream == nil {
		return nil, errors.New("upstream is required")
	}
	if config.Verifier == nil {
		config.Verifier = verify.Nop{}
	}

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: config.Publisher,
		Source: eventstream.EventSource{
			Service:  "quill",
			Instance: config.Instance,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	p := &Proxy{
		config:        config,
		upstream:      config.Upstream,
		verifier:      config.Verifier,
		workerPool:    wp,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		ctx:           ctx,
		cancel:        cancel,
	}
	p.settings.Store(newSettings(config.Settings))

	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	app.Get("/api/kinds", p.handleKinds)
	app.Post("/api/generate/:kind", p.handleGenerate)
	for _, kind := range prompt.Kinds() {
		app.Post("/api/"+kind.String(), func(c *fiber.Ctx) error {
			return p.generate(c, kind)
		})
	}

	return p, nil
}

// Reload swaps in new relay and model settings. Requests already streaming
// keep the settings they started with.
func (p *Proxy) Reload(s Settings) {
	p.settings.Store(newSettings(s))
	p.logger.Info("generation settings reloaded",
		"model", s.Prompt.Model,
		"open_marker", s.Relay.OpenMarker,
		"close_marker", s.Relay.CloseMarker,
	)
}

// Run starts the generation server on the configured listen address.
func (p *Proxy) Run() error {
	p.logger.Info("starting generation server", "listen", p.config.ListenAddr)
	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the generation server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting generation server", "listen", listener.Addr().String())
	return p.server.Listener(listener)
}

// Close ends in-flight streams, shuts the server down and waits for the
// worker pool to drain. The server's shutdown returns once connections are
// gone, which can be before a stream has enqueued its generation, so the
// streams are waited on separately.
func (p *Proxy) Close() error {
	p.cancel()
	err := p.server.Shutdown()
	p.streams.Wait()
	p.workerPool.Close()
	return err
}

func (p *Proxy) handleKinds(c *fiber.Ctx) error {
	kinds := make([]string, 0, len(prompt.Kinds()))
	for _, k := range prompt.Kinds() {
		kinds = append(kinds, k.String())
	}
	return c.JSON(fiber.Map{"kinds": kinds})
}

func (p *Proxy) handleGenerate(c *fiber.Ctx) error {
	kind, err := prompt.ParseKind(c.Params("kind"))
	if err != nil {
		return writeError(c, fiber.StatusNotFound, err.Error())
	}
	return p.generate(c, kind)
}

// generate runs every check that can fail with a structured error, then
// switches the response to a frame stream. Nothing after the switch can
// change the status code.
func (p *Proxy) generate(c *fiber.Ctx, kind prompt.Kind) error {
	start := time.Now()

	var in prompt.Input
	if err := json.Unmarshal(c.Body(), &in); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if err := p.verifier.Verify(c.UserContext(), in.Token, c.IP()); err != nil {
		p.logger.Info("verification rejected", "kind", kind, "remote_ip", c.IP(), "error", err)
		return writeError(c, fiber.StatusForbidden, verify.ErrVerificationFailed.Error())
	}

	s := p.settings.Load()
	req, err := s.builder.Build(kind, in)
	if err != nil {
		return writeBuildError(c, err)
	}

	// The stream outlives this handler: fasthttp recycles the request
	// context once the handler returns, while the relay keeps reading in
	// its own goroutine.
	ctx, cancel := context.WithCancel(p.ctx)
	body, err := p.upstream.Open(ctx, req, upstream.WithHeader(p.headerHandler.UpstreamHeaders(c)))
	if err != nil {
		cancel()
		return p.writeUpstreamError(c, err)
	}

	gen := &llm.Generation{
		ID:        uuid.NewString(),
		Kind:      kind.String(),
		Model:     req.Model,
		System:    req.System(),
		Prompt:    req.Prompt(),
		CreatedAt: start.UTC(),
	}

	p.headerHandler.SetStreamResponseHeaders(c, gen.ID)

	// io.Pipe instead of SetBodyStreamWriter: pw.Write blocks until
	// fasthttp has read the chunk and flushed it to the socket, so a slow
	// reader slows the upstream read instead of growing a buffer.
	pr, pw := io.Pipe()
	p.startStream(ctx, cancel, body, pw, s.relay, gen)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// startStream runs stream in its own goroutine, tracked so Close waits for
// it, and calls cancel once the stream is done.
func (p *Proxy) startStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, pw *io.PipeWriter, cfg relay.Config, gen *llm.Generation) {
	p.streams.Add(1)
	go func() {
		defer p.streams.Done()
		defer cancel()
		p.stream(ctx, body, pw, cfg, gen)
	}()
}

// stream relays body into pw and enqueues the finished generation. It owns
// body and pw and closes both.
func (p *Proxy) stream(ctx context.Context, body io.ReadCloser, pw *io.PipeWriter, cfg relay.Config, gen *llm.Generation) {
	logger := p.logger.With("generation_id", gen.ID, "kind", gen.Kind)
	r := relay.New(cfg, logger)
	emitter := relay.NewEmitter(pw)

	var (
		text      strings.Builder
		streamErr error
		writeErr  error
	)
	for f, err := range r.Frames(ctx, body) {
		if err != nil {
			streamErr = err
			break
		}
		if err := emitter.Emit(f); err != nil {
			writeErr = err
			break
		}
		text.WriteString(f.Text)
	}

	gen.Text = text.String()
	gen.Frames = emitter.Frames()
	gen.CompletedAt = time.Now().UTC()

	switch {
	case writeErr != nil:
		gen.Status = llm.StatusCancelled
		gen.Error = "client disconnected"
		_ = pw.CloseWithError(writeErr)

	case streamErr != nil && ctx.Err() != nil:
		gen.Status = llm.StatusCancelled
		gen.Error = streamErr.Error()
		_ = pw.CloseWithError(streamErr)

	case streamErr != nil:
		// The body is cut without a terminating chunk so the client can
		// tell an aborted stream from a finished one.
		gen.Status = llm.StatusFailed
		gen.Error = streamErr.Error()
		_ = pw.CloseWithError(streamErr)

	default:
		gen.Status = llm.StatusComplete
		_ = pw.Close()
	}

	stats := r.Stats()
	logger.Info("generation finished",
		"status", gen.Status,
		"frames", gen.Frames,
		"malformed", stats.Malformed,
		"done", stats.Done,
		"duration", gen.Duration(),
	)

	if !p.workerPool.Enqueue(worker.Job{Generation: gen}) {
		logger.Warn("generation not stored: worker queue full")
	}
}
