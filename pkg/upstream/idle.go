package upstream

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// idleReader cancels the upstream request when no bytes arrive for timeout.
// The timer restarts on every read that returns data, so a slow but steady
// stream never trips it.
type idleReader struct {
	body    io.ReadCloser
	timeout time.Duration
	cancel  context.CancelFunc

	timer    *time.Timer
	timedOut atomic.Bool
}

func newIdleReader(body io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *idleReader {
	r := &idleReader{
		body:    body,
		timeout: timeout,
		cancel:  cancel,
	}
	r.timer = time.AfterFunc(timeout, func() {
		r.timedOut.Store(true)
		cancel()
	})
	return r
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if n > 0 && !r.timedOut.Load() {
		r.timer.Reset(r.timeout)
	}
	if err != nil && r.timedOut.Load() {
		return n, fmt.Errorf("%w after %s: %w", ErrIdleTimeout, r.timeout, err)
	}
	return n, err
}

func (r *idleReader) Close() error {
	r.timer.Stop()
	r.cancel()
	return r.body.Close()
}

// cancelCloser releases the request context when the body is closed.
type cancelCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelCloser) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
