// Package worker provides an asynchronous worker pool that persists finished
// generations with the provided storage.Driver and announces them on the
// provided eventstream.Publisher.
//
// The pool decouples storage from the generation server's streaming path so a
// slow database never delays the last frame reaching the client.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/quill/pkg/eventstream"
	"github.com/papercomputeco/quill/pkg/eventstream/nop"
	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 30 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Generation *llm.Generation
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting generations.
	Driver storage.Driver

	// Publisher announces persisted generations. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// Source identifies this server in published events.
	Source eventstream.EventSource

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	if job.Generation == nil {
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"generation_id", job.Generation.ID,
			"status", job.Generation.Status,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"generation_id", job.Generation.ID,
			"kind", job.Generation.Kind,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
	})
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob stores the generation and, if it was new, publishes its event.
// Failures are logged; there is no caller left to return them to.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultJobTimeout)
	defer cancel()

	gen := job.Generation
	isNew, err := p.config.Driver.Put(ctx, gen)
	if err != nil {
		p.logger.Error("async generation storage failed",
			"generation_id", gen.ID,
			"error", err,
		)
		return
	}

	if !isNew {
		p.logger.Debug("generation already stored", "generation_id", gen.ID)
		return
	}

	p.logger.Info("generation stored",
		"generation_id", gen.ID,
		"kind", gen.Kind,
		"status", gen.Status,
		"frames", gen.Frames,
		"duration", gen.Duration(),
	)

	event := eventstream.NewGenerationCompletedEvent(gen, p.config.Source)
	if err := p.config.Publisher.PublishGeneration(ctx, event); err != nil {
		p.logger.Warn("failed to publish generation event",
			"generation_id", gen.ID,
			"event_id", event.EventID,
			"error", err,
		)
	}
}
