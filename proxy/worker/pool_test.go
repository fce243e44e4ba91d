package worker

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/eventstream"
	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/logger"
	testutils "github.com/papercomputeco/quill/pkg/utils/test"
)

// newTestPool creates a worker pool backed by a recording driver and publisher.
// Callers should "wp.Close()" to drain enqueued jobs before asserting storage state.
func newTestPool() (*Pool, *testutils.MockDriver, *testutils.MockPublisher) {
	driver := testutils.NewMockDriver()
	publisher := testutils.NewMockPublisher()

	wp, err := NewPool(&Config{
		Driver:    driver,
		Publisher: publisher,
		Source:    eventstream.EventSource{Service: "quill", Instance: "test"},
		Logger:    logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	return wp, driver, publisher
}

var _ = Describe("Worker Pool", func() {
	var (
		wp        *Pool
		driver    *testutils.MockDriver
		publisher *testutils.MockPublisher
		ctx       context.Context
	)

	BeforeEach(func() {
		wp, driver, publisher = newTestPool()
		ctx = context.Background()
	})

	Describe("NewPool", func() {
		It("requires a driver", func() {
			_, err := NewPool(&Config{Logger: logger.Nop()})
			Expect(err).To(HaveOccurred())
			wp.Close()
		})
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			ok := wp.Enqueue(Job{Generation: testutils.NewTestGeneration("g1", "story", time.Now())})
			Expect(ok).To(BeTrue())
			wp.Close()
		})

		It("refuses a job without a generation", func() {
			Expect(wp.Enqueue(Job{})).To(BeFalse())
			wp.Close()
		})

		It("drops jobs when the queue is full", func() {
			block := make(chan struct{})
			full, err := NewPool(&Config{
				Driver:     &blockingDriver{MockDriver: testutils.NewMockDriver(), release: block},
				NumWorkers: 1,
				QueueSize:  1,
				Logger:     logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			// The first job occupies the worker, the second fills the queue.
			Expect(full.Enqueue(Job{Generation: testutils.NewTestGeneration("a", "story", time.Now())})).To(BeTrue())
			Eventually(func() bool {
				return full.Enqueue(Job{Generation: testutils.NewTestGeneration("b", "story", time.Now())})
			}).Should(BeTrue())
			Expect(full.Enqueue(Job{Generation: testutils.NewTestGeneration("c", "story", time.Now())})).To(BeFalse())

			close(block)
			full.Close()
			wp.Close()
		})
	})

	Describe("processing", func() {
		It("stores the generation and publishes one event", func() {
			gen := testutils.NewTestGeneration("g1", "poem", time.Now())
			wp.Enqueue(Job{Generation: gen})
			wp.Close()

			stored, err := driver.Get(ctx, "g1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Text).To(Equal(gen.Text))

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Generation.ID).To(Equal("g1"))
			Expect(events[0].Source.Instance).To(Equal("test"))
		})

		It("stores every terminal status", func() {
			for i, status := range []llm.Status{llm.StatusComplete, llm.StatusFailed, llm.StatusCancelled} {
				gen := testutils.NewTestGeneration(fmt.Sprintf("g%d", i), "story", time.Now())
				gen.Status = status
				wp.Enqueue(Job{Generation: gen})
			}
			wp.Close()

			cancelled, err := driver.Get(ctx, "g2")
			Expect(err).NotTo(HaveOccurred())
			Expect(cancelled.Status).To(Equal(llm.StatusCancelled))
			Expect(publisher.Events()).To(HaveLen(3))
		})

		It("does not republish a duplicate generation", func() {
			gen := testutils.NewTestGeneration("dup", "story", time.Now())
			_, err := driver.Put(ctx, gen)
			Expect(err).NotTo(HaveOccurred())

			wp.Enqueue(Job{Generation: gen})
			wp.Close()

			Expect(publisher.Events()).To(BeEmpty())
		})

		It("does not publish when storage fails", func() {
			driver.FailPut = true
			wp.Enqueue(Job{Generation: testutils.NewTestGeneration("g1", "story", time.Now())})
			wp.Close()

			Expect(driver.Puts()).To(HaveLen(1))
			Expect(publisher.Events()).To(BeEmpty())
		})

		It("keeps the generation when publishing fails", func() {
			publisher.FailPublish = true
			wp.Enqueue(Job{Generation: testutils.NewTestGeneration("g1", "story", time.Now())})
			wp.Close()

			_, err := driver.Get(ctx, "g1")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Close", func() {
		It("is safe to call twice", func() {
			wp.Close()
			wp.Close()
		})
	})
})

// blockingDriver holds every Put until release is closed.
type blockingDriver struct {
	*testutils.MockDriver
	release chan struct{}
}

func (d *blockingDriver) Put(ctx context.Context, gen *llm.Generation) (bool, error) {
	<-d.release
	return d.MockDriver.Put(ctx, gen)
}
