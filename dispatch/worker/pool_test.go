package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/eventstream"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/tape"
	"github.com/papercomputeco/spool/pkg/tape/inmemory"
)

// newTestPool creates a worker pool backed by an in-memory recorder.
// Callers should "wp.Close()" to drain enqueued jobs before asserting storage state.
func newTestPool() (*Pool, *inmemory.Driver) {
	driver := inmemory.NewDriver()

	wp, err := NewPool(&Config{
		Recorder: driver,
		Logger:   logger.New(logger.WithDebug(true), logger.WithWriter(GinkgoWriter)),
	})
	Expect(err).NotTo(HaveOccurred())

	return wp, driver
}

func testTape(id string) *tape.Tape {
	now := time.Now()
	return &tape.Tape{
		ID:          id,
		Vendor:      "anthropic",
		StartedAt:   now,
		CompletedAt: now.Add(time.Second),
		Frames:      []tape.Frame{{Name: "message_stop", Data: `{"type":"message_stop"}`}},
		Outcome:     tape.OutcomeOK,
	}
}

// blockingRecorder holds every Record call until release is closed.
type blockingRecorder struct {
	release chan struct{}
}

func (b *blockingRecorder) Record(ctx context.Context, _ *tape.Tape) error {
	<-b.release
	return nil
}
func (b *blockingRecorder) Get(context.Context, string) (*tape.Tape, error) { return nil, nil }
func (b *blockingRecorder) List(context.Context, int) ([]*tape.Tape, error) { return nil, nil }
func (b *blockingRecorder) Close() error                                    { return nil }

type failingRecorder struct{ blockingRecorder }

func (failingRecorder) Record(context.Context, *tape.Tape) error { return errors.New("disk full") }

// capturingPublisher records the tape id of every published event.
type capturingPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (c *capturingPublisher) PublishTape(_ context.Context, event *eventstream.TapeRecordedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, event.Tape.ID)
	return nil
}

func (c *capturingPublisher) Close() error { return nil }

func (c *capturingPublisher) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.published...)
}

var _ = Describe("Worker Pool", func() {
	var (
		wp     *Pool
		driver *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		wp, driver = newTestPool()
		ctx = context.Background()
	})

	Describe("NewPool", func() {
		It("requires a recorder", func() {
			_, err := NewPool(&Config{})
			Expect(err).To(HaveOccurred())
		})

		It("applies defaults", func() {
			Expect(wp.config.NumWorkers).To(Equal(defaultNumWorkers))
			Expect(wp.config.QueueSize).To(Equal(defaultJobQueueSize))
			wp.Close()
		})
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			Expect(wp.Enqueue(Job{Tape: testTape("t1")})).To(BeTrue())
			wp.Close()
		})

		It("records every queued tape before Close returns", func() {
			for i := range 10 {
				Expect(wp.Enqueue(Job{Tape: testTape(fmt.Sprintf("t-%d", i))})).To(BeTrue())
			}
			wp.Close()

			tapes, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(tapes).To(HaveLen(10))
		})

		It("drops jobs when the queue is full", func() {
			wp.Close()

			var logs bytes.Buffer
			rec := &blockingRecorder{release: make(chan struct{})}
			full, err := NewPool(&Config{
				Recorder:   rec,
				NumWorkers: 1,
				QueueSize:  1,
				Logger:     logger.New(logger.WithWriter(&logs)),
			})
			Expect(err).NotTo(HaveOccurred())

			// One job is held by the worker, one fills the queue.
			Expect(full.Enqueue(Job{Tape: testTape("a")})).To(BeTrue())
			Eventually(func() int { return len(full.queue) }).Should(Equal(0))
			Expect(full.Enqueue(Job{Tape: testTape("b")})).To(BeTrue())
			Expect(full.Enqueue(Job{Tape: testTape("c")})).To(BeFalse())
			Expect(logs.String()).To(ContainSubstring("tape dropped"))

			close(rec.release)
			full.Close()
		})
	})

	It("logs recorder failures without stopping", func() {
		wp.Close()

		var logs bytes.Buffer
		failing, err := NewPool(&Config{
			Recorder: &failingRecorder{},
			Logger:   logger.New(logger.WithWriter(&logs)),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(failing.Enqueue(Job{Tape: testTape("x")})).To(BeTrue())
		Expect(failing.Enqueue(Job{Tape: testTape("y")})).To(BeTrue())
		failing.Close()

		Expect(logs.String()).To(ContainSubstring("disk full"))
		Expect(bytes.Count(logs.Bytes(), []byte("async tape recording failed"))).To(Equal(2))
	})

	Describe("Publisher", func() {
		It("publishes an event for every recorded tape", func() {
			wp.Close()

			pub := &capturingPublisher{}
			withPub, err := NewPool(&Config{
				Recorder:  inmemory.NewDriver(),
				Publisher: pub,
				Logger:    logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(withPub.Enqueue(Job{Tape: testTape("p1")})).To(BeTrue())
			Expect(withPub.Enqueue(Job{Tape: testTape("p2")})).To(BeTrue())
			withPub.Close()

			Expect(pub.ids()).To(ConsistOf("p1", "p2"))
		})

		It("does not publish tapes that failed to record", func() {
			wp.Close()

			pub := &capturingPublisher{}
			failing, err := NewPool(&Config{
				Recorder:  &failingRecorder{},
				Publisher: pub,
				Logger:    logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(failing.Enqueue(Job{Tape: testTape("x")})).To(BeTrue())
			failing.Close()

			Expect(pub.ids()).To(BeEmpty())
		})

		It("logs publish failures", func() {
			wp.Close()

			var logs bytes.Buffer
			pub := &capturingPublisher{err: errors.New("broker down")}
			withPub, err := NewPool(&Config{
				Recorder:  inmemory.NewDriver(),
				Publisher: pub,
				Logger:    logger.New(logger.WithWriter(&logs)),
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(withPub.Enqueue(Job{Tape: testTape("p1")})).To(BeTrue())
			withPub.Close()

			Expect(logs.String()).To(ContainSubstring("tape event not published"))
			Expect(logs.String()).To(ContainSubstring("broker down"))
		})
	})

	It("tolerates a second Close", func() {
		wp.Close()
		Expect(wp.Close).NotTo(Panic())
	})
})
