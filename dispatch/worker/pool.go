// Package worker provides an asynchronous worker pool for persisting dispatch
// tapes with the provided tape.Recorder.
//
// The pool decouples storage from the dispatch hot path so that a slow
// database never holds back an action stream.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/spool/pkg/eventstream"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/tape"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256

	publishTimeout = 10 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Tape *tape.Tape
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Recorder is the storage backend for tapes.
	Recorder tape.Recorder

	// Publisher, when set, receives an event after each tape is recorded.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes recording jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Recorder == nil {
		return nil, errors.New("recorder is required")
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

	if c.Logger == nil {
		c.Logger = logger.Nop()
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
	select {
	case p.queue <- job:
		p.logger.Debug("tape queued",
			"id", job.Tape.ID,
			"vendor", job.Tape.Vendor,
		)
		return true
	default:
		p.logger.Error("tape not queued, queue full, tape dropped",
			"id", job.Tape.ID,
			"vendor", job.Tape.Vendor,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the last dispatch has finished.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("recording worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.config.Recorder.Record(ctx, job.Tape); err != nil {
		p.logger.Error("async tape recording failed",
			"id", job.Tape.ID,
			"vendor", job.Tape.Vendor,
			"error", err,
		)
		return
	}

	p.logger.Info("tape recorded",
		"id", job.Tape.ID,
		"vendor", job.Tape.Vendor,
		"frames", len(job.Tape.Frames),
		"outcome", job.Tape.Outcome,
	)

	if p.config.Publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishTape(pubCtx, eventstream.NewTapeRecordedEvent(job.Tape)); err != nil {
		p.logger.Warn("tape event not published",
			"id", job.Tape.ID,
			"error", err,
		)
	}
}
