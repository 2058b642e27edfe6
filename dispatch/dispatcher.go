// Package dispatch opens one streaming generation request against a vendor
// and turns the upstream bytes into an ordered llm.Action stream.
//
// Each Dispatch call runs in its own goroutine:
//
//	Dispatch --> vendor.NewRequest --> HTTP POST --> framing reader
//	    --> vendor parser --> bounded channel --> Stream.Next
//
// Transport and parse failures never surface as Go errors after Dispatch
// returns. They end the stream with an llm.Issue and an llm.ParserClose.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/papercomputeco/spool/dispatch/header"
	"github.com/papercomputeco/spool/dispatch/worker"
	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/resilience"
)

// Dispatcher routes generation requests to vendors.
type Dispatcher struct {
	config        Config
	policy        *resilience.Policy
	logger        *slog.Logger
	headerHandler *header.Handler
	workerPool    *worker.Pool
}

// New creates a Dispatcher. A nil policy is lenient production; a nil
// logger discards output. When config.Recorder is set a recording worker
// pool is started and must be released with Close.
func New(config Config, policy *resilience.Policy, log *slog.Logger) (*Dispatcher, error) {
	if log == nil {
		log = logger.Nop()
	}
	if policy == nil {
		policy = resilience.New(resilience.Config{}, log)
	}

	d := &Dispatcher{
		config:        config.withDefaults(),
		policy:        policy,
		logger:        log,
		headerHandler: header.NewHandler(),
	}

	if config.Recorder != nil {
		wp, err := worker.NewPool(&worker.Config{
			Recorder:   config.Recorder,
			Publisher:  config.Publisher,
			NumWorkers: config.RecordWorkers,
			QueueSize:  config.RecordQueueSize,
			Logger:     log,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create worker pool: %w", err)
		}
		d.workerPool = wp
	}

	return d, nil
}

// Dispatch starts a streaming generation. The only error returned is
// *UnsupportedVendorError, before any network I/O; every other failure is
// delivered in-band on the Stream.
//
// Cancelling ctx or closing the Stream aborts the upstream request.
func (d *Dispatcher) Dispatch(ctx context.Context, access llm.Access, req llm.GenerateRequest) (*Stream, error) {
	vendor, ok := provider.Lookup(access.Vendor)
	if !ok {
		return nil, &UnsupportedVendorError{Vendor: access.Vendor}
	}

	id := uuid.NewString()
	streamCtx, cancel := context.WithCancel(ctx)
	actions := make(chan llm.Action, d.config.QueueSize)

	r := newRun(d, id, vendor, access, req, streamCtx, actions)
	go r.execute()

	return &Stream{
		id:      id,
		ctx:     streamCtx,
		cancel:  cancel,
		actions: actions,
	}, nil
}

// Vendors lists the registered vendor identifiers.
func (d *Dispatcher) Vendors() []string {
	return provider.SupportedVendors()
}

// Policy returns the resilience policy the dispatcher parses with.
func (d *Dispatcher) Policy() *resilience.Policy {
	return d.policy
}

// Close drains the recording queue. Call it after the last dispatch has
// finished.
func (d *Dispatcher) Close() {
	if d.workerPool != nil {
		d.workerPool.Close()
	}
}
