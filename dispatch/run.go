package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/papercomputeco/spool/dispatch/worker"
	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider"
	"github.com/papercomputeco/spool/pkg/sse"
	"github.com/papercomputeco/spool/pkg/tape"
	"github.com/papercomputeco/spool/pkg/utils"
)

var (
	errIdleTimeout    = errors.New("idle timeout")
	errRequestTimeout = errors.New("request timeout")
)

// run is the producer side of one dispatch.
type run struct {
	d      *Dispatcher
	id     string
	vendor provider.Vendor
	access llm.Access
	req    llm.GenerateRequest
	logger *slog.Logger

	// ctx is the stream context, cancelled only by the consumer.
	ctx context.Context
	out chan<- llm.Action

	started  time.Time
	target   string
	frames   []tape.Frame
	metadata llm.Metadata
	outcome  string
	closed   bool
	excerpt  *excerpt
}

func newRun(d *Dispatcher, id string, vendor provider.Vendor, access llm.Access, req llm.GenerateRequest, ctx context.Context, out chan<- llm.Action) *run {
	return &run{
		d:       d,
		id:      id,
		vendor:  vendor,
		access:  access,
		req:     req,
		logger:  d.logger.With("dispatch_id", id, "vendor", vendor.Name),
		ctx:     ctx,
		out:     out,
		started: time.Now(),
		outcome: tape.OutcomeOK,
	}
}

func (r *run) execute() {
	defer close(r.out)

	reqCtx, cancel := context.WithCancelCause(r.ctx)
	defer cancel(nil)

	if timeout := r.d.config.RequestTimeout; timeout > 0 {
		var stop context.CancelFunc
		reqCtx, stop = context.WithTimeoutCause(reqCtx, timeout, errRequestTimeout)
		defer stop()
	}

	r.logger.Debug("dispatching", "model", r.req.Model)

	if err := r.stream(reqCtx, cancel); err != nil {
		r.fail(err)
	}
	if !r.closed && r.ctx.Err() == nil {
		r.emit(llm.ParserClose{})
	}

	if !r.closed {
		r.logger.Debug("dispatch cancelled", "frames", len(r.frames))
		return
	}

	r.logger.Info("dispatch complete",
		"outcome", r.outcome,
		"frames", len(r.frames),
		"duration", time.Since(r.started),
	)
	r.record()
}

// stream performs the request and drives the parser. A nil return with
// r.closed unset means the consumer cancelled.
func (r *run) stream(ctx context.Context, cancel context.CancelCauseFunc) error {
	httpReq, err := r.vendor.NewRequest(ctx, r.access, r.req)
	if err != nil {
		return &UpstreamError{Kind: KindFetch, Vendor: r.vendor.Name, Message: "building request", Err: err}
	}
	r.d.headerHandler.SetUpstreamRequestHeaders(httpReq, r.access.Headers)
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", utils.UserAgent())
	}
	r.target = httpReq.URL.Redacted()

	idle := newIdleTimer(r.d.config.IdleTimeout, cancel)
	defer idle.stop()

	resp, err := r.d.config.HTTPClient.Do(httpReq)
	idle.stop()
	if err != nil {
		return r.upstreamError(ctx, KindFetch, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return r.httpError(ctx, resp)
	}

	source := r.frame(resp.Body)
	parser := r.vendor.NewParser(provider.ParserOptions{Policy: r.d.policy, Start: r.started})

	for {
		idle.reset()
		ev, err := source.Next()
		idle.stop()
		if err != nil {
			return r.upstreamError(ctx, KindRead, "reading stream", err)
		}
		if ev == nil {
			break
		}

		r.frames = append(r.frames, tape.Frame{Name: ev.Type, Data: ev.Data})

		actions, err := parser.Parse(ev.Type, ev.Data)
		if !r.emit(actions...) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.closed {
			return nil
		}
	}

	actions, err := parser.End()
	if !r.emit(actions...) {
		return nil
	}
	return err
}

func (r *run) frame(body io.Reader) sse.Source {
	var tee io.Writer
	if r.d.policy.Diagnostics() {
		r.excerpt = &excerpt{}
		tee = r.excerpt
	}

	if r.vendor.Framing == provider.FramingNDJSON {
		return sse.NewLineReader(body, tee)
	}
	return sse.NewTeeReader(body, tee)
}

// emit forwards actions in order, blocking while the queue is full. It
// returns false once the consumer has cancelled.
func (r *run) emit(actions ...llm.Action) bool {
	for _, a := range actions {
		if r.closed {
			return true
		}

		switch a := a.(type) {
		case llm.Set:
			r.metadata.Apply(a)
		case llm.Issue:
			r.outcome = a.Symbol
		case llm.ParserClose:
			r.closed = true
		}

		select {
		case r.out <- a:
		case <-r.ctx.Done():
			r.closed = false
			return false
		}
	}
	return true
}

// fail ends the stream with an Issue for err, unless the consumer is gone.
func (r *run) fail(err error) {
	if r.ctx.Err() != nil {
		return
	}

	issue := llm.IssueFromError(err)
	issue.Message = r.d.policy.Describe(err)
	if r.excerpt != nil && !hasExcerpt(err) {
		if ex := r.excerpt.String(); ex != "" {
			issue.Message += "; upstream excerpt: " + ex
		}
	}

	r.logger.Warn("dispatch failed", "symbol", issue.Symbol, "error", err)
	r.emit(issue, llm.ParserClose{})
}

// upstreamError classifies a transport error, preferring the cancellation
// cause recorded on ctx.
func (r *run) upstreamError(ctx context.Context, kind UpstreamKind, msg string, err error) error {
	switch cause := context.Cause(ctx); {
	case errors.Is(cause, errIdleTimeout):
		kind = KindIdleTimeout
		msg = fmt.Sprintf("no data received for %s", r.d.config.IdleTimeout)
	case errors.Is(cause, errRequestTimeout):
		msg = fmt.Sprintf("request exceeded %s", r.d.config.RequestTimeout)
	}

	ue := &UpstreamError{Kind: kind, Vendor: r.vendor.Name, Message: msg, Err: err}

	// url.Error carries the full request URL.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		ue.Err = urlErr.Err
	}
	if r.d.policy.Diagnostics() {
		ue.URL = r.target
	}
	return ue
}

func (r *run) httpError(ctx context.Context, resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if err != nil && len(body) == 0 {
		return r.upstreamError(ctx, KindRead, fmt.Sprintf("reading status %d body", resp.StatusCode), err)
	}

	ue := &UpstreamError{
		Kind:    KindHTTP,
		Vendor:  r.vendor.Name,
		Status:  resp.StatusCode,
		Message: summarize(body),
	}
	if r.d.policy.Diagnostics() {
		ue.URL = r.target
		ue.Excerpt = bounded(string(body))
	}
	return ue
}

func (r *run) record() {
	if r.d.workerPool == nil {
		return
	}

	model := r.metadata.Model
	if model == "" {
		model = r.req.Model
	}

	r.d.workerPool.Enqueue(worker.Job{Tape: &tape.Tape{
		ID:          r.id,
		Vendor:      r.vendor.Name,
		Model:       model,
		StartedAt:   r.started,
		CompletedAt: time.Now(),
		Frames:      r.frames,
		Outcome:     r.outcome,
		Metadata:    r.metadata,
	}})
}

func hasExcerpt(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Excerpt != ""
}

// idleTimer cancels the request when the upstream stays quiet. It only runs
// while waiting on the network, never while the consumer applies
// backpressure.
type idleTimer struct {
	timer   *time.Timer
	timeout time.Duration
}

func newIdleTimer(timeout time.Duration, cancel context.CancelCauseFunc) *idleTimer {
	if timeout <= 0 {
		return &idleTimer{}
	}
	return &idleTimer{
		timer:   time.AfterFunc(timeout, func() { cancel(errIdleTimeout) }),
		timeout: timeout,
	}
}

func (t *idleTimer) reset() {
	if t.timer != nil {
		t.timer.Reset(t.timeout)
	}
}

func (t *idleTimer) stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}
