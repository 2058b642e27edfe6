package dispatch

import (
	"net/http"
	"time"

	"github.com/papercomputeco/spool/pkg/eventstream"
	"github.com/papercomputeco/spool/pkg/tape"
)

const (
	// DefaultQueueSize is the number of actions buffered per dispatch before
	// the upstream read pauses.
	DefaultQueueSize = 8

	// DefaultIdleTimeout bounds the silence between two upstream frames.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultRequestTimeout bounds one whole dispatch. LLM requests can be
	// slow, especially with thinking blocks.
	DefaultRequestTimeout = 5 * time.Minute
)

// Config is the dispatcher configuration.
type Config struct {
	// QueueSize is the capacity of each stream's action channel.
	QueueSize int

	// IdleTimeout cancels the upstream request when no frame arrives for
	// this long. Negative disables the timer.
	IdleTimeout time.Duration

	// RequestTimeout bounds a dispatch from request to last frame.
	// Negative disables the limit.
	RequestTimeout time.Duration

	// HTTPClient performs the upstream requests. Its own Timeout should be
	// zero so long streams are not cut; RequestTimeout covers that.
	HTTPClient *http.Client

	// Recorder, when set, receives a tape of every completed dispatch.
	Recorder tape.Recorder

	// Publisher, when set with a Recorder, is told about every recorded tape.
	Publisher eventstream.Publisher

	// RecordWorkers is the number of recording workers (defaults to 3).
	RecordWorkers uint

	// RecordQueueSize is the capacity of the recording queue (defaults to 256).
	RecordQueueSize uint
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	return c
}
