package dispatch

import (
	"context"
	"iter"

	"github.com/papercomputeco/spool/pkg/llm"
)

// Stream is the consumer side of one dispatch. It is not safe for
// concurrent use by multiple readers.
type Stream struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	actions <-chan llm.Action
}

// ID is the dispatch id, also used as the tape id.
func (s *Stream) ID() string {
	return s.id
}

// Next blocks for the next action. It returns false once the stream has
// finished or the dispatch was cancelled; after cancellation is observed no
// buffered action is returned.
func (s *Stream) Next() (llm.Action, bool) {
	if s.ctx.Err() != nil {
		return nil, false
	}

	select {
	case a, ok := <-s.actions:
		if !ok || s.ctx.Err() != nil {
			return nil, false
		}
		return a, true
	case <-s.ctx.Done():
		return nil, false
	}
}

// All yields actions until the stream ends. Breaking out of the loop
// closes the stream.
func (s *Stream) All() iter.Seq[llm.Action] {
	return func(yield func(llm.Action) bool) {
		for {
			a, ok := s.Next()
			if !ok {
				return
			}
			if !yield(a) {
				s.Close()
				return
			}
		}
	}
}

// Close cancels the dispatch and releases the upstream connection. It is
// safe to call more than once.
func (s *Stream) Close() {
	s.cancel()
}
