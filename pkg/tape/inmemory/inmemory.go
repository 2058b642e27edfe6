// Package inmemory provides a map-backed tape recorder.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/papercomputeco/spool/pkg/tape"
)

// Driver implements tape.Recorder using an in-memory map.
type Driver struct {
	// mu guards tapes
	mu sync.RWMutex

	// tapes is keyed by dispatch id
	tapes map[string]*tape.Tape
}

// NewDriver creates a new in-memory recorder.
func NewDriver() *Driver {
	return &Driver{
		tapes: make(map[string]*tape.Tape),
	}
}

// Record stores a tape. Recording an existing id is a no-op.
func (d *Driver) Record(_ context.Context, t *tape.Tape) error {
	if t == nil {
		return errors.New("cannot record nil tape")
	}
	if t.ID == "" {
		return errors.New("cannot record tape without id")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.tapes[t.ID]; ok {
		return nil
	}

	cp := *t
	cp.Frames = append([]tape.Frame(nil), t.Frames...)
	d.tapes[t.ID] = &cp
	return nil
}

// Get retrieves a tape by id.
func (d *Driver) Get(_ context.Context, id string) (*tape.Tape, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tapes[id]
	if !ok {
		return nil, tape.NotFoundError{ID: id}
	}

	cp := *t
	return &cp, nil
}

// List returns up to limit tapes, most recent first.
func (d *Driver) List(_ context.Context, limit int) ([]*tape.Tape, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*tape.Tape, 0, len(d.tapes))
	for _, t := range d.tapes {
		cp := *t
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the in-memory recorder.
func (d *Driver) Close() error {
	return nil
}

var _ tape.Recorder = (*Driver)(nil)
