package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	lastDispatchFile = "last_dispatch.json"
)

// LastDispatch records the most recent dispatch started from the CLI so that
// "spool replay" can default to it.
type LastDispatch struct {
	// ID is the dispatch id, which is also the tape id.
	ID string `json:"id"`

	Vendor string    `json:"vendor"`
	Model  string    `json:"model,omitempty"`
	At     time.Time `json:"at"`
}

// LoadLastDispatch loads .spool/last_dispatch.json.
// Returns nil, nil if no dispatch was recorded yet.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadLastDispatch(overrideDir string) (*LastDispatch, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, lastDispatchFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last dispatch: %w", err)
	}

	last := &LastDispatch{}
	if err := json.Unmarshal(data, last); err != nil {
		return nil, fmt.Errorf("parsing last dispatch: %w", err)
	}

	return last, nil
}

// SaveLastDispatch persists last to .spool/last_dispatch.json.
func (m *Manager) SaveLastDispatch(last *LastDispatch, overrideDir string) error {
	if last == nil {
		return errors.New("cannot save nil last dispatch")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling last dispatch: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, lastDispatchFile), data, 0o600); err != nil {
		return fmt.Errorf("writing last dispatch: %w", err)
	}

	return nil
}

// ClearLastDispatch removes the last dispatch record.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearLastDispatch(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, lastDispatchFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing last dispatch: %w", err)
	}

	return nil
}
