// Package sqlstore implements tape.Recorder over database/sql. The sqlite and
// postgres packages open the connection and pick the placeholder dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/spool/pkg/tape"
)

// Dialect selects the bind placeholder style.
type Dialect int

const (
	// Question uses "?" placeholders (SQLite).
	Question Dialect = iota
	// Dollar uses "$1" style placeholders (PostgreSQL).
	Dollar
)

// timeLayout is fixed width so the text column sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `CREATE TABLE IF NOT EXISTS tapes (
	id           TEXT PRIMARY KEY,
	vendor       TEXT NOT NULL,
	model        TEXT NOT NULL DEFAULT '',
	started_at   TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	frames       TEXT NOT NULL,
	metadata     TEXT NOT NULL
)`

const index = `CREATE INDEX IF NOT EXISTS tapes_started_at ON tapes (started_at)`

// Store is a tape.Recorder over an open *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps db and creates the schema if needed. The store owns db from here
// on and closes it in Close.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	for _, stmt := range []string{schema, index} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Store{db: db, dialect: dialect}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Record inserts a tape. An existing id is left untouched.
func (s *Store) Record(ctx context.Context, t *tape.Tape) error {
	if t == nil {
		return errors.New("cannot record nil tape")
	}
	if t.ID == "" {
		return errors.New("cannot record tape without id")
	}

	frames, err := json.Marshal(t.Frames)
	if err != nil {
		return fmt.Errorf("encoding frames: %w", err)
	}
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	query := s.bind(`INSERT INTO tapes (id, vendor, model, started_at, completed_at, outcome, frames, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`)

	_, err = s.db.ExecContext(ctx, query,
		t.ID, t.Vendor, t.Model,
		formatTime(t.StartedAt), formatTime(t.CompletedAt),
		t.Outcome, string(frames), string(metadata),
	)
	if err != nil {
		return fmt.Errorf("recording tape %s: %w", t.ID, err)
	}
	return nil
}

// Get retrieves a tape by id.
func (s *Store) Get(ctx context.Context, id string) (*tape.Tape, error) {
	row := s.db.QueryRowContext(ctx, s.bind(selectColumns+` WHERE id = ?`), id)

	t, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tape.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading tape %s: %w", id, err)
	}
	return t, nil
}

// List returns up to limit tapes, most recent first.
func (s *Store) List(ctx context.Context, limit int) ([]*tape.Tape, error) {
	query := selectColumns + ` ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing tapes: %w", err)
	}
	defer rows.Close()

	var out []*tape.Tape
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("listing tapes: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT id, vendor, model, started_at, completed_at, outcome, frames, metadata FROM tapes`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*tape.Tape, error) {
	var (
		t                  tape.Tape
		started, completed string
		frames, metadata   string
	)

	if err := row.Scan(&t.ID, &t.Vendor, &t.Model, &started, &completed, &t.Outcome, &frames, &metadata); err != nil {
		return nil, err
	}

	var err error
	if t.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if t.CompletedAt, err = time.Parse(timeLayout, completed); err != nil {
		return nil, fmt.Errorf("parsing completed_at: %w", err)
	}
	if err := json.Unmarshal([]byte(frames), &t.Frames); err != nil {
		return nil, fmt.Errorf("decoding frames: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &t, nil
}

// bind rewrites "?" placeholders for the store's dialect.
func (s *Store) bind(query string) string {
	if s.dialect != Dollar {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

var _ tape.Recorder = (*Store)(nil)
