// Package journal records selected input events into a SQLite database.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"globalmkh/internal/input"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    ts_ns   INTEGER NOT NULL,
    name    TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_ns);
CREATE INDEX IF NOT EXISTS idx_events_name ON events(name, ts_ns);
`

const (
	bufferSize = 512
	maxBatch   = 64
)

// ErrReadOnly is returned when recording into a journal opened with
// OpenReadOnly.
var ErrReadOnly = errors.New("journal is read-only")

// Subscriber is the part of the emitter the journal uses.
type Subscriber interface {
	On(name input.EventName, fn input.Handler) (*input.Subscription, error)
}

// Entry is one recorded event.
type Entry struct {
	ID      int64
	Time    time.Time
	Name    input.EventName
	Payload json.RawMessage
}

// Event decodes the stored payload.
func (e Entry) Event() (input.Event, error) {
	var ev input.Event
	if err := json.Unmarshal(e.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decode entry %d: %w", e.ID, err)
	}
	return ev, nil
}

// Journal writes events on a background goroutine. Record never blocks;
// events arriving while the buffer is full are counted and dropped.
type Journal struct {
	db  *sql.DB
	log zerolog.Logger

	mu       sync.Mutex
	closed   bool
	readOnly bool
	ch     chan input.Event
	subs   []*input.Subscription

	done    chan struct{}
	dropped atomic.Uint64
	written atomic.Uint64
}

// Open opens or creates the database at path and starts the writer.
func Open(path string, log zerolog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return start(db, log, false), nil
}

// OpenReadOnly opens an existing journal for queries. It never creates the
// file, its directory or the schema.
func OpenReadOnly(path string, log zerolog.Logger) (*Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+filepath.ToSlash(path)+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return start(db, log, true), nil
}

func start(db *sql.DB, log zerolog.Logger, readOnly bool) *Journal {
	j := &Journal{
		db:       db,
		log:      log,
		readOnly: readOnly,
		ch:       make(chan input.Event, bufferSize),
		done:     make(chan struct{}),
	}
	go j.writeLoop()
	return j
}

// Attach subscribes the journal to names on s. Subscriptions are released
// by Close.
func (j *Journal) Attach(s Subscriber, names []input.EventName) error {
	if j.readOnly {
		return ErrReadOnly
	}
	var errs []error
	for _, name := range names {
		sub, err := s.On(name, j.Record)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		j.mu.Lock()
		j.subs = append(j.subs, sub)
		j.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Record queues ev for writing. It satisfies input.Handler.
func (j *Journal) Record(ev input.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.readOnly {
		return ErrReadOnly
	}
	if j.closed {
		return nil
	}
	select {
	case j.ch <- ev:
	default:
		j.dropped.Add(1)
	}
	return nil
}

func (j *Journal) writeLoop() {
	defer close(j.done)

	batch := make([]input.Event, 0, maxBatch)
	for ev := range j.ch {
		batch = append(batch[:0], ev)
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-j.ch:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}

		if err := j.insert(batch); err != nil {
			j.log.Error().Err(err).Int("events", len(batch)).Msg("journal write failed")
			continue
		}
		j.written.Add(uint64(len(batch)))
	}
}

func (j *Journal) insert(batch []input.Event) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events (ts_ns, name, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range batch {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ev.Name, err)
		}
		if _, err := stmt.Exec(ev.Time.UnixNano(), string(ev.Name), string(payload)); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, ts_ns, name, payload FROM events ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			ts      int64
			name    string
			payload string
		)
		if err := rows.Scan(&e.ID, &ts, &name, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Time = time.Unix(0, ts)
		e.Name = input.EventName(name)
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of rows for name, or all rows when name is empty.
func (j *Journal) Count(ctx context.Context, name input.EventName) (int, error) {
	var n int
	var err error
	if name == "" {
		err = j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	} else {
		err = j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE name = ?`, string(name)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Stats reports written and dropped event counts.
func (j *Journal) Stats() (written, dropped uint64) {
	return j.written.Load(), j.dropped.Load()
}

// Close unsubscribes, flushes queued events and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	subs := j.subs
	j.subs = nil
	close(j.ch)
	j.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	<-j.done
	return j.db.Close()
}
