package feedstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/feedgen/internal/storage/pebble"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("feedstore: closed")

// Options configures a feed store.
type Options struct {
	// FlushInterval bounds how often a commit also flushes the memtable.
	// Zero flushes on every commit.
	FlushInterval time.Duration
	// CompactAfter compacts the store once this many items have been
	// deleted since the last compaction. Zero disables it.
	CompactAfter int
}

// Store is the durable state of one feed.
type Store struct {
	name string
	db   *pebblestore.DB
	own  bool
	opts Options

	mu        sync.Mutex
	lastFlush time.Time
	deleted   int
	compacted int
	closed    bool
}

// Open opens (or creates) the pebble database for a feed and takes ownership of it.
func Open(name string, dbOpts pebblestore.Options, opts Options) (*Store, error) {
	db, err := pebblestore.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("feedstore %s: open: %w", name, err)
	}
	s := New(name, db, opts)
	s.own = true
	return s, nil
}

// New wraps an already open database. The caller keeps ownership of db.
func New(name string, db *pebblestore.DB, opts Options) *Store {
	return &Store{name: name, db: db, opts: opts, lastFlush: time.Now()}
}

// Name returns the feed name the store belongs to.
func (s *Store) Name() string { return s.name }

// DB exposes the underlying database.
func (s *Store) DB() *pebblestore.DB { return s.db }

// Begin opens a transaction. Transactions are not safe for concurrent use.
func (s *Store) Begin() *Tx {
	b := s.db.NewIndexedBatch()
	return &Tx{store: s, batch: b, reads: reads{src: b}}
}

// View returns a consistent read-only snapshot. Callers must Close it.
func (s *Store) View() (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	snap := s.db.NewSnapshot()
	return &View{snap: snap, reads: reads{src: snap}}, nil
}

// Count returns the number of items in the committed state.
func (s *Store) Count() (int, error) {
	v, err := s.View()
	if err != nil {
		return 0, err
	}
	defer v.Close()
	n := 0
	err = v.Scan(func(Item) bool { n++; return true })
	return n, err
}

// CheckHealth verifies the store is open and readable.
func (s *Store) CheckHealth() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.db.CheckHealth()
}

// Close releases the database when the store owns it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.own {
		return s.db.Close()
	}
	return nil
}

func (s *Store) commit(ctx context.Context, b *pebble.Batch, deletes int) error {
	if err := s.db.CommitBatchSync(ctx, b); err != nil {
		return fmt.Errorf("feedstore %s: commit: %w", s.name, err)
	}
	s.mu.Lock()
	due := s.opts.FlushInterval <= 0 || time.Since(s.lastFlush) >= s.opts.FlushInterval
	if due {
		s.lastFlush = time.Now()
	}
	s.deleted += deletes
	compact := s.opts.CompactAfter > 0 && s.deleted >= s.opts.CompactAfter
	if compact {
		s.deleted = 0
		s.compacted++
	}
	s.mu.Unlock()
	if due {
		if err := s.db.Flush(); err != nil {
			return fmt.Errorf("feedstore %s: flush: %w", s.name, err)
		}
	}
	if compact {
		if err := s.db.CompactRange(keyspaceStart, keyspaceEnd); err != nil {
			return fmt.Errorf("feedstore %s: compact: %w", s.name, err)
		}
	}
	return nil
}

// Compactions returns how many times eviction triggered a compaction.
func (s *Store) Compactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compacted
}

// View is a snapshot-backed Reader.
type View struct {
	reads
	snap *pebble.Snapshot
}

// Close releases the snapshot.
func (v *View) Close() error { return v.snap.Close() }
