package checkpoint

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	pebblestore "github.com/rzbill/feedgen/internal/storage/pebble"
)

var keySequence = []byte("checkpoint/seq")

// Store persists the last fully processed upstream sequence number.
type Store struct {
	mu sync.Mutex
	db *pebblestore.DB
}

// New wraps an open database. The Store does not own db.
func New(db *pebblestore.DB) *Store {
	return &Store{db: db}
}

// Sequence returns the stored sequence; ok is false before the first save.
func (s *Store) Sequence() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (uint64, bool, error) {
	v, err := s.db.Get(keySequence)
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("checkpoint: read: %w", err)
	}
	if len(v) < 8 {
		return 0, false, fmt.Errorf("checkpoint: corrupt value (%d bytes)", len(v))
	}
	return binary.BigEndian.Uint64(v[:8]), true, nil
}

// SetSequence durably records seq. Values at or below the stored sequence are
// ignored, so the checkpoint never moves backwards.
func (s *Store) SetSequence(ctx context.Context, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok, err := s.load()
	if err != nil {
		return err
	}
	if ok && seq <= prev {
		return nil
	}
	return s.write(ctx, seq)
}

// Reset overwrites the stored sequence unconditionally. Used by operators to
// rewind or skip ahead.
func (s *Store) Reset(ctx context.Context, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, seq)
}

func (s *Store) write(ctx context.Context, seq uint64) error {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], seq)
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(keySequence, v[:], nil); err != nil {
		return err
	}
	if err := s.db.CommitBatchSync(ctx, b); err != nil {
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	return nil
}
