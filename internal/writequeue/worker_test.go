package writequeue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rzbill/feedgen/internal/feedstore"
	pebblestore "github.com/rzbill/feedgen/internal/storage/pebble"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *feedstore.Store {
	t.Helper()
	st, err := feedstore.Open("wq", pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever}, feedstore.Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func committedCount(t *testing.T, st *feedstore.Store) int {
	t.Helper()
	n, err := st.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWritesBecomeDurableOnFlush(t *testing.T) {
	st := newStore(t)
	w := Start(st, nil)
	ctx := context.Background()
	defer w.Close(ctx)

	for i := 0; i < 100; i++ {
		if err := w.Write(feedstore.Increment("at://p", t0, 1)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Flush(ctx, nil); err != nil {
		t.Fatalf("flush: %v", err)
	}
	v, _ := st.View()
	defer v.Close()
	it, ok, err := v.Get("at://p")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if it.Counter(0) != 100 {
		t.Fatalf("weight = %v, want 100", it.Counter(0))
	}
	if s := w.Stats(); s.Applied != 100 || s.Commits != 1 {
		t.Fatalf("stats: %+v", s)
	}
}

func TestFlushRunsPrepareBeforeCommit(t *testing.T) {
	st := newStore(t)
	w := Start(st, nil)
	ctx := context.Background()
	defer w.Close(ctx)

	_ = w.Write(feedstore.Insert("at://old", t0, nil, nil))
	_ = w.Write(feedstore.Insert("at://new", t0.Add(time.Hour), nil, nil))
	err := w.Flush(ctx, func(tx *feedstore.Tx) error {
		_, err := tx.EvictCreatedBefore(t0.Add(time.Minute))
		return err
	})
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n := committedCount(t, st); n != 1 {
		t.Fatalf("committed = %d, want 1", n)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	st := newStore(t)
	w := Start(st, nil)
	for i := 0; i < 10; i++ {
		_ = w.Write(feedstore.Insert("at://p"+string(rune('a'+i)), t0, nil, nil))
	}
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := committedCount(t, st); n != 10 {
		t.Fatalf("committed = %d, want 10", n)
	}
	if err := w.Write(feedstore.Insert("at://late", t0, nil, nil)); !errors.Is(err, ErrClosed) {
		t.Fatalf("write after close: %v", err)
	}
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestFailureIsSticky(t *testing.T) {
	st := newStore(t)
	w := Start(st, nil)
	ctx := context.Background()
	defer w.Close(ctx)

	_ = w.Write(feedstore.Mutation{Kind: feedstore.KindIncrement})
	err := w.Flush(ctx, nil)
	if err == nil {
		t.Fatalf("expected flush to report apply failure")
	}
	if err := w.Write(feedstore.Insert("at://p", t0, nil, nil)); err == nil {
		t.Fatalf("expected sticky error on write")
	}
	if w.Err() == nil {
		t.Fatalf("Err() should be set")
	}
}

func TestPrepareErrorFailsFlush(t *testing.T) {
	st := newStore(t)
	w := Start(st, nil)
	ctx := context.Background()
	defer w.Close(ctx)
	boom := errors.New("boom")
	_ = w.Write(feedstore.Insert("at://p", t0, nil, nil))
	if err := w.Flush(ctx, func(*feedstore.Tx) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("flush err = %v", err)
	}
	if n := committedCount(t, st); n != 0 {
		t.Fatalf("nothing should commit after prepare failure, got %d", n)
	}
}

func TestCommandKindString(t *testing.T) {
	if CmdWrite.String() != "write" || CmdFlush.String() != "flush" || CmdShutdown.String() != "shutdown" {
		t.Fatalf("unexpected kind names")
	}
}
