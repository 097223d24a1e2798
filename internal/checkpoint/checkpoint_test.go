package checkpoint

import (
	"context"
	"testing"

	pebblestore "github.com/rzbill/feedgen/internal/storage/pebble"
)

func openDB(t *testing.T, dir string) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db
}

func TestEmptyStore(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	seq, ok, err := New(db).Sequence()
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if ok || seq != 0 {
		t.Fatalf("want absent, got %d ok=%v", seq, ok)
	}
}

func TestSetSequenceNeverRegresses(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	s := New(db)
	ctx := context.Background()

	for _, seq := range []uint64{10, 50, 20, 50} {
		if err := s.SetSequence(ctx, seq); err != nil {
			t.Fatalf("set %d: %v", seq, err)
		}
	}
	seq, ok, err := s.Sequence()
	if err != nil || !ok {
		t.Fatalf("sequence: %v ok=%v", err, ok)
	}
	if seq != 50 {
		t.Fatalf("seq = %d, want 50", seq)
	}
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	if err := New(db).SetSequence(context.Background(), 1000); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db = openDB(t, dir)
	defer db.Close()
	seq, ok, err := New(db).Sequence()
	if err != nil || !ok || seq != 1000 {
		t.Fatalf("after reopen: seq=%d ok=%v err=%v", seq, ok, err)
	}
}

func TestResetRewinds(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	s := New(db)
	ctx := context.Background()
	_ = s.SetSequence(ctx, 500)
	if err := s.Reset(ctx, 100); err != nil {
		t.Fatalf("reset: %v", err)
	}
	seq, _, _ := s.Sequence()
	if seq != 100 {
		t.Fatalf("seq = %d, want 100", seq)
	}
}
