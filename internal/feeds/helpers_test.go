package feeds

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/feedgen/internal/feedstore"
	"github.com/rzbill/feedgen/internal/firehose"
	pebblestore "github.com/rzbill/feedgen/internal/storage/pebble"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *testClock { return &testClock{t: t0} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func openStore(t *testing.T, name string) *feedstore.Store {
	t.Helper()
	st, err := feedstore.Open(name, pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever}, feedstore.Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newProcessor(t *testing.T, clk *testClock, s Strategy, mutate func(*Options)) *Processor {
	t.Helper()
	opts := Options{
		Name:        s.Kind(),
		Strategy:    s,
		Store:       openStore(t, s.Kind()),
		FilterLangs: true,
		Clock:       clk.Now,
	}
	if mutate != nil {
		mutate(&opts)
	}
	p, err := NewProcessor(opts)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func postRecord(text string, at time.Time, langs ...string) *firehose.Record {
	return &firehose.Record{Type: firehose.CollectionPost, Text: text, CreatedAt: ts(at), Langs: langs}
}

func createOp(collection, rkey string, rec *firehose.Record) firehose.RepoOp {
	return firehose.RepoOp{
		Action:     firehose.ActionCreate,
		Collection: collection,
		RKey:       rkey,
		Path:       collection + "/" + rkey,
		Record:     rec,
	}
}

func ingest(t *testing.T, f Feed, repo string, op firehose.RepoOp) {
	t.Helper()
	if err := f.Ingest(context.Background(), firehose.Commit{Repo: repo, Ops: []firehose.RepoOp{op}}, op); err != nil {
		t.Fatalf("ingest %s: %v", op.Path, err)
	}
}

func like(t *testing.T, f Feed, rkey, subject string, at time.Time) {
	t.Helper()
	ingest(t, f, "did:plc:liker", createOp(firehose.CollectionLike, rkey,
		&firehose.Record{Type: firehose.CollectionLike, SubjectURI: subject, CreatedAt: ts(at)}))
}

func commit(t *testing.T, f Feed) {
	t.Helper()
	if err := f.CommitChanges(context.Background()); err != nil {
		t.Fatalf("commit changes: %v", err)
	}
}

func serve(t *testing.T, f Feed, req ServeRequest) []string {
	t.Helper()
	page, err := f.Serve(context.Background(), req)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	return page.URIs
}

func stored(t *testing.T, st *feedstore.Store, uri string) (feedstore.Item, bool) {
	t.Helper()
	v, err := st.View()
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	defer v.Close()
	it, ok, err := v.Get(uri)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return it, ok
}

func postURI(repo, rkey string) string {
	return "at://" + repo + "/" + firehose.CollectionPost + "/" + rkey
}
