package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/feedgen/internal/config"
	"github.com/rzbill/feedgen/internal/dispatch"
	"github.com/rzbill/feedgen/internal/feeds"
	"github.com/rzbill/feedgen/internal/firehose"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

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

const gen = "at://did:plc:test/app.bsky.feed.generator/"

func testConfig(dir string) cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.DataDir = dir
	cfg.Storage.Fsync = "never"
	cfg.Commit.Every = 3
	cfg.Commit.Interval = 0
	cfg.Feeds = []cfgpkg.FeedConfig{
		{
			Name: "popular", Kind: cfgpkg.KindView, Source: "mostliked",
			URI: gen + "popular",
		},
		{
			Name: "rapidfire", Kind: cfgpkg.KindRecency,
			URI:    gen + "rapidfire",
			Match:  cfgpkg.MatchConfig{Collections: []string{firehose.CollectionPost}},
			Params: cfgpkg.FeedParams{MaxRunes: 140, Window: cfgpkg.Duration(15 * time.Minute)},
		},
		{
			Name: "mostliked", Kind: cfgpkg.KindDecay,
			URI:    gen + "most-liked",
			Match:  cfgpkg.MatchConfig{Collections: []string{"app.bsky.feed.*"}},
			Queued: true,
			Params: cfgpkg.FeedParams{Tau: cfgpkg.Duration(6 * time.Hour), Signals: []string{"like"}},
		},
	}
	return cfg
}

func openRuntime(t *testing.T, cfg cfgpkg.Config, clk *testClock) *Runtime {
	t.Helper()
	rt, err := Open(Options{Config: cfg, Clock: clk.Now})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func postCommit(seq uint64, repo, rkey string, at time.Time) firehose.Commit {
	op := firehose.RepoOp{
		Action:     firehose.ActionCreate,
		Collection: firehose.CollectionPost,
		RKey:       rkey,
		Path:       firehose.CollectionPost + "/" + rkey,
		Record:     &firehose.Record{Type: firehose.CollectionPost, Text: "hello " + rkey, CreatedAt: at.Format(time.RFC3339Nano)},
	}
	return firehose.Commit{Seq: seq, Repo: repo, Ops: []firehose.RepoOp{op}}
}

func likeCommit(seq uint64, subject string, at time.Time) firehose.Commit {
	rkey := fmt.Sprintf("l%d", seq)
	op := firehose.RepoOp{
		Action:     firehose.ActionCreate,
		Collection: firehose.CollectionLike,
		RKey:       rkey,
		Path:       firehose.CollectionLike + "/" + rkey,
		Record:     &firehose.Record{Type: firehose.CollectionLike, SubjectURI: subject, CreatedAt: at.Format(time.RFC3339Nano)},
	}
	return firehose.Commit{Seq: seq, Repo: "did:plc:liker", Ops: []firehose.RepoOp{op}}
}

func postURI(repo, rkey string) string {
	return "at://" + repo + "/" + firehose.CollectionPost + "/" + rkey
}

func handle(t *testing.T, ing *Ingestor, c firehose.Commit) {
	t.Helper()
	if err := ing.Handle(context.Background(), c); err != nil {
		t.Fatalf("handle %d: %v", c.Seq, err)
	}
}

func checkpointSeq(t *testing.T, rt *Runtime) (uint64, bool) {
	t.Helper()
	seq, ok, err := rt.Checkpoint().Sequence()
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	return seq, ok
}

func processor(t *testing.T, rt *Runtime, name string) *feeds.Processor {
	t.Helper()
	f, ok := rt.Feed(name)
	if !ok {
		t.Fatalf("no feed %s", name)
	}
	p, ok := f.(*feeds.Processor)
	if !ok {
		t.Fatalf("feed %s is %T", name, f)
	}
	return p
}

func TestOpenDefaultConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	rt := openRuntime(t, cfg, &testClock{t: t0})

	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if got := len(rt.Feeds()); got != len(cfg.Feeds) {
		t.Fatalf("feeds = %d", got)
	}
	for _, fc := range cfg.Feeds {
		uri := fc.URI
		param := ""
		if fc.Kind == cfgpkg.KindTagIndex {
			uri = uri[:len(uri)-1] + "NYA"
			param = "NYA"
		}
		f, p, err := rt.Routes().Resolve(uri)
		if err != nil {
			t.Fatalf("resolve %s: %v", uri, err)
		}
		if f.Name() != fc.Name || p != param {
			t.Fatalf("resolve %s: %s %q", uri, f.Name(), p)
		}
	}
	// views and delegates do not ingest
	names := rt.Dispatcher().Names()
	for _, n := range names {
		if n == "popular" || n == "nz-interesting" {
			t.Fatalf("%s should not be dispatched to: %v", n, names)
		}
	}
	if len(names) != 7 {
		t.Fatalf("dispatch names = %v", names)
	}
	health := rt.FeedHealth(context.Background())
	if len(health) != len(cfg.Feeds) {
		t.Fatalf("feed health = %v", health)
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Feeds[1].URI = gen + "most-liked"
	if _, err := Open(Options{Config: cfg}); !errors.Is(err, feeds.ErrAmbiguousRoute) {
		t.Fatalf("want ErrAmbiguousRoute, got %v", err)
	}
	// the failed open must release the stores
	cfg = testConfig(cfg.DataDir)
	rt, err := Open(Options{Config: cfg})
	if err != nil {
		t.Fatalf("reopen after failure: %v", err)
	}
	_ = rt.Close(context.Background())

	cfg.Feeds[0].Source = "rapidfire-missing"
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("unknown view source should fail")
	}
}

func TestIngestCommitCadence(t *testing.T) {
	clk := &testClock{t: t0}
	rt := openRuntime(t, testConfig(t.TempDir()), clk)
	ing, err := rt.NewIngestor()
	if err != nil {
		t.Fatalf("ingestor: %v", err)
	}
	if _, ok := ing.Cursor(); ok {
		t.Fatalf("cold start should have no cursor")
	}

	handle(t, ing, postCommit(10, "did:plc:a", "p1", t0))
	handle(t, ing, postCommit(11, "did:plc:a", "p2", t0))
	if _, ok := checkpointSeq(t, rt); ok {
		t.Fatalf("checkpoint written before commit_every")
	}
	rf, _ := rt.Feed("rapidfire")
	if page, _ := rf.Serve(context.Background(), feeds.ServeRequest{}); len(page.URIs) != 0 {
		t.Fatalf("uncommitted posts served: %v", page.URIs)
	}

	handle(t, ing, postCommit(12, "did:plc:a", "p3", t0))
	if seq, ok := checkpointSeq(t, rt); !ok || seq != 12 {
		t.Fatalf("checkpoint = %d %v", seq, ok)
	}
	page, err := rf.Serve(context.Background(), feeds.ServeRequest{})
	if err != nil || len(page.URIs) != 3 || page.URIs[0] != postURI("did:plc:a", "p3") {
		t.Fatalf("served %v %v", page.URIs, err)
	}

	// re-delivery after a reconnect is skipped
	handle(t, ing, postCommit(11, "did:plc:a", "p2", t0))
	if seq, _ := ing.Cursor(); seq != 12 {
		t.Fatalf("cursor = %d", seq)
	}
}

func TestIngestCommitsOnIntervalBoundary(t *testing.T) {
	clk := &testClock{t: t0.Add(10 * time.Second)}
	cfg := testConfig(t.TempDir())
	cfg.Commit.Every = 1000
	cfg.Commit.Interval = cfgpkg.Duration(time.Minute)
	rt := openRuntime(t, cfg, clk)
	ing, err := rt.NewIngestor()
	if err != nil {
		t.Fatalf("ingestor: %v", err)
	}
	handle(t, ing, postCommit(1, "did:plc:a", "p1", t0))
	if _, ok := checkpointSeq(t, rt); ok {
		t.Fatalf("committed before the boundary")
	}
	clk.Advance(50 * time.Second)
	handle(t, ing, postCommit(2, "did:plc:a", "p2", t0))
	if seq, ok := checkpointSeq(t, rt); !ok || seq != 2 {
		t.Fatalf("checkpoint = %d %v", seq, ok)
	}
	if ing.Committed() != 2 {
		t.Fatalf("committed = %d", ing.Committed())
	}
}

func TestResumeAfterCrashRedelivery(t *testing.T) {
	dir := t.TempDir()
	clk := &testClock{t: t0}
	cfg := testConfig(dir)
	cfg.Commit.Every = 1000
	// A stopping worker commits what it holds; a crash would lose it, as
	// direct writes are lost on Close.
	cfg.Feeds[2].Queued = false
	target := postURI("did:plc:a", "p1")

	rt, err := Open(Options{Config: cfg, Clock: clk.Now})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ing, err := rt.NewIngestor()
	if err != nil {
		t.Fatalf("ingestor: %v", err)
	}
	for seq := uint64(1); seq <= 1000; seq++ {
		handle(t, ing, postCommit(seq, "did:plc:a", fmt.Sprintf("p%d", seq), t0))
	}
	if seq, _ := checkpointSeq(t, rt); seq != 1000 {
		t.Fatalf("checkpoint = %d", seq)
	}
	for seq := uint64(1001); seq <= 1050; seq++ {
		handle(t, ing, likeCommit(seq, target, t0))
	}
	// crash: nothing after 1000 was committed
	if err := rt.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	rt = openRuntime(t, cfg, clk)
	ing, err = rt.NewIngestor()
	if err != nil {
		t.Fatalf("ingestor: %v", err)
	}
	if seq, ok := ing.Cursor(); !ok || seq != 1000 {
		t.Fatalf("resume cursor = %d %v", seq, ok)
	}
	// the relay replays a little before the cursor and then 1001..1050
	for seq := uint64(990); seq <= 1000; seq++ {
		handle(t, ing, postCommit(seq, "did:plc:a", fmt.Sprintf("p%d", seq), t0))
	}
	for seq := uint64(1001); seq <= 1050; seq++ {
		handle(t, ing, likeCommit(seq, target, t0))
	}
	if err := ing.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if seq, _ := checkpointSeq(t, rt); seq != 1050 {
		t.Fatalf("checkpoint = %d", seq)
	}

	n, err := processor(t, rt, "rapidfire").Store().Count()
	if err != nil || n != 1000 {
		t.Fatalf("rapidfire items = %d %v", n, err)
	}
	v, err := processor(t, rt, "mostliked").Store().View()
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	it, ok, err := v.Get(target)
	v.Close()
	if err != nil || !ok || it.Counter(0) != 50 {
		t.Fatalf("likes = %v %v %v", it.Counter(0), ok, err)
	}
	pop, _ := rt.Feed("popular")
	page, err := pop.Serve(context.Background(), feeds.ServeRequest{Limit: 5})
	if err != nil || len(page.URIs) != 1 || page.URIs[0] != target {
		t.Fatalf("popular = %v %v", page.URIs, err)
	}
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string) error { return errors.New("redis down") }
func (failingCounter) Flush(context.Context) error        { return errors.New("redis down") }

func TestRunCommitsOnCancelAndStopsOnHandlerError(t *testing.T) {
	clk := &testClock{t: t0}
	cfg := testConfig(t.TempDir())
	cfg.Commit.Every = 1000
	rt, err := Open(Options{Config: cfg, Clock: clk.Now, Counter: failingCounter{}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	ing, err := rt.NewIngestor()
	if err != nil {
		t.Fatalf("ingestor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	err = rt.run(ctx, ing, func(ctx context.Context, cursor firehose.CursorFunc, h firehose.HandleFunc) error {
		for seq := uint64(1); seq <= 5; seq++ {
			if err := h(ctx, postCommit(seq, "did:plc:a", fmt.Sprintf("p%d", seq), t0)); err != nil {
				return err
			}
		}
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if seq, _ := checkpointSeq(t, rt); seq != 5 {
		t.Fatalf("final commit checkpoint = %d", seq)
	}

	err = rt.run(context.Background(), ing, func(ctx context.Context, cursor firehose.CursorFunc, h firehose.HandleFunc) error {
		if seq, ok := cursor(); !ok || seq != 5 {
			t.Errorf("cursor = %d %v", seq, ok)
		}
		_ = h(ctx, postCommit(6, "did:plc:a", "p6", t0))
		return &firehose.HandlerError{Seq: 7, Err: errors.New("disk full")}
	})
	var herr *firehose.HandlerError
	if !errors.As(err, &herr) {
		t.Fatalf("want handler error, got %v", err)
	}
	if seq, _ := checkpointSeq(t, rt); seq != 5 {
		t.Fatalf("checkpoint advanced after handler error: %d", seq)
	}
}

func TestRunCommitsFrameHandledDuringShutdown(t *testing.T) {
	clk := &testClock{t: t0}
	cfg := testConfig(t.TempDir())
	cfg.Commit.Every = 1000
	rt := openRuntime(t, cfg, clk)
	ing, err := rt.NewIngestor()
	if err != nil {
		t.Fatalf("ingestor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	err = rt.run(ctx, ing, func(ctx context.Context, cursor firehose.CursorFunc, h firehose.HandleFunc) error {
		for seq := uint64(1); seq <= 3; seq++ {
			if err := h(ctx, postCommit(seq, "did:plc:a", fmt.Sprintf("p%d", seq), t0)); err != nil {
				return err
			}
		}
		// Shutdown lands while seq 4 is being handled.
		cancel()
		if err := h(ctx, postCommit(4, "did:plc:a", "p4", t0)); err != nil {
			return &firehose.HandlerError{Seq: 4, Err: err}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if seq, _ := checkpointSeq(t, rt); seq != 4 {
		t.Fatalf("checkpoint = %d, want 4", seq)
	}
	rapid, _ := rt.Feed("rapidfire")
	page, err := rapid.Serve(context.Background(), feeds.ServeRequest{Limit: 10})
	if err != nil || len(page.URIs) != 4 {
		t.Fatalf("rapidfire = %v %v", page.URIs, err)
	}

	// A cancellation surfacing as a handler error is still a clean stop.
	ctx, cancel = context.WithCancel(context.Background())
	err = rt.run(ctx, ing, func(ctx context.Context, cursor firehose.CursorFunc, h firehose.HandleFunc) error {
		if err := h(ctx, postCommit(5, "did:plc:a", "p5", t0)); err != nil {
			return err
		}
		cancel()
		return &firehose.HandlerError{Seq: 6, Err: fmt.Errorf("dispatch: %w", context.Canceled)}
	})
	if err != nil {
		t.Fatalf("run after cancelled handler: %v", err)
	}
	if seq, _ := checkpointSeq(t, rt); seq != 5 {
		t.Fatalf("checkpoint = %d, want 5", seq)
	}
}

func TestNewReaderFromConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Stream.Codec = cfgpkg.CodecJetstream
	cfg.Stream.URL = "wss://jetstream.example/subscribe?wantedCollections=app.bsky.feed.post"
	rt := openRuntime(t, cfg, &testClock{t: t0})
	if _, err := rt.NewReader(); err != nil {
		t.Fatalf("reader: %v", err)
	}
}

var _ dispatch.Counter = failingCounter{}
