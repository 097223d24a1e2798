package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rzbill/feedgen/internal/firehose"
	logpkg "github.com/rzbill/feedgen/pkg/log"
)

// Ingestor drives the feeds from the stream. It is used by the single
// ingest goroutine; Cursor may be called concurrently.
//
// Every Commit.Every handled commits, or when the wall clock crosses a
// Commit.Interval boundary, every feed commits its pending changes and only
// then is the checkpoint advanced to the last handled sequence.
type Ingestor struct {
	rt       *Runtime
	every    int
	interval time.Duration
	logger   logpkg.Logger

	mu        sync.Mutex
	last      uint64
	haveLast  bool
	committed uint64
	pending   int
	boundary  time.Time
}

// NewIngestor loads the checkpoint and returns an ingestor resuming after it.
func (r *Runtime) NewIngestor() (*Ingestor, error) {
	seq, ok, err := r.checkpoint.Sequence()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	ing := &Ingestor{
		rt:        r,
		every:     r.cfg.Commit.Every,
		interval:  r.cfg.Commit.Interval.D(),
		logger:    r.logger.With(logpkg.Component("ingest")),
		last:      seq,
		haveLast:  ok,
		committed: seq,
	}
	ing.boundary = ing.nextBoundary(r.clock.Now())
	if ok {
		ing.logger.Info("resuming from checkpoint", logpkg.Seq(seq))
	}
	return ing, nil
}

func (i *Ingestor) nextBoundary(now time.Time) time.Time {
	if i.interval <= 0 {
		return time.Time{}
	}
	return now.Truncate(i.interval).Add(i.interval)
}

// Cursor is the resume position for the stream reader: the last handled
// sequence, which is never behind the checkpoint.
func (i *Ingestor) Cursor() (uint64, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.last, i.haveLast
}

// Committed returns the last sequence written to the checkpoint.
func (i *Ingestor) Committed() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.committed
}

// Handle dispatches one commit. Commits at or before the last handled
// sequence are re-deliveries after a reconnect and are skipped.
//
// A commit that has started is applied to every feed even if ctx is
// cancelled part way through, so shutdown never leaves it half dispatched.
func (i *Ingestor) Handle(ctx context.Context, c firehose.Commit) error {
	ctx = context.WithoutCancel(ctx)
	i.mu.Lock()
	if i.haveLast && c.Seq <= i.last {
		i.mu.Unlock()
		i.logger.Debug("skipping re-delivered commit", logpkg.Seq(c.Seq))
		return nil
	}
	i.mu.Unlock()

	if err := i.rt.dispatcher.Dispatch(ctx, c); err != nil {
		return err
	}

	i.mu.Lock()
	i.last, i.haveLast = c.Seq, true
	i.pending++
	due := i.pending >= i.every
	if now := i.rt.clock.Now(); !i.boundary.IsZero() && !now.Before(i.boundary) {
		due = true
		i.boundary = i.nextBoundary(now)
	}
	i.mu.Unlock()

	if !due {
		return nil
	}
	return i.Commit(ctx)
}

// Commit flushes every feed and then persists the last handled sequence.
// A feed failure leaves the checkpoint untouched.
func (i *Ingestor) Commit(ctx context.Context) error {
	i.mu.Lock()
	seq, ok, pending := i.last, i.haveLast, i.pending
	i.mu.Unlock()

	start := time.Now()
	for _, f := range i.rt.feeds {
		if err := f.CommitChanges(ctx); err != nil {
			return fmt.Errorf("commit %s: %w", f.Name(), err)
		}
	}
	if err := i.rt.dispatcher.Flush(ctx); err != nil {
		i.logger.Warn("counter flush failed", logpkg.Err(err))
	}
	if !ok {
		return nil
	}
	if err := i.rt.checkpoint.SetSequence(ctx, seq); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	i.mu.Lock()
	i.committed = seq
	i.pending -= pending
	i.mu.Unlock()
	i.logger.Debug("committed",
		logpkg.Seq(seq),
		logpkg.Int("events", pending),
		logpkg.Dur("elapsed", time.Since(start)),
	)
	return nil
}

// Run consumes the configured stream until ctx is cancelled, then commits
// once more so the checkpoint covers everything handled. A handler failure
// returns without committing, unless the failure is the cancellation itself.
func (r *Runtime) Run(ctx context.Context) error {
	reader, err := r.NewReader()
	if err != nil {
		return err
	}
	ing, err := r.NewIngestor()
	if err != nil {
		return err
	}
	return r.run(ctx, ing, reader.Run)
}

type runFunc func(ctx context.Context, cursor firehose.CursorFunc, handle firehose.HandleFunc) error

func (r *Runtime) run(ctx context.Context, ing *Ingestor, run runFunc) error {
	err := run(ctx, ing.Cursor, ing.Handle)
	var herr *firehose.HandlerError
	if errors.As(err, &herr) && errors.Is(herr.Err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}
	if errors.As(err, &herr) {
		r.logger.Error("ingest stopped; checkpoint not advanced",
			logpkg.Seq(herr.Seq), logpkg.Uint64("checkpoint", ing.Committed()), logpkg.Err(herr.Err))
		return err
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if cerr := ing.Commit(cctx); cerr != nil {
		return errors.Join(err, cerr)
	}
	r.logger.Info("ingest stopped", logpkg.Uint64("checkpoint", ing.Committed()))
	return err
}
