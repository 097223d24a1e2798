package feeds

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rzbill/feedgen/internal/feedstore"
	"github.com/rzbill/feedgen/internal/firehose"
	"github.com/rzbill/feedgen/internal/langdetect"
	"github.com/rzbill/feedgen/internal/writequeue"
	logpkg "github.com/rzbill/feedgen/pkg/log"
)

// Options configures a Processor.
type Options struct {
	Name     string
	Strategy Strategy
	// Store is the feed's own store. Nil makes the feed read-only.
	Store *feedstore.Store
	// Source is the store served from; defaults to Store.
	Source *feedstore.Store
	// Queued routes writes through a write-queue worker goroutine.
	Queued bool
	// FilterLangs applies the request language filter. When false every
	// request is served as a wildcard.
	FilterLangs bool
	// Detector fills in languages for posts that declare none.
	Detector langdetect.Detector
	Clock    Clock
	Logger   logpkg.Logger
}

// Processor is the generic Feed: it owns a store and delegates scoring,
// ranking and retention to its Strategy.
type Processor struct {
	opts   Options
	logger logpkg.Logger

	mu     sync.Mutex
	tx     *feedstore.Tx
	worker *writequeue.Worker
	closed bool
}

var _ Feed = (*Processor)(nil)
var _ Debugger = (*Processor)(nil)

// NewProcessor validates opts and, for queued feeds, starts the worker.
func NewProcessor(opts Options) (*Processor, error) {
	if opts.Name == "" {
		return nil, errors.New("feeds: name is required")
	}
	if opts.Strategy == nil {
		return nil, fmt.Errorf("feeds %s: strategy is required", opts.Name)
	}
	if opts.Source == nil {
		opts.Source = opts.Store
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("feeds %s: no store to serve from", opts.Name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	p := &Processor{opts: opts, logger: logger.With(logpkg.Component("feeds"), logpkg.Feed(opts.Name))}
	if opts.Store != nil && opts.Queued {
		p.worker = writequeue.Start(opts.Store, logger)
	}
	return p, nil
}

func (p *Processor) Name() string { return p.opts.Name }

// Kind reports the strategy kind.
func (p *Processor) Kind() string { return p.opts.Strategy.Kind() }

// Store returns the feed's own store, nil for read-only feeds.
func (p *Processor) Store() *feedstore.Store { return p.opts.Store }

func (p *Processor) Ingest(ctx context.Context, c firehose.Commit, op firehose.RepoOp) error {
	if p.opts.Store == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.opts.Detector != nil && op.Record != nil && op.Collection == firehose.CollectionPost && len(op.Record.Langs) == 0 {
		rec := *op.Record
		rec.Langs = langdetect.Fill(p.opts.Detector, nil, rec.Text)
		op.Record = &rec
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return feedstore.ErrClosed
	}
	return p.opts.Strategy.Ingest(sink{p}, c, op, p.opts.Clock.Now())
}

// sink adapts the processor's write path to Sink. Callers hold p.mu.
type sink struct{ p *Processor }

func (s sink) Write(m feedstore.Mutation) error {
	if s.p.worker != nil {
		return s.p.worker.Write(m)
	}
	return s.p.txLocked().Apply(m)
}

func (s sink) Exists(uri string) (bool, error) {
	if s.p.worker == nil {
		return s.p.txLocked().Has(uri)
	}
	v, err := s.p.opts.Store.View()
	if err != nil {
		return false, err
	}
	defer v.Close()
	return v.Has(uri)
}

func (p *Processor) txLocked() *feedstore.Tx {
	if p.tx == nil {
		p.tx = p.opts.Store.Begin()
	}
	return p.tx
}

func (p *Processor) CommitChanges(ctx context.Context) error {
	n, err := p.commit(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		p.logger.Debug("evicted items", logpkg.Int("count", n))
	}
	return nil
}

func (p *Processor) Evict(ctx context.Context) (int, error) {
	return p.commit(ctx)
}

func (p *Processor) commit(ctx context.Context) (int, error) {
	if p.opts.Store == nil {
		return 0, nil
	}
	now := p.opts.Clock.Now()
	if p.worker != nil {
		var evicted int
		err := p.worker.Flush(ctx, func(tx *feedstore.Tx) error {
			n, err := p.opts.Strategy.Evict(tx, now)
			evicted = n
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("feeds %s: flush: %w", p.opts.Name, err)
		}
		return evicted, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, feedstore.ErrClosed
	}
	tx := p.txLocked()
	n, err := p.opts.Strategy.Evict(tx, now)
	if err != nil {
		return 0, fmt.Errorf("feeds %s: evict: %w", p.opts.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("feeds %s: %w", p.opts.Name, err)
	}
	return n, nil
}

func (p *Processor) rank(req ServeRequest) (ServeRequest, []Scored, error) {
	req, err := req.Normalize()
	if err != nil {
		return req, nil, err
	}
	if !p.opts.FilterLangs {
		req.Langs = nil
	}
	v, err := p.opts.Source.View()
	if err != nil {
		return req, nil, err
	}
	defer v.Close()
	ranked, err := p.opts.Strategy.Rank(v, req, req.Offset+req.Limit, p.opts.Clock.Now())
	if err != nil {
		return req, nil, err
	}
	if req.Offset >= len(ranked) {
		return req, nil, nil
	}
	return req, ranked[req.Offset:], nil
}

func (p *Processor) Serve(ctx context.Context, req ServeRequest) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	req, ranked, err := p.rank(req)
	if err != nil {
		return Page{}, err
	}
	page := Page{URIs: make([]string, 0, len(ranked))}
	for _, s := range ranked {
		page.URIs = append(page.URIs, s.Item.URI)
	}
	if len(page.URIs) > 0 {
		page.Cursor = strconv.Itoa(req.Offset + len(page.URIs))
	}
	return page, nil
}

func (p *Processor) Debug(ctx context.Context, req ServeRequest) ([]DebugRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, ranked, err := p.rank(req)
	if err != nil {
		return nil, err
	}
	now := p.opts.Clock.Now()
	rows := make([]DebugRow, 0, len(ranked))
	for _, s := range ranked {
		rows = append(rows, DebugRow{
			URI:       s.Item.URI,
			Score:     s.Score,
			CreatedAt: s.Item.CreatedAt,
			Age:       s.Item.Age(now),
			Counters:  s.Item.Counters,
			Langs:     s.Item.Langs,
			Tags:      s.Item.Tags,
		})
	}
	return rows, nil
}

// CheckHealth reports whether the backing store is usable.
func (p *Processor) CheckHealth() error {
	if p.worker != nil {
		if err := p.worker.Err(); err != nil {
			return err
		}
	}
	return p.opts.Source.CheckHealth()
}

// Close stops the worker (committing what it holds), discards any
// uncommitted direct writes and closes the feed's own store.
func (p *Processor) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.tx != nil {
		p.tx.Discard()
		p.tx = nil
	}
	p.mu.Unlock()

	var errs []error
	if p.worker != nil {
		if err := p.worker.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("feeds %s: stop worker: %w", p.opts.Name, err))
		}
	}
	if p.opts.Store != nil {
		if err := p.opts.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("feeds %s: close store: %w", p.opts.Name, err))
		}
	}
	return errors.Join(errs...)
}
