package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rzbill/feedgen/internal/checkpoint"
	cfgpkg "github.com/rzbill/feedgen/internal/config"
	"github.com/rzbill/feedgen/internal/dispatch"
	"github.com/rzbill/feedgen/internal/feeds"
	"github.com/rzbill/feedgen/internal/feedstore"
	"github.com/rzbill/feedgen/internal/firehose"
	"github.com/rzbill/feedgen/internal/langdetect"
	pebblestore "github.com/rzbill/feedgen/internal/storage/pebble"
	logpkg "github.com/rzbill/feedgen/pkg/log"
)

const slowCommit = 250 * time.Millisecond

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
	// Clock overrides the wall clock of every feed and the commit cadence.
	Clock feeds.Clock
	// Counter overrides the counter derived from Config.Redis.
	Counter dispatch.Counter
	// Detector overrides the detector derived from Config.LangDetect.
	Detector langdetect.Detector
}

// Runtime is the composition root: it owns the checkpoint store, every
// feed, the dispatcher and the route table. All of them are fixed once Open
// returns.
type Runtime struct {
	cfg    cfgpkg.Config
	logger logpkg.Logger
	clock  feeds.Clock

	cpDB       *pebblestore.DB
	checkpoint *checkpoint.Store
	feeds      []feeds.Feed
	byName     map[string]feeds.Feed
	routes     *feeds.RouteTable
	dispatcher *dispatch.Dispatcher
	redis      redis.UniversalClient
}

// Open validates the configuration, opens every store and wires the feeds.
// On error everything opened so far is closed again.
func Open(opts Options) (rt *Runtime, err error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	fsync, err := pebblestore.ParseFsyncMode(cfg.Storage.Fsync)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		cfg:    cfg,
		logger: logger.With(logpkg.Component("runtime")),
		clock:  opts.Clock,
		byName: make(map[string]feeds.Feed, len(cfg.Feeds)),
	}
	defer func() {
		if err != nil {
			r.closeAll(context.Background())
		}
	}()

	r.cpDB, err = pebblestore.Open(pebblestore.Options{
		DataDir:       cfgpkg.CheckpointDir(cfg.DataDir),
		Fsync:         fsync,
		FsyncInterval: cfg.Storage.FsyncInterval.D(),
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open: %w", err)
	}
	r.checkpoint = checkpoint.New(r.cpDB)

	detector := opts.Detector
	if detector == nil && cfg.LangDetect.Enabled {
		detector, err = langdetect.New(langdetect.Options{
			Languages: cfg.LangDetect.Languages,
			MinRunes:  cfg.LangDetect.MinRunes,
		})
		if err != nil {
			return nil, err
		}
	}

	b := &builder{
		cfg:      cfg,
		dataDir:  cfg.DataDir,
		fsync:    fsync,
		detector: detector,
		clock:    opts.Clock,
		logger:   logger,
		stores:   make(map[string]*feedstore.Store),
	}
	// Views last so every view finds its source store.
	for _, views := range []bool{false, true} {
		for _, fc := range cfg.Feeds {
			if (fc.Kind == cfgpkg.KindView) != views {
				continue
			}
			f, err := b.feed(fc)
			if err != nil {
				return nil, err
			}
			r.byName[fc.Name] = f
		}
	}

	var routes []feeds.Route
	var defs []dispatch.Definition
	for _, fc := range cfg.Feeds {
		f := r.byName[fc.Name]
		r.feeds = append(r.feeds, f)
		routes = append(routes, feeds.Route{Pattern: fc.URI, Feed: f})
		if !fc.Stored() {
			continue
		}
		pred, err := match(fc.Match)
		if err != nil {
			return nil, fmt.Errorf("feed %s: match: %w", fc.Name, err)
		}
		defs = append(defs, dispatch.Definition{Name: fc.Name, Match: pred, Target: f})
	}
	if r.routes, err = feeds.NewRouteTable(routes...); err != nil {
		return nil, err
	}

	counter := opts.Counter
	if counter == nil {
		counter = r.newCounter()
	}
	if r.dispatcher, err = dispatch.New(defs, counter, logger); err != nil {
		return nil, err
	}

	r.logger.Info("runtime open",
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Int("feeds", len(r.feeds)),
		logpkg.Int("ingesting", len(defs)),
	)
	return r, nil
}

func (r *Runtime) newCounter() dispatch.Counter {
	rc := r.cfg.Redis
	if rc.Addr == "" {
		return dispatch.NoopCounter{}
	}
	r.redis = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{rc.Addr},
		Password: rc.Password,
		DB:       rc.DB,
	})
	return dispatch.NewRedisCounter(r.redis, dispatch.RedisOptions{
		Prefix:   rc.Prefix,
		TotalKey: rc.TotalKey,
		Every:    rc.Every,
	})
}

// Config returns the runtime configuration with defaults resolved.
func (r *Runtime) Config() cfgpkg.Config { return r.cfg }

// Feeds returns the feeds in definition order.
func (r *Runtime) Feeds() []feeds.Feed { return append([]feeds.Feed(nil), r.feeds...) }

// Feed looks a feed up by name.
func (r *Runtime) Feed(name string) (feeds.Feed, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// Routes returns the immutable feed URI route table.
func (r *Runtime) Routes() *feeds.RouteTable { return r.routes }

// Checkpoint exposes the checkpoint store.
func (r *Runtime) Checkpoint() *checkpoint.Store { return r.checkpoint }

// Dispatcher exposes the op dispatcher.
func (r *Runtime) Dispatcher() *dispatch.Dispatcher { return r.dispatcher }

// NewReader builds the stream reader described by the configuration.
func (r *Runtime) NewReader() (*firehose.Reader, error) {
	sc := r.cfg.Stream
	var codec firehose.Codec = firehose.RepoCodec{}
	if sc.Codec == cfgpkg.CodecJetstream {
		codec = firehose.JetstreamCodec{}
	}
	bo := firehose.DefaultBackoff()
	if sc.BackoffBase > 0 {
		bo.Base = sc.BackoffBase.D()
	}
	if sc.BackoffCap > 0 {
		bo.Cap = sc.BackoffCap.D()
	}
	bo.MaxAttempts = sc.MaxAttempts
	return firehose.NewReader(firehose.Options{
		URL:     sc.URL,
		Codec:   codec,
		Backoff: bo,
		Logger:  r.logger.With(logpkg.Component("firehose")),
	})
}

// CheckHealth reports the first unhealthy store.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.cpDB == nil {
		return errors.New("checkpoint db not open")
	}
	if err := r.cpDB.CheckHealth(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	for name, err := range r.FeedHealth(ctx) {
		if err != nil {
			return fmt.Errorf("feed %s: %w", name, err)
		}
	}
	return nil
}

// FeedHealth returns the health of every feed keyed by name. Feeds without
// local state are always healthy.
func (r *Runtime) FeedHealth(ctx context.Context) map[string]error {
	out := make(map[string]error, len(r.feeds))
	for _, f := range r.feeds {
		var err error
		if hc, ok := f.(feeds.HealthChecker); ok {
			err = hc.CheckHealth()
		}
		out[f.Name()] = err
	}
	return out
}

// Close closes every feed, then the checkpoint store. Uncommitted feed
// writes are discarded; callers commit through the Ingestor first.
func (r *Runtime) Close(ctx context.Context) error {
	return r.closeAll(ctx)
}

func (r *Runtime) closeAll(ctx context.Context) error {
	var errs []error
	// Views read their source's store, so they go first.
	var views, owners []feeds.Feed
	for _, f := range r.byName {
		if k, ok := f.(interface{ Kind() string }); ok && k.Kind() == cfgpkg.KindView {
			views = append(views, f)
		} else {
			owners = append(owners, f)
		}
	}
	for _, f := range append(views, owners...) {
		if err := f.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", f.Name(), err))
		}
	}
	r.feeds = nil
	r.byName = map[string]feeds.Feed{}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
		r.redis = nil
	}
	if r.cpDB != nil {
		if err := r.cpDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("checkpoint: %w", err))
		}
		r.cpDB = nil
	}
	return errors.Join(errs...)
}
