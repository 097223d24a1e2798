package runtime

import (
	"fmt"
	"regexp"

	cfgpkg "github.com/rzbill/feedgen/internal/config"
	"github.com/rzbill/feedgen/internal/dispatch"
	"github.com/rzbill/feedgen/internal/feeds"
	"github.com/rzbill/feedgen/internal/feedstore"
	"github.com/rzbill/feedgen/internal/langdetect"
	pebblestore "github.com/rzbill/feedgen/internal/storage/pebble"
	"github.com/rzbill/feedgen/internal/writequeue"
	logpkg "github.com/rzbill/feedgen/pkg/log"
)

// builder turns feed definitions into feeds. Stores are opened in
// definition order so views can resolve their source.
type builder struct {
	cfg      cfgpkg.Config
	dataDir  string
	fsync    pebblestore.FsyncMode
	detector langdetect.Detector
	clock    feeds.Clock
	logger   logpkg.Logger
	stores   map[string]*feedstore.Store
}

func (b *builder) openStore(name string) (*feedstore.Store, error) {
	st, err := feedstore.Open(name, pebblestore.Options{
		DataDir:       cfgpkg.FeedDir(b.dataDir, name),
		Fsync:         b.fsync,
		FsyncInterval: b.cfg.Storage.FsyncInterval.D(),
		Metrics:       pebblestore.SlowCommitLogger{Logger: b.logger.With(logpkg.Feed(name)), Threshold: slowCommit},
	}, feedstore.Options{
		FlushInterval: b.cfg.Storage.FlushInterval.D(),
		CompactAfter:  b.cfg.Storage.CompactAfter,
	})
	if err != nil {
		return nil, err
	}
	b.stores[name] = st
	return st, nil
}

func (b *builder) staging() *writequeue.Staging {
	s := b.cfg.Staging
	return writequeue.NewStaging(writequeue.StagingOptions{
		Size:            s.Size,
		TTL:             s.TTL.D(),
		MinInteractions: s.MinInteractions,
		MetaTTL:         s.MetaTTL.D(),
	})
}

// strategy maps a definition's kind to its scoring strategy.
func (b *builder) strategy(fc cfgpkg.FeedConfig) (feeds.Strategy, error) {
	p := fc.Params
	drift := p.Drift.D()
	switch fc.Kind {
	case cfgpkg.KindDecay, cfgpkg.KindRefcount:
		opts := feeds.DecayOptions{
			Tau:          p.Tau.D(),
			MinScore:     p.MinScore,
			MinRetention: p.MinRetention.D(),
			Signals:      signals(p.Signals),
			TrackLangs:   p.TrackLangs,
			Drift:        drift,
		}
		if p.Staged {
			opts.Staging = b.staging()
		}
		if fc.Kind == cfgpkg.KindRefcount {
			return feeds.NewRefcount(opts), nil
		}
		return feeds.NewDecay(opts), nil
	case cfgpkg.KindView:
		return feeds.NewView(p.Tau.D()), nil
	case cfgpkg.KindRecency:
		opts := feeds.RecencyOptions{
			MaxRunes:     p.MaxRunes,
			RejectReply:  p.RejectReply,
			RejectEmbed:  p.RejectEmbed,
			RejectFacets: p.RejectFacets,
			RequireTags:  p.RequireTags,
			Window:       p.Window.D(),
			Drift:        drift,
		}
		if p.Pattern != "" {
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				return nil, err
			}
			opts.Pattern = re
		}
		return feeds.NewRecency(opts), nil
	case cfgpkg.KindPattern:
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, err
		}
		return feeds.NewPattern(re, p.Window.D()), nil
	case cfgpkg.KindRatio:
		return feeds.NewRatio(feeds.RatioOptions{
			MinReplies: p.MinReplies,
			MinRatio:   p.MinRatio,
			Tau:        p.Tau.D(),
			MaxAge:     p.MaxAge.D(),
			Drift:      drift,
		}), nil
	case cfgpkg.KindTagIndex:
		tags := p.Tags
		if len(tags) == 0 {
			tags = feeds.TeamTags
		}
		return feeds.NewTagIndex(tags, drift), nil
	}
	return nil, fmt.Errorf("unknown kind %q", fc.Kind)
}

func signals(names []string) feeds.Signal {
	var s feeds.Signal
	for _, n := range names {
		switch n {
		case "like":
			s |= feeds.SignalLike
		case "repost":
			s |= feeds.SignalRepost
		case "quote":
			s |= feeds.SignalQuote
		}
	}
	return s
}

// feed builds one feed. Views must come after their source.
func (b *builder) feed(fc cfgpkg.FeedConfig) (feeds.Feed, error) {
	logger := b.logger.With(logpkg.Component("feed"), logpkg.Feed(fc.Name))
	if fc.Kind == cfgpkg.KindDelegate {
		d, err := feeds.NewDelegate(feeds.DelegateOptions{
			Name:   fc.Name,
			Host:   fc.Params.Host,
			Target: fc.Params.Target,
			RPS:    fc.Params.RPS,
			Burst:  fc.Params.Burst,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	strat, err := b.strategy(fc)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", fc.Name, err)
	}
	opts := feeds.Options{
		Name:        fc.Name,
		Strategy:    strat,
		Queued:      fc.Queued,
		FilterLangs: fc.FilterLangs,
		Detector:    b.detector,
		Clock:       b.clock,
		Logger:      logger,
	}
	if fc.Kind == cfgpkg.KindView {
		src, ok := b.stores[fc.Source]
		if !ok {
			return nil, fmt.Errorf("feed %s: source %q is not open", fc.Name, fc.Source)
		}
		opts.Source = src
		opts.Queued = false
	} else {
		st, err := b.openStore(fc.Name)
		if err != nil {
			return nil, err
		}
		opts.Store = st
	}
	p, err := feeds.NewProcessor(opts)
	if err != nil {
		if opts.Store != nil {
			_ = opts.Store.Close()
			delete(b.stores, fc.Name)
		}
		return nil, err
	}
	return p, nil
}

// match builds the dispatch predicate of a definition.
func match(m cfgpkg.MatchConfig) (dispatch.Predicate, error) {
	var preds []dispatch.Predicate
	if len(m.Collections) > 0 {
		preds = append(preds, dispatch.Collections(m.Collections...))
	}
	if len(m.Repos) > 0 {
		preds = append(preds, dispatch.Repo(m.Repos...))
	}
	if m.Regex != "" {
		re, err := regexp.Compile(m.Regex)
		if err != nil {
			return nil, err
		}
		preds = append(preds, dispatch.TextRegex(re))
	}
	if m.CEL != "" {
		p, err := dispatch.CEL(m.CEL)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return dispatch.All(preds...), nil
}
