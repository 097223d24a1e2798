package feeds

import (
	"time"

	"github.com/rzbill/feedgen/internal/feedstore"
	"github.com/rzbill/feedgen/internal/firehose"
	"github.com/rzbill/feedgen/internal/writequeue"
)

// Signal selects which interactions a decay feed counts.
type Signal uint8

const (
	SignalLike Signal = 1 << iota
	SignalRepost
	SignalQuote
)

// DecayOptions configures decay and refcount feeds.
type DecayOptions struct {
	// Tau is the e-folding time of the decay factor.
	Tau time.Duration
	// MinScore and MinRetention form the eviction rule: an item is removed
	// once its score is below MinScore and it is older than MinRetention.
	MinScore     float64
	MinRetention time.Duration
	Signals      Signal
	// TrackLangs records the creation instant and language tags of created
	// posts so the feed can be filtered by language. Unstaged feeds write a
	// zero-weight item per post, which eviction reclaims after MinRetention.
	TrackLangs bool
	// Staging, when set, holds new subjects in memory until they reach the
	// staging threshold.
	Staging *writequeue.Staging
	Drift   time.Duration
}

type decayStrategy struct {
	kind string
	opts DecayOptions
}

// NewDecay returns the like-driven popularity strategy.
func NewDecay(opts DecayOptions) Strategy {
	if opts.Signals == 0 {
		opts.Signals = SignalLike
	}
	return newDecay("decay", opts)
}

// NewRefcount returns the strategy that counts quote references to a post.
func NewRefcount(opts DecayOptions) Strategy {
	opts.Signals = SignalQuote
	opts.TrackLangs = false
	return newDecay("refcount", opts)
}

func newDecay(kind string, opts DecayOptions) *decayStrategy {
	if opts.Tau <= 0 {
		opts.Tau = 6 * time.Hour
	}
	if opts.MinScore <= 0 {
		opts.MinScore = 1
	}
	if opts.MinRetention <= 0 {
		opts.MinRetention = 24 * time.Hour
	}
	return &decayStrategy{kind: kind, opts: opts}
}

func (s *decayStrategy) Kind() string { return s.kind }

func (s *decayStrategy) Ingest(sink Sink, c firehose.Commit, op firehose.RepoOp, now time.Time) error {
	rec := op.Record
	if rec == nil {
		return nil
	}
	at := SafeTimestamp(rec.CreatedAt, now, s.opts.Drift)
	switch op.Collection {
	case firehose.CollectionPost:
		if s.opts.Signals&SignalQuote != 0 && rec.QuotedURI != "" {
			if err := s.bump(sink, rec.QuotedURI, at, now); err != nil {
				return err
			}
		}
		if s.opts.TrackLangs {
			return s.track(sink, c.URI(op), at, rec.Langs, now)
		}
	case firehose.CollectionLike:
		if s.opts.Signals&SignalLike != 0 && rec.SubjectURI != "" {
			return s.bump(sink, rec.SubjectURI, at, now)
		}
	case firehose.CollectionRepost:
		if s.opts.Signals&SignalRepost != 0 && rec.SubjectURI != "" {
			return s.bump(sink, rec.SubjectURI, at, now)
		}
	}
	return nil
}

func (s *decayStrategy) bump(sink Sink, uri string, at, now time.Time) error {
	st := s.opts.Staging
	if st == nil {
		return sink.Write(feedstore.Increment(uri, at, 1))
	}
	if !st.Known(uri, now) {
		stored, err := sink.Exists(uri)
		if err != nil {
			return err
		}
		if stored {
			st.MarkPromoted(uri, now)
		}
	}
	if m, ok := st.Add(writequeue.Interaction{URI: uri, Delta: 1, At: at}, now); ok {
		return sink.Write(m)
	}
	return nil
}

func (s *decayStrategy) track(sink Sink, uri string, at time.Time, langs []string, now time.Time) error {
	st := s.opts.Staging
	if st == nil {
		return sink.Write(feedstore.Track(uri, at, langs))
	}
	if m, ok := st.Note(uri, at, langs, now); ok {
		return sink.Write(m)
	}
	return nil
}

func (s *decayStrategy) score(it feedstore.Item, now time.Time) float64 {
	return it.Counter(0) * Decay(it.Age(now), s.opts.Tau)
}

func (s *decayStrategy) Rank(r feedstore.Reader, req ServeRequest, n int, now time.Time) ([]Scored, error) {
	// Zero-weight items only carry post metadata.
	return topScored(r, req.Langs, n, func(it feedstore.Item) (float64, bool) {
		return s.score(it, now), it.Counter(0) > 0
	})
}

func (s *decayStrategy) Evict(tx *feedstore.Tx, now time.Time) (int, error) {
	return tx.EvictWhere(func(it feedstore.Item) bool {
		return s.score(it, now) >= s.opts.MinScore || it.Age(now) <= s.opts.MinRetention
	})
}

// viewStrategy ranks another feed's decay store with its own time constant.
// It never writes.
type viewStrategy struct {
	tau time.Duration
}

// NewView returns a read-only decay ranking over a shared store.
func NewView(tau time.Duration) Strategy {
	if tau <= 0 {
		tau = 30 * time.Minute
	}
	return viewStrategy{tau: tau}
}

func (viewStrategy) Kind() string { return "view" }

func (viewStrategy) Ingest(Sink, firehose.Commit, firehose.RepoOp, time.Time) error { return nil }

func (v viewStrategy) Rank(r feedstore.Reader, req ServeRequest, n int, now time.Time) ([]Scored, error) {
	return topScored(r, req.Langs, n, func(it feedstore.Item) (float64, bool) {
		return it.Counter(0) * Decay(it.Age(now), v.tau), it.Counter(0) > 0
	})
}

func (viewStrategy) Evict(*feedstore.Tx, time.Time) (int, error) { return 0, nil }
