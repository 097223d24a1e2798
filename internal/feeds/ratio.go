package feeds

import (
	"strings"
	"time"

	"github.com/rzbill/feedgen/internal/feedstore"
	"github.com/rzbill/feedgen/internal/firehose"
)

// Counter slots of a ratio item.
const (
	RatioReplies = iota
	RatioLikes
	RatioReposts
	RatioQuotes
	ratioSlots
)

// RatioOptions configures the ratio feed.
type RatioOptions struct {
	// MinReplies and MinRatio form the eligibility rule:
	// replies > MinReplies and (replies+quotes)/(likes+reposts) > MinRatio.
	MinReplies float64
	MinRatio   float64
	Tau        time.Duration
	// MaxAge evicts items regardless of score.
	MaxAge time.Duration
	Drift  time.Duration
}

type ratioStrategy struct {
	opts RatioOptions
}

// NewRatio returns the multi-counter ratio strategy.
func NewRatio(opts RatioOptions) Strategy {
	if opts.MinReplies <= 0 {
		opts.MinReplies = 15
	}
	if opts.MinRatio <= 0 {
		opts.MinRatio = 2.5
	}
	if opts.Tau <= 0 {
		opts.Tau = 16 * time.Hour
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 5 * 24 * time.Hour
	}
	return &ratioStrategy{opts: opts}
}

func (s *ratioStrategy) Kind() string { return "ratio" }

func (s *ratioStrategy) Ingest(sink Sink, c firehose.Commit, op firehose.RepoOp, now time.Time) error {
	rec := op.Record
	if rec == nil {
		return nil
	}
	var subject string
	slot := -1
	switch op.Collection {
	case firehose.CollectionLike:
		subject, slot = rec.SubjectURI, RatioLikes
	case firehose.CollectionRepost:
		subject, slot = rec.SubjectURI, RatioReposts
	case firehose.CollectionPost:
		switch {
		case rec.HasReply:
			// replies by the author of the parent do not count
			if strings.HasPrefix(rec.ReplyParent, "at://"+c.Repo+"/") {
				return nil
			}
			subject, slot = rec.ReplyParent, RatioReplies
		case rec.QuotedURI != "":
			subject, slot = rec.QuotedURI, RatioQuotes
		}
	}
	if subject == "" || slot < 0 {
		return nil
	}
	deltas := make([]float64, ratioSlots)
	deltas[slot] = 1
	at := SafeTimestamp(rec.CreatedAt, now, s.opts.Drift)
	return sink.Write(feedstore.Increment(subject, at, deltas...))
}

// Ratio returns (replies+quotes)/(likes+reposts) and whether the item is
// eligible for serving.
func (s *ratioStrategy) Ratio(it feedstore.Item) (float64, bool) {
	replies := it.Counter(RatioReplies)
	denom := it.Counter(RatioLikes) + it.Counter(RatioReposts)
	if denom <= 0 {
		return 0, false
	}
	ratio := (replies + it.Counter(RatioQuotes)) / denom
	return ratio, replies > s.opts.MinReplies && ratio > s.opts.MinRatio
}

func (s *ratioStrategy) Rank(r feedstore.Reader, req ServeRequest, n int, now time.Time) ([]Scored, error) {
	return topScored(r, req.Langs, n, func(it feedstore.Item) (float64, bool) {
		if it.Age(now) > s.opts.MaxAge {
			return 0, false
		}
		ratio, ok := s.Ratio(it)
		if !ok {
			return 0, false
		}
		return ratio * Decay(it.Age(now), s.opts.Tau), true
	})
}

func (s *ratioStrategy) Evict(tx *feedstore.Tx, now time.Time) (int, error) {
	return tx.EvictCreatedBefore(now.Add(-s.opts.MaxAge))
}
