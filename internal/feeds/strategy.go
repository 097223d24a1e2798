package feeds

import (
	"math"
	"sort"
	"time"

	"github.com/rzbill/feedgen/internal/feedstore"
	"github.com/rzbill/feedgen/internal/firehose"
)

// Sink receives the writes a strategy derives from an op.
type Sink interface {
	Write(m feedstore.Mutation) error
	// Exists reports whether uri is already stored.
	Exists(uri string) (bool, error)
}

// Scored is a ranked item.
type Scored struct {
	Item  feedstore.Item
	Score float64
}

// Strategy is the scoring policy of one feed variant. Strategies are
// stateless apart from configuration and an optional staging map, and are
// driven by a Processor.
type Strategy interface {
	Kind() string
	// Ingest turns a routed create op into writes. Ops the strategy does not
	// care about, or that lack required fields, are ignored.
	Ingest(sink Sink, c firehose.Commit, op firehose.RepoOp, now time.Time) error
	// Rank returns up to n items in serve order.
	Rank(r feedstore.Reader, req ServeRequest, n int, now time.Time) ([]Scored, error)
	// Evict deletes items that fail retention.
	Evict(tx *feedstore.Tx, now time.Time) (int, error)
}

// Decay is the exponential decay factor exp(-age/tau). Ages below zero are
// treated as zero.
func Decay(age, tau time.Duration) float64 {
	if tau <= 0 {
		return 1
	}
	if age < 0 {
		age = 0
	}
	return math.Exp(-age.Seconds() / tau.Seconds())
}

// topScored scans every item, keeps those score accepts, and returns the n
// best ordered by score, then recency, then URI.
func topScored(r feedstore.Reader, langs []string, n int, score func(feedstore.Item) (float64, bool)) ([]Scored, error) {
	var out []Scored
	err := r.Scan(func(it feedstore.Item) bool {
		if !it.MatchesLangs(langs) {
			return true
		}
		s, ok := score(it)
		if !ok {
			return true
		}
		out = append(out, Scored{Item: it, Score: s})
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
			return a.Item.CreatedAt.After(b.Item.CreatedAt)
		}
		return a.Item.URI < b.Item.URI
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// newest collects up to n items from a newest-first scan.
func newest(scan func(func(feedstore.Item) bool) error, langs []string, n int, keep func(feedstore.Item) bool) ([]Scored, error) {
	var out []Scored
	err := scan(func(it feedstore.Item) bool {
		if len(out) >= n {
			return false
		}
		if !it.MatchesLangs(langs) {
			return true
		}
		if keep != nil && !keep(it) {
			return true
		}
		out = append(out, Scored{Item: it, Score: float64(it.CreatedAt.UnixMicro())})
		return len(out) < n
	})
	return out, err
}
