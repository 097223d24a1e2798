package feeds

import (
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/rzbill/feedgen/internal/feedstore"
	"github.com/rzbill/feedgen/internal/firehose"
)

// RecencyOptions describes which posts a recency feed accepts and how long
// it keeps them.
type RecencyOptions struct {
	// MaxRunes bounds the text length in code points. Zero disables the check.
	MaxRunes     int
	RejectReply  bool
	RejectEmbed  bool
	RejectFacets bool
	RequireTags  bool
	// Pattern, when set, must match the post text.
	Pattern *regexp.Regexp
	// Window is the retention period. Zero keeps items forever.
	Window time.Duration
	Drift  time.Duration
}

type recencyStrategy struct {
	kind string
	opts RecencyOptions
}

// NewRecency returns a newest-first strategy over posts passing a
// structural filter.
func NewRecency(opts RecencyOptions) Strategy {
	return &recencyStrategy{kind: "recency", opts: opts}
}

// NewPattern returns a newest-first strategy over non-reply posts whose text
// matches re.
func NewPattern(re *regexp.Regexp, window time.Duration) Strategy {
	return &recencyStrategy{kind: "pattern", opts: RecencyOptions{Pattern: re, RejectReply: true, Window: window}}
}

func (s *recencyStrategy) Kind() string { return s.kind }

func (s *recencyStrategy) accepts(rec *firehose.Record) bool {
	o := s.opts
	switch {
	case o.MaxRunes > 0 && utf8.RuneCountInString(rec.Text) > o.MaxRunes:
		return false
	case o.RejectReply && rec.HasReply:
		return false
	case o.RejectEmbed && rec.HasEmbed:
		return false
	case o.RejectFacets && rec.HasFacets:
		return false
	case o.RequireTags && len(rec.Tags) == 0:
		return false
	case o.Pattern != nil && !o.Pattern.MatchString(rec.Text):
		return false
	}
	return true
}

func (s *recencyStrategy) Ingest(sink Sink, c firehose.Commit, op firehose.RepoOp, now time.Time) error {
	rec := op.Record
	if op.Collection != firehose.CollectionPost || rec == nil || !s.accepts(rec) {
		return nil
	}
	at := SafeTimestamp(rec.CreatedAt, now, s.opts.Drift)
	return sink.Write(feedstore.Insert(c.URI(op), at, rec.Langs, nil))
}

func (s *recencyStrategy) live(it feedstore.Item, now time.Time) bool {
	return s.opts.Window <= 0 || it.Age(now) <= s.opts.Window
}

func (s *recencyStrategy) Rank(r feedstore.Reader, req ServeRequest, n int, now time.Time) ([]Scored, error) {
	return newest(r.ScanNewest, req.Langs, n, func(it feedstore.Item) bool { return s.live(it, now) })
}

func (s *recencyStrategy) Evict(tx *feedstore.Tx, now time.Time) (int, error) {
	if s.opts.Window <= 0 {
		return 0, nil
	}
	return tx.EvictCreatedBefore(now.Add(-s.opts.Window))
}
