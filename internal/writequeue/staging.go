package writequeue

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rzbill/feedgen/internal/feedstore"
)

// StagingOptions bounds the staging map.
type StagingOptions struct {
	Size            int
	TTL             time.Duration
	MinInteractions float64
	// MetaSize and MetaTTL bound the post metadata kept for subjects that
	// have not been promoted yet. MetaTTL should outlive TTL so a subject
	// whose candidate expired still promotes with its own creation time
	// and languages.
	MetaSize int
	MetaTTL  time.Duration
}

// Interaction is one observation of a subject. At is the subject's creation
// instant when it is first staged and the update instant afterwards.
type Interaction struct {
	URI   string
	Delta float64
	At    time.Time
	Langs []string
}

type candidate struct {
	createdAt time.Time
	firstSeen time.Time
	weight    float64
	langs     []string
	promoted  bool
}

// postMeta is what a post create tells us about its own URI.
type postMeta struct {
	createdAt time.Time
	langs     []string
	notedAt   time.Time
}

// Staging holds candidate items in memory until they collect enough
// interactions to be written durably. Entries live at most TTL from their
// first sighting; unpromoted entries then vanish without any write.
type Staging struct {
	mu   sync.Mutex
	lru  *expirable.LRU[string, *candidate]
	meta *expirable.LRU[string, postMeta]
	opts StagingOptions
}

// NewStaging builds a staging map. Defaults: 100k entries, 1h TTL, 1
// interaction, and metadata for as many posts kept for 6h.
func NewStaging(opts StagingOptions) *Staging {
	if opts.Size <= 0 {
		opts.Size = 100_000
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.MinInteractions <= 0 {
		opts.MinInteractions = 1
	}
	if opts.MetaSize <= 0 {
		opts.MetaSize = opts.Size
	}
	if opts.MetaTTL <= 0 {
		opts.MetaTTL = 6 * time.Hour
	}
	if opts.MetaTTL < opts.TTL {
		opts.MetaTTL = opts.TTL
	}
	return &Staging{
		lru:  expirable.NewLRU[string, *candidate](opts.Size, nil, opts.TTL),
		meta: expirable.NewLRU[string, postMeta](opts.MetaSize, nil, opts.MetaTTL),
		opts: opts,
	}
}

func (s *Staging) lookupMeta(uri string, now time.Time) (postMeta, bool) {
	pm, ok := s.meta.Peek(uri)
	if !ok {
		return postMeta{}, false
	}
	if now.Sub(pm.notedAt) > s.opts.MetaTTL {
		s.meta.Remove(uri)
		return postMeta{}, false
	}
	return pm, true
}

// Note records a post's own creation instant and languages. A promoted
// subject gets the languages merged in through the returned mutation; an
// unpromoted one keeps them until promotion, surviving its candidate's
// expiry for up to MetaTTL.
func (s *Staging) Note(uri string, createdAt time.Time, langs []string, now time.Time) (feedstore.Mutation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.lookup(uri, now)
	if ok && c.promoted {
		if len(langs) == 0 {
			return feedstore.Mutation{}, false
		}
		return feedstore.Annotate(uri, createdAt, langs), true
	}
	if ok {
		c.createdAt = createdAt
		c.langs = mergeLangs(c.langs, langs)
	}
	s.meta.Add(uri, postMeta{createdAt: createdAt, langs: append([]string(nil), langs...), notedAt: now})
	return feedstore.Mutation{}, false
}

func (s *Staging) lookup(uri string, now time.Time) (*candidate, bool) {
	c, ok := s.lru.Peek(uri)
	if !ok {
		return nil, false
	}
	if now.Sub(c.firstSeen) > s.opts.TTL {
		s.lru.Remove(uri)
		return nil, false
	}
	return c, true
}

// Known reports whether uri has a live entry.
func (s *Staging) Known(uri string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(uri, now)
	return ok
}

// MarkPromoted records that uri already exists durably so later interactions
// pass straight through.
func (s *Staging) MarkPromoted(uri string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.lookup(uri, now); ok {
		c.promoted = true
		return
	}
	s.lru.Add(uri, &candidate{firstSeen: now, promoted: true})
}

// Add records an interaction. It returns a mutation to persist when the
// subject reaches the promotion threshold or is already promoted.
func (s *Staging) Add(in Interaction, now time.Time) (feedstore.Mutation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.lookup(in.URI, now)
	if !ok {
		c = &candidate{createdAt: in.At, firstSeen: now}
		if pm, ok := s.lookupMeta(in.URI, now); ok {
			c.createdAt = pm.createdAt
			c.langs = append([]string(nil), pm.langs...)
		}
		s.lru.Add(in.URI, c)
	}
	if c.promoted {
		if in.Delta == 0 {
			if len(in.Langs) == 0 {
				return feedstore.Mutation{}, false
			}
			return feedstore.Annotate(in.URI, in.At, in.Langs), true
		}
		m := feedstore.Increment(in.URI, in.At, in.Delta)
		m.Langs = in.Langs
		return m, true
	}

	c.weight += in.Delta
	c.langs = mergeLangs(c.langs, in.Langs)
	if c.weight < s.opts.MinInteractions {
		return feedstore.Mutation{}, false
	}
	c.promoted = true
	m := feedstore.Increment(in.URI, c.createdAt, c.weight)
	m.Langs = c.langs
	c.langs = nil
	s.meta.Remove(in.URI)
	return m, true
}

// Len returns the number of entries, including expired ones not yet reaped.
func (s *Staging) Len() int {
	return s.lru.Len()
}

func mergeLangs(dst, add []string) []string {
	for _, l := range add {
		dup := false
		for _, have := range dst {
			if have == l {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, l)
		}
	}
	return dst
}
