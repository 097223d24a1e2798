package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Stream codecs.
const (
	CodecRepo      = "repo"
	CodecJetstream = "jetstream"
)

// Feed kinds; each selects one scoring strategy.
const (
	KindDecay    = "decay"
	KindView     = "view"
	KindRefcount = "refcount"
	KindRecency  = "recency"
	KindPattern  = "pattern"
	KindRatio    = "ratio"
	KindTagIndex = "tagindex"
	KindDelegate = "delegate"
)

// Collections used by the default feed set.
const (
	collPost   = "app.bsky.feed.post"
	collLike   = "app.bsky.feed.like"
	collRepost = "app.bsky.feed.repost"
)

// FeedConfig defines one feed: its identity, routing and scoring parameters.
type FeedConfig struct {
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"`
	// URI is the feed generator URI served by this feed. A trailing "*"
	// makes it a wildcard whose remainder is passed to the feed as a parameter.
	URI   string      `json:"uri" yaml:"uri"`
	Match MatchConfig `json:"match" yaml:"match"`
	// Queued routes writes through a dedicated write-queue worker.
	Queued      bool `json:"queued" yaml:"queued"`
	FilterLangs bool `json:"filterLangs" yaml:"filterLangs"`
	// Source names the stored feed a view ranks.
	Source string     `json:"source,omitempty" yaml:"source,omitempty"`
	Params FeedParams `json:"params" yaml:"params"`
}

// MatchConfig selects the ops routed to a feed. All set fields must match.
type MatchConfig struct {
	Collections []string `json:"collections,omitempty" yaml:"collections,omitempty"`
	Regex       string   `json:"regex,omitempty" yaml:"regex,omitempty"`
	Repos       []string `json:"repos,omitempty" yaml:"repos,omitempty"`
	CEL         string   `json:"cel,omitempty" yaml:"cel,omitempty"`
}

// FeedParams carries the strategy tunables. Zero values take the strategy defaults.
type FeedParams struct {
	// decay, refcount, view, ratio
	Tau          Duration `json:"tau,omitempty" yaml:"tau,omitempty"`
	MinScore     float64  `json:"minScore,omitempty" yaml:"minScore,omitempty"`
	MinRetention Duration `json:"minRetention,omitempty" yaml:"minRetention,omitempty"`
	// Signals is any of like, repost, quote.
	Signals    []string `json:"signals,omitempty" yaml:"signals,omitempty"`
	TrackLangs bool     `json:"trackLangs,omitempty" yaml:"trackLangs,omitempty"`
	Staged     bool     `json:"staged,omitempty" yaml:"staged,omitempty"`

	// recency, pattern
	MaxRunes     int      `json:"maxRunes,omitempty" yaml:"maxRunes,omitempty"`
	RejectReply  bool     `json:"rejectReply,omitempty" yaml:"rejectReply,omitempty"`
	RejectEmbed  bool     `json:"rejectEmbed,omitempty" yaml:"rejectEmbed,omitempty"`
	RejectFacets bool     `json:"rejectFacets,omitempty" yaml:"rejectFacets,omitempty"`
	RequireTags  bool     `json:"requireTags,omitempty" yaml:"requireTags,omitempty"`
	Pattern      string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Window       Duration `json:"window,omitempty" yaml:"window,omitempty"`

	// ratio
	MinReplies float64  `json:"minReplies,omitempty" yaml:"minReplies,omitempty"`
	MinRatio   float64  `json:"minRatio,omitempty" yaml:"minRatio,omitempty"`
	MaxAge     Duration `json:"maxAge,omitempty" yaml:"maxAge,omitempty"`

	// tagindex; empty uses the MLB team table.
	Tags map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// delegate
	Target string  `json:"target,omitempty" yaml:"target,omitempty"`
	Host   string  `json:"host,omitempty" yaml:"host,omitempty"`
	RPS    float64 `json:"rps,omitempty" yaml:"rps,omitempty"`
	Burst  int     `json:"burst,omitempty" yaml:"burst,omitempty"`

	// Drift bounds how far in the past a record timestamp is trusted.
	Drift Duration `json:"drift,omitempty" yaml:"drift,omitempty"`
}

// Stored reports whether the feed keeps its own store.
func (f FeedConfig) Stored() bool {
	return f.Kind != KindView && f.Kind != KindDelegate
}

func (f FeedConfig) validate() error {
	if f.Name == "" {
		return fmt.Errorf("config: feed without name")
	}
	if strings.ContainsAny(f.Name, `/\`) {
		return fmt.Errorf("config: feed %q: name must not contain path separators", f.Name)
	}
	switch f.Kind {
	case KindDecay, KindRefcount, KindRecency, KindRatio, KindTagIndex:
	case KindView:
		if f.Source == "" {
			return fmt.Errorf("config: feed %q: view needs a source", f.Name)
		}
	case KindPattern:
		if f.Params.Pattern == "" {
			return fmt.Errorf("config: feed %q: pattern is required", f.Name)
		}
	case KindDelegate:
		if f.Params.Target == "" {
			return fmt.Errorf("config: feed %q: delegate target is required", f.Name)
		}
	default:
		return fmt.Errorf("config: feed %q: unknown kind %q", f.Name, f.Kind)
	}
	if f.URI == "" {
		return fmt.Errorf("config: feed %q: uri is required", f.Name)
	}
	for _, expr := range []string{f.Params.Pattern, f.Match.Regex} {
		if expr == "" {
			continue
		}
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("config: feed %q: %w", f.Name, err)
		}
	}
	for _, s := range f.Params.Signals {
		switch s {
		case "like", "repost", "quote":
		default:
			return fmt.Errorf("config: feed %q: unknown signal %q", f.Name, s)
		}
	}
	return nil
}

const (
	generatorDID = "did:plc:4nsduwlpivpuur4mqkbfvm6a"
	homerunsDID  = "did:plc:pnksqegntq5t3o7pusp2idx3"
)

// sdwPattern matches a post that is one swear word, optionally followed by
// punctuation and a trailing newline. Case folding is ASCII only.
var sdwPattern = `^(` + strings.Join(asciiFold(
	"shit", "piss", "fuck", "cunt", "cocksucker", "motherfucker", "tits",
), "|") + `)[!,./;?~ ]*\n?$`

// asciiFold spells each word as per-letter [xX] classes. (?i) would also
// fold non-ASCII runes such as U+017F onto 's'.
func asciiFold(words ...string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		var b strings.Builder
		for _, r := range w {
			lo, up := strings.ToLower(string(r)), strings.ToUpper(string(r))
			if lo == up {
				b.WriteString(regexp.QuoteMeta(string(r)))
				continue
			}
			b.WriteString("[" + lo + up + "]")
		}
		out[i] = b.String()
	}
	return out
}

func generatorURI(did, rkey string) string {
	return "at://" + did + "/app.bsky.feed.generator/" + rkey
}

// DefaultFeeds returns the production feed set.
func DefaultFeeds() []FeedConfig {
	hours := func(n int) Duration { return Duration(time.Duration(n) * time.Hour) }
	return []FeedConfig{
		{
			Name: "mostliked", Kind: KindDecay,
			URI:         generatorURI(generatorDID, "most-liked"),
			Match:       MatchConfig{Collections: []string{collPost, collLike}},
			Queued:      true,
			FilterLangs: true,
			Params: FeedParams{
				Tau: hours(6), MinScore: 1, MinRetention: hours(24),
				Signals: []string{"like"}, TrackLangs: true, Staged: true,
			},
		},
		{
			Name: "popular", Kind: KindView, Source: "mostliked",
			URI:         generatorURI(generatorDID, "popular"),
			FilterLangs: true,
			Params:      FeedParams{Tau: Duration(30 * time.Minute)},
		},
		{
			Name: "rapidfire", Kind: KindRecency,
			URI:         generatorURI(generatorDID, "rapidfire"),
			Match:       MatchConfig{Collections: []string{collPost}},
			FilterLangs: true,
			Params: FeedParams{
				MaxRunes: 140, RejectReply: true, RejectEmbed: true, RejectFacets: true,
				Window: Duration(15 * time.Minute),
			},
		},
		{
			Name: "sdw", Kind: KindPattern,
			URI:   generatorURI(generatorDID, "sdw"),
			Match: MatchConfig{Collections: []string{collPost}},
			Params: FeedParams{
				Pattern: sdwPattern,
			},
		},
		{
			Name: "popqp", Kind: KindRefcount,
			URI:   generatorURI(generatorDID, "popqp"),
			Match: MatchConfig{Collections: []string{collPost}},
			Params: FeedParams{
				Tau: hours(3), MinScore: 1, MinRetention: hours(24),
			},
		},
		{
			Name: "ratio", Kind: KindRatio,
			URI:   generatorURI(generatorDID, "ratio"),
			Match: MatchConfig{Collections: []string{collPost, collLike, collRepost}},
			Params: FeedParams{
				Tau: hours(16), MinReplies: 15, MinRatio: 2.5, MaxAge: hours(5 * 24),
			},
		},
		{
			Name: "outline", Kind: KindRecency,
			URI:    generatorURI(generatorDID, "outline"),
			Match:  MatchConfig{Collections: []string{collPost}},
			Params: FeedParams{RequireTags: true},
		},
		{
			Name: "homeruns", Kind: KindTagIndex,
			URI:   generatorURI(homerunsDID, "team:*"),
			Match: MatchConfig{Collections: []string{collPost}, Repos: []string{homerunsDID}},
		},
		{
			Name: "nz-interesting", Kind: KindDelegate,
			URI: generatorURI(generatorDID, "nz-interesting"),
			Params: FeedParams{
				Target: "at://did:plc:4qqizocrnriintskkh6trnzv/app.bsky.feed.post/3kv35hqi4a22b",
				RPS:    5, Burst: 10,
			},
		},
	}
}
