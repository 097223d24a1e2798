package feedstore

import (
	"time"
)

// Item is one scored entry of a feed, keyed by URI.
type Item struct {
	URI       string
	CreatedAt time.Time
	UpdatedAt time.Time
	// Counters holds feed-specific weights; meaning is defined by the feed.
	Counters []float64
	Langs    []string
	Tags     []string
}

// Counter returns counter i or 0 when the item has fewer counters.
func (it Item) Counter(i int) float64 {
	if i < 0 || i >= len(it.Counters) {
		return 0
	}
	return it.Counters[i]
}

// Age is the time elapsed since creation.
func (it Item) Age(now time.Time) time.Duration {
	return now.Sub(it.CreatedAt)
}

// MatchesLangs reports whether the item carries at least one of langs.
// A nil filter matches everything.
func (it Item) MatchesLangs(langs []string) bool {
	if langs == nil {
		return true
	}
	for _, want := range langs {
		for _, have := range it.Langs {
			if have == want {
				return true
			}
		}
	}
	return false
}

func union(dst []string, add []string) []string {
	for _, s := range add {
		if s == "" || contains(dst, s) {
			continue
		}
		dst = append(dst, s)
	}
	return dst
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
