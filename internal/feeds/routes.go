package feeds

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAmbiguousRoute is returned when two route patterns can match the same URI.
var ErrAmbiguousRoute = errors.New("feeds: ambiguous route")

// DevSuffix marks development copies of a feed URI; it maps to the base feed.
const DevSuffix = "-dev"

// Route binds a feed URI pattern to a feed. A pattern ending in "*" matches
// any non-empty suffix, which is passed to the feed as ServeRequest.Param.
type Route struct {
	Pattern string
	Feed    Feed
}

type route struct {
	pattern  string
	prefix   string
	wildcard bool
	feed     Feed
}

// RouteTable resolves feed URIs. It is immutable after construction.
type RouteTable struct {
	routes []route
}

// NewRouteTable validates routes in order. Overlapping patterns are rejected.
func NewRouteTable(routes ...Route) (*RouteTable, error) {
	t := &RouteTable{routes: make([]route, 0, len(routes))}
	for _, r := range routes {
		if r.Feed == nil {
			return nil, fmt.Errorf("feeds: route %q has no feed", r.Pattern)
		}
		if r.Pattern == "" || r.Pattern == "*" {
			return nil, fmt.Errorf("feeds: invalid route pattern %q", r.Pattern)
		}
		nr := route{pattern: r.Pattern, prefix: r.Pattern, feed: r.Feed}
		if strings.HasSuffix(r.Pattern, "*") {
			nr.wildcard = true
			nr.prefix = strings.TrimSuffix(r.Pattern, "*")
		}
		if strings.Contains(nr.prefix, "*") {
			return nil, fmt.Errorf("feeds: route %q: wildcard only allowed at the end", r.Pattern)
		}
		for _, prev := range t.routes {
			if overlaps(prev, nr) {
				return nil, fmt.Errorf("%w: %q and %q", ErrAmbiguousRoute, prev.pattern, nr.pattern)
			}
		}
		t.routes = append(t.routes, nr)
	}
	return t, nil
}

func overlaps(a, b route) bool {
	switch {
	case !a.wildcard && !b.wildcard:
		return a.prefix == b.prefix
	case a.wildcard && b.wildcard:
		return strings.HasPrefix(a.prefix, b.prefix) || strings.HasPrefix(b.prefix, a.prefix)
	case a.wildcard:
		return strings.HasPrefix(b.prefix, a.prefix)
	default:
		return strings.HasPrefix(a.prefix, b.prefix)
	}
}

// Resolve returns the feed serving uri and the wildcard parameter, if any.
func (t *RouteTable) Resolve(uri string) (Feed, string, error) {
	uri = strings.TrimSuffix(uri, DevSuffix)
	for _, r := range t.routes {
		if !r.wildcard {
			if uri == r.prefix {
				return r.feed, "", nil
			}
			continue
		}
		if strings.HasPrefix(uri, r.prefix) && len(uri) > len(r.prefix) {
			return r.feed, uri[len(r.prefix):], nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrUnknownFeed, uri)
}

// Patterns lists route patterns in table order.
func (t *RouteTable) Patterns() []string {
	out := make([]string, len(t.routes))
	for i, r := range t.routes {
		out[i] = r.pattern
	}
	return out
}
