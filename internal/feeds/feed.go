package feeds

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rzbill/feedgen/internal/firehose"
)

var (
	// ErrUnknownFeed is returned when no feed serves a requested URI.
	ErrUnknownFeed = errors.New("feeds: unknown feed")
	// ErrBadCursor is returned for cursors a feed cannot interpret.
	ErrBadCursor = errors.New("feeds: malformed cursor")
	// ErrBadParam is returned when a wildcard route parameter does not resolve.
	ErrBadParam = errors.New("feeds: unknown route parameter")
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// ServeRequest is one page query against a feed.
type ServeRequest struct {
	Limit  int
	Offset int
	// Cursor is the opaque continuation token from a previous Page. Local
	// feeds encode an offset in it.
	Cursor string
	// Langs filters by language tag. Nil matches every item.
	Langs []string
	// Param is the wildcard segment of the feed URI, if the route has one.
	Param string
}

// Normalize clamps the limit and folds a numeric cursor into Offset.
func (r ServeRequest) Normalize() (ServeRequest, error) {
	if r.Limit <= 0 {
		r.Limit = DefaultLimit
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	if r.Cursor != "" {
		n, err := strconv.Atoi(r.Cursor)
		if err != nil || n < 0 {
			return r, fmt.Errorf("%w: %q", ErrBadCursor, r.Cursor)
		}
		r.Offset = n
	}
	return r, nil
}

// Page is a served slice of a feed.
type Page struct {
	URIs []string
	// Cursor continues after this page; empty when the feed is exhausted.
	Cursor string
}

// Feed is the contract every feed variant satisfies.
type Feed interface {
	Name() string
	// Ingest applies one routed create op.
	Ingest(ctx context.Context, c firehose.Commit, op firehose.RepoOp) error
	// Serve reads committed state only.
	Serve(ctx context.Context, req ServeRequest) (Page, error)
	// CommitChanges evicts, commits pending writes and checkpoints the store.
	CommitChanges(ctx context.Context) error
	// Evict runs the retention sweep and commits; it reports removed items.
	Evict(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// DebugRow is one ranked item with its scoring inputs.
type DebugRow struct {
	URI       string
	Score     float64
	CreatedAt time.Time
	Age       time.Duration
	Counters  []float64
	Langs     []string
	Tags      []string
}

// Debugger is implemented by feeds that can explain their ranking.
type Debugger interface {
	Debug(ctx context.Context, req ServeRequest) ([]DebugRow, error)
}

// HealthChecker is implemented by feeds backed by a local store.
type HealthChecker interface {
	CheckHealth() error
}

// Clock returns the current instant. Feeds read time only through it.
type Clock func() time.Time

// Now reads the clock in UTC; a nil Clock is the wall clock.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
