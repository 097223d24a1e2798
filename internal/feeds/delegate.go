package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/rzbill/feedgen/internal/firehose"
	logpkg "github.com/rzbill/feedgen/pkg/log"
	"golang.org/x/time/rate"
)

// DefaultAppView is the public, unauthenticated AppView endpoint.
const DefaultAppView = "https://public.api.bsky.app"

// DelegateOptions configures a feed served by the AppView's quote listing.
type DelegateOptions struct {
	Name string
	// Host is the AppView base URL.
	Host string
	// Target is the post whose quotes make up the feed.
	Target string
	// RPS and Burst limit outbound calls. Zero RPS disables limiting.
	RPS        float64
	Burst      int
	HTTPClient *http.Client
	Logger     logpkg.Logger
}

// Delegate keeps no state; every page is fetched from the AppView.
type Delegate struct {
	name    string
	target  string
	client  *xrpc.Client
	limiter *rate.Limiter
	logger  logpkg.Logger
}

var _ Feed = (*Delegate)(nil)

// NewDelegate builds a delegate feed.
func NewDelegate(opts DelegateOptions) (*Delegate, error) {
	if opts.Name == "" {
		return nil, errors.New("feeds: name is required")
	}
	if opts.Target == "" {
		return nil, fmt.Errorf("feeds %s: delegate target is required", opts.Name)
	}
	if opts.Host == "" {
		opts.Host = DefaultAppView
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	return &Delegate{
		name:    opts.Name,
		target:  opts.Target,
		client:  &xrpc.Client{Client: hc, Host: opts.Host},
		limiter: lim,
		logger:  logger.With(logpkg.Component("feeds"), logpkg.Feed(opts.Name)),
	}, nil
}

func (d *Delegate) Name() string { return d.name }

// Kind reports the strategy kind.
func (d *Delegate) Kind() string { return "delegate" }

func (d *Delegate) Ingest(context.Context, firehose.Commit, firehose.RepoOp) error { return nil }

// Serve forwards the limit and cursor unchanged; offsets are not supported.
func (d *Delegate) Serve(ctx context.Context, req ServeRequest) (Page, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return Page{}, err
	}
	out, err := appbsky.FeedGetQuotes(ctx, d.client, "", req.Cursor, int64(limit), d.target)
	if err != nil {
		d.logger.Warn("getQuotes failed", logpkg.Err(err))
		return Page{}, fmt.Errorf("feeds %s: getQuotes: %w", d.name, err)
	}
	page := Page{URIs: make([]string, 0, len(out.Posts))}
	seen := make(map[string]struct{}, len(out.Posts))
	for _, p := range out.Posts {
		if p == nil || p.Uri == "" {
			continue
		}
		if _, dup := seen[p.Uri]; dup {
			continue
		}
		seen[p.Uri] = struct{}{}
		page.URIs = append(page.URIs, p.Uri)
	}
	if out.Cursor != nil {
		page.Cursor = *out.Cursor
	}
	return page, nil
}

func (d *Delegate) CommitChanges(context.Context) error { return nil }

func (d *Delegate) Evict(context.Context) (int, error) { return 0, nil }

func (d *Delegate) Close(context.Context) error {
	d.client.Client.CloseIdleConnections()
	return nil
}
