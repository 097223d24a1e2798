package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rzbill/feedgen/internal/feeds"
	"github.com/rzbill/feedgen/internal/runtime"
	logpkg "github.com/rzbill/feedgen/pkg/log"
)

const (
	skeletonPath = "/xrpc/app.bsky.feed.getFeedSkeleton"
	describePath = "/xrpc/app.bsky.feed.describeFeedGenerator"
	debugPath    = "/debug/feed"
)

// FeedsController serves feed skeletons and generator descriptions.
//
// Feed URIs are resolved through the runtime's route table, so a URI with
// the "-dev" suffix reaches the same feed as the bare URI and wildcard
// routes receive their trailing segment as a parameter.
type FeedsController struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// NewFeedsController creates a new feeds controller.
func NewFeedsController(rt *runtime.Runtime, logger logpkg.Logger) *FeedsController {
	return &FeedsController{rt: rt, logger: logger}
}

// RegisterRoutes registers feed routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Feed skeletons (/xrpc/app.bsky.feed.getFeedSkeleton)
// - Generator description (/xrpc/app.bsky.feed.describeFeedGenerator)
// - Ranking inspection (/debug/feed)
func (c *FeedsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(skeletonPath, c.handleSkeleton)
	mux.HandleFunc(describePath, c.handleDescribe)
	mux.HandleFunc(debugPath, c.handleDebug)
}

// request builds the ServeRequest shared by the skeleton and debug views.
// An invalid limit falls back to the default page size.
func (c *FeedsController) request(r *http.Request) (feeds.Feed, feeds.ServeRequest, error) {
	q := r.URL.Query()
	f, param, err := c.rt.Routes().Resolve(q.Get("feed"))
	if err != nil {
		return nil, feeds.ServeRequest{}, err
	}
	return f, feeds.ServeRequest{
		Limit:  parseLimit(q.Get("limit")),
		Cursor: q.Get("cursor"),
		Langs:  parseLangs(r.Header.Get("Accept-Language")),
		Param:  param,
	}, nil
}

// handleSkeleton returns one page of post URIs for the requested feed.
//
// Query parameters: feed (required), limit, cursor. A cursor the feed
// cannot interpret restarts from the top of the feed.
func (c *FeedsController) handleSkeleton(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if r.URL.Query().Get("feed") == "" {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "missing feed parameter")
		return
	}
	f, req, err := c.request(r)
	if err != nil {
		c.writeResolveError(w, err)
		return
	}
	page, err := f.Serve(r.Context(), req)
	if errors.Is(err, feeds.ErrBadCursor) {
		c.logger.Debug("ignoring malformed cursor", logpkg.Feed(f.Name()), logpkg.Str("cursor", req.Cursor))
		req.Cursor = ""
		page, err = f.Serve(r.Context(), req)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, feeds.ErrBadParam) {
			c.writeResolveError(w, err)
			return
		}
		c.logger.Warn("serve failed", logpkg.Feed(f.Name()), logpkg.Err(err))
		writeXRPCError(w, http.StatusInternalServerError, "InternalServerError", "feed unavailable")
		return
	}
	resp := skeletonResp{Cursor: page.Cursor, Feed: make([]skeletonItem, 0, len(page.URIs))}
	for _, uri := range page.URIs {
		resp.Feed = append(resp.Feed, skeletonItem{Post: uri})
	}
	writeJSON(w, resp)
}

// handleDescribe lists the concrete feed URIs this generator serves.
// Wildcard routes have no single URI and are left out.
func (c *FeedsController) handleDescribe(w http.ResponseWriter, r *http.Request) {
	resp := describeResp{DID: c.rt.Config().ServiceDID(), Feeds: []describeFeed{}}
	for _, p := range c.rt.Routes().Patterns() {
		if strings.HasSuffix(p, "*") {
			continue
		}
		resp.Feeds = append(resp.Feeds, describeFeed{URI: p})
	}
	writeJSON(w, resp)
}

// handleDebug shows the ranked page together with each item's scoring
// inputs. The feed may be given by URI or by configured name.
func (c *FeedsController) handleDebug(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("feed")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing feed parameter")
		return
	}
	var (
		f   feeds.Feed
		req feeds.ServeRequest
		err error
	)
	if named, ok := c.rt.Feed(target); ok {
		f = named
		req = feeds.ServeRequest{
			Limit:  parseLimit(q.Get("limit")),
			Cursor: q.Get("cursor"),
			Langs:  parseLangs(r.Header.Get("Accept-Language")),
			Param:  q.Get("param"),
		}
	} else if f, req, err = c.request(r); err != nil {
		c.writeResolveError(w, err)
		return
	}
	dbg, ok := f.(feeds.Debugger)
	if !ok {
		writeError(w, http.StatusNotImplemented, "feed has no local ranking")
		return
	}
	rows, err := dbg.Debug(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, feeds.ErrBadCursor) || errors.Is(err, feeds.ErrBadParam) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	resp := debugResp{Feed: f.Name(), Rows: make([]debugRowJSON, 0, len(rows))}
	if k, ok := f.(interface{ Kind() string }); ok {
		resp.Kind = k.Kind()
	}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, debugRowJSON{
			URI:       row.URI,
			Score:     row.Score,
			CreatedAt: row.CreatedAt.Format(time.RFC3339),
			AgeSec:    row.Age.Seconds(),
			Counters:  row.Counters,
			Langs:     row.Langs,
			Tags:      row.Tags,
		})
	}
	writeJSON(w, resp)
}

func (c *FeedsController) writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feeds.ErrUnknownFeed):
		writeXRPCError(w, http.StatusBadRequest, "UnknownFeed", err.Error())
	case errors.Is(err, feeds.ErrBadParam):
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	default:
		writeXRPCError(w, http.StatusInternalServerError, "InternalServerError", err.Error())
	}
}
