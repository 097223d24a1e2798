package controllers

import (
	"net/http"

	"github.com/rzbill/feedgen/internal/runtime"
)

// GeneralController handles operational HTTP endpoints: health, the feed
// list and the stream checkpoint.
//
// None of these are part of the feed generator protocol; they exist for
// operators and the CLI.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Health checks (/v1/healthz)
// - Feed listing with per-feed health (/v1/feeds)
// - The committed stream sequence (/v1/checkpoint)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/feeds", c.handleListFeeds)
	mux.HandleFunc("/v1/checkpoint", c.handleCheckpoint)
}

// handleHealth returns the health status of the service.
//
// Returns 200 OK with {"status": "ok"} if healthy, 503 Service Unavailable otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleListFeeds lists the configured feeds in definition order.
func (c *GeneralController) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	health := c.rt.FeedHealth(r.Context())
	cfg := c.rt.Config()
	out := make([]feedInfoJSON, 0, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		info := feedInfoJSON{Name: fc.Name, Kind: fc.Kind, URI: fc.URI, Healthy: true}
		if err := health[fc.Name]; err != nil {
			info.Healthy = false
			info.Error = err.Error()
		}
		out = append(out, info)
	}
	writeJSON(w, map[string]any{"feeds": out})
}

// handleCheckpoint returns the last committed stream sequence.
func (c *GeneralController) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	seq, ok, err := c.rt.Checkpoint().Sequence()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read checkpoint")
		return
	}
	writeJSON(w, checkpointResp{Seq: seq, Present: ok})
}
