package controllers

import (
	"net/http"

	"github.com/rzbill/feedgen/internal/runtime"
)

// IdentityController serves the did:web document for the generator host.
type IdentityController struct {
	rt *runtime.Runtime
}

// NewIdentityController creates a new identity controller.
func NewIdentityController(rt *runtime.Runtime) *IdentityController {
	return &IdentityController{rt: rt}
}

// RegisterRoutes registers /.well-known/did.json.
func (c *IdentityController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/.well-known/did.json", c.handleDIDDocument)
}

// handleDIDDocument advertises this host as a BskyFeedGenerator service.
// It is only meaningful when the service DID is the did:web of Hostname.
func (c *IdentityController) handleDIDDocument(w http.ResponseWriter, r *http.Request) {
	sc := c.rt.Config().Server
	did := "did:web:" + sc.Hostname
	if c.rt.Config().ServiceDID() != did {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, didDocument{
		Context: []string{"https://www.w3.org/ns/did/v1"},
		ID:      did,
		Service: []didService{{
			ID:              "#bsky_fg",
			Type:            "BskyFeedGenerator",
			ServiceEndpoint: "https://" + sc.Hostname,
		}},
	})
}
