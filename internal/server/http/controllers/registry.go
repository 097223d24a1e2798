package controllers

import (
	"net/http"

	"github.com/rzbill/feedgen/internal/runtime"
	logpkg "github.com/rzbill/feedgen/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes.
type ControllerRegistry struct {
	general  *GeneralController
	feeds    *FeedsController
	identity *IdentityController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general:  NewGeneralController(rt),
		feeds:    NewFeedsController(rt, logger),
		identity: NewIdentityController(rt),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
//
// This sets up the XRPC feed endpoints, the did:web document, the debug
// view and the operational endpoints (health, feed list, checkpoint).
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.feeds.RegisterRoutes(mux)
	r.identity.RegisterRoutes(mux)
}
