package controllers

import (
	"net/http"

	"github.com/rzbill/killfeed/internal/delivery"
	"github.com/rzbill/killfeed/internal/runtime"
	logpkg "github.com/rzbill/killfeed/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	feeds   *FeedsController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, poller *delivery.Poller, observer delivery.Observer, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		feeds:   NewFeedsController(rt, poller, observer, logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.feeds.RegisterRoutes(mux)
}
