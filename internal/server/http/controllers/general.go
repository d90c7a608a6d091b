package controllers

import (
	"net/http"

	"github.com/rzbill/killfeed/internal/runtime"
)

// GeneralController handles service-level endpoints: health and record
// source statistics.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given mux.
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/stats", c.handleStats)
}

// handleHealth returns 200 {"status":"ok"} if storage and cursors are
// reachable, 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, healthResp{Status: "not_serving", Error: err.Error()})
		return
	}
	writeJSON(w, healthResp{Status: "ok"})
}

func (c *GeneralController) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	st, err := c.rt.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read stats")
		return
	}
	writeJSON(w, statsResp{
		Source:  st.Driver,
		Cursor:  c.rt.Config().Cursor.Driver,
		FirstID: st.FirstID,
		LastID:  st.LastID,
	})
}
