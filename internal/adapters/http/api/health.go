package api

import (
	"net/http"

	"github.com/okian/drybean/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	deps Dependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Scaling     bool   `json:"scaling"`
	LoadError   string `json:"load_error"`
}

// HandleHealth handles GET /healthz requests. The process is alive even when the
// artifacts failed to load, so the status code is always 200 and the body says
// "degraded".
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	resp := healthResponse{Status: "ok", ModelLoaded: true}
	if a := h.deps.Artifacts(); a != nil {
		resp.Scaling = a.Scaling
		resp.LoadError = a.LoadError
	}
	if err := h.deps.Ready(); err != nil {
		resp.Status = "degraded"
		resp.ModelLoaded = false
	}
	writeJSON(w, http.StatusOK, resp)
}

// MetricsHandler serves the service's Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
