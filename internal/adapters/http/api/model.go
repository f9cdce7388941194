package api

import (
	"net/http"

	"github.com/okian/drybean/internal/domain/schema"
)

// ModelHandler describes the served model and its input contract.
type ModelHandler struct {
	deps Dependencies
}

// NewModelHandler creates a new model info handler.
func NewModelHandler(deps Dependencies) *ModelHandler {
	return &ModelHandler{deps: deps}
}

type featureInfo struct {
	schema.Feature
	Default float64 `json:"default"`
	Step    string  `json:"step"`
}

type modelResponse struct {
	Variant    string        `json:"variant"`
	Loaded     bool          `json:"loaded"`
	ModelPath  string        `json:"model_path"`
	ScalerPath string        `json:"scaler_path,omitempty"`
	Features   []featureInfo `json:"features"`
	Labels     []string      `json:"labels"`
}

// HandleModel handles GET /model requests.
func (h *ModelHandler) HandleModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	resp := modelResponse{
		Variant:  "raw",
		Loaded:   h.deps.Ready() == nil,
		Features: make([]featureInfo, 0, len(schema.Features)),
		Labels:   schema.Labels,
	}
	if a := h.deps.Artifacts(); a != nil {
		if a.Scaling {
			resp.Variant = "scaled"
		}
		resp.ModelPath = a.ModelPath
		resp.ScalerPath = a.ScalerPath
	}
	for _, f := range schema.Features {
		resp.Features = append(resp.Features, featureInfo{Feature: f, Default: f.Default(), Step: f.Step()})
	}
	writeJSON(w, http.StatusOK, resp)
}
