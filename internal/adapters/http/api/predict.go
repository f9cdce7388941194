package api

import (
	"io"
	"net/http"

	"github.com/okian/drybean/pkg/logger"
	"github.com/okian/drybean/pkg/metrics"
)

// PredictHandler handles prediction requests.
type PredictHandler struct {
	deps         Dependencies
	maxBodyBytes int64
	logger       logger.Logger
}

// NewPredictHandler creates a new prediction handler.
func NewPredictHandler(deps Dependencies, maxBodyBytes int64, l logger.Logger) *PredictHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	if l == nil {
		l = logger.Get()
	}
	return &PredictHandler{deps: deps, maxBodyBytes: maxBodyBytes, logger: l}
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	ctx := r.Context()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		err := NewKind(op, ErrMethodNotAllowed)
		writeError(w, statusFor(err), clientMessage(err))
		return
	}

	// Not-loaded takes precedence over anything wrong with the body.
	if err := h.deps.Ready(); err != nil {
		metrics.RecordPredictionError("not_loaded")
		writeError(w, statusFor(err), clientMessage(err))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		err = WrapKind(op, ErrBadRequest, err)
		h.logger.Debug(ctx, "unreadable prediction body", logger.Error(err))
		metrics.RecordPredictionError("bad_request")
		writeError(w, statusFor(err), clientMessage(err))
		return
	}

	p, err := h.deps.Predict(ctx, body)
	if err != nil {
		writeError(w, statusFor(err), clientMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, predictionResponse{
		Success:       true,
		Prediction:    p.Label,
		Probabilities: p.Probabilities,
	})
}
