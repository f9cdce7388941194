package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/drybean/internal/adapters/http/api"
	service "github.com/okian/drybean/internal/app"
	"github.com/okian/drybean/internal/domain/classifier"
	"github.com/okian/drybean/internal/domain/schema"
	"github.com/okian/drybean/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type stubModel struct {
	index int
	proba []float64
	calls int
}

func (m *stubModel) Predict(context.Context, []float64) (int, error) {
	m.calls++
	return m.index, nil
}

func (m *stubModel) PredictProba(context.Context, []float64) ([]float64, error) {
	return m.proba, nil
}

type identityScaler struct{}

func (identityScaler) Transform(_ context.Context, v []float64) ([]float64, error) { return v, nil }

func newServer(artifacts *classifier.Artifacts, opts ...api.Option) http.Handler {
	svc := service.New(service.WithLogger(logger.Nop()), service.WithArtifacts(artifacts))
	mux := http.NewServeMux()
	opts = append([]api.Option{api.WithLogger(logger.Nop())}, opts...)
	api.NewServer(svc, opts...).Register(context.Background(), mux)
	return api.RequestIDMiddleware(mux)
}

func loaded(model *stubModel) *classifier.Artifacts {
	return &classifier.Artifacts{
		Model: model, Scaler: identityScaler{}, Scaling: true,
		ModelPath: "dry_bean_rf_s.onnx", ScalerPath: "scaler.json",
	}
}

func validBody() string {
	body := make(map[string]any, schema.NumFeatures)
	for _, f := range schema.Features {
		body[f.Name] = f.Default()
	}
	b, _ := json.Marshal(body)
	return string(b)
}

func post(h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr, out
}

func TestPredictEndpoint(t *testing.T) {
	Convey("Given a server with loaded artifacts", t, func() {
		model := &stubModel{index: 5, proba: []float64{0, 0, 0.1, 0.1, 0, 0.8, 0}}
		h := newServer(loaded(model))

		Convey("When a complete request is posted", func() {
			rr, out := post(h, validBody())

			Convey("Then the prediction is returned", func() {
				So(rr.Code, ShouldEqual, http.StatusOK)
				So(rr.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				So(out["success"], ShouldEqual, true)
				So(out["prediction"], ShouldEqual, "Seker")
				probs, ok := out["probabilities"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(probs, ShouldHaveLength, schema.NumClasses)
				So(probs["Seker"], ShouldEqual, 0.8)
				So(rr.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			})
		})

		Convey("When the body is empty", func() {
			rr, out := post(h, "")

			Convey("Then it is a bad request", func() {
				So(rr.Code, ShouldEqual, http.StatusBadRequest)
				So(out["success"], ShouldEqual, false)
				So(out["error"], ShouldEqual, "Invalid request: No JSON data received.")
			})
		})

		Convey("When a feature is missing", func() {
			rr, out := post(h, `{"Area": 1000}`)

			Convey("Then the first missing feature is named", func() {
				So(rr.Code, ShouldEqual, http.StatusBadRequest)
				So(out["error"], ShouldEqual, "Feature 'Perimeter' is missing from the request.")
				So(model.calls, ShouldEqual, 0)
			})
		})

		Convey("When a feature is not numeric", func() {
			body := strings.Replace(validBody(), `"Area":135000`, `"Area":true`, 1)
			rr, out := post(h, body)

			Convey("Then it is rejected", func() {
				So(rr.Code, ShouldEqual, http.StatusBadRequest)
				So(out["error"], ShouldEqual, "Invalid input for 'Area'. A numeric value is required.")
			})
		})

		Convey("When the method is GET", func() {
			req := httptest.NewRequest(http.MethodGet, "/predict", nil)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			Convey("Then it is not allowed", func() {
				So(rr.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(rr.Header().Get("Allow"), ShouldEqual, http.MethodPost)
				So(rr.Body.String(), ShouldContainSubstring, `"success":false`)
			})
		})

		Convey("When a caller supplies a request id", func() {
			req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(validBody()))
			req.Header.Set(api.RequestIDHeader, "abc-123")
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			Convey("Then it is echoed", func() {
				So(rr.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
			})
		})
	})

	Convey("Given a model returning an invalid index", t, func() {
		h := newServer(loaded(&stubModel{index: 9, proba: make([]float64, 7)}))
		rr, out := post(h, validBody())

		Convey("Then it is a server error naming the index", func() {
			So(rr.Code, ShouldEqual, http.StatusInternalServerError)
			So(out["error"], ShouldEqual, "Model returned an invalid class index: 9.")
		})
	})

	Convey("Given a model returning the wrong number of probabilities", t, func() {
		h := newServer(loaded(&stubModel{index: 1, proba: []float64{1}}))
		rr, out := post(h, validBody())

		Convey("Then the generic message is returned", func() {
			So(rr.Code, ShouldEqual, http.StatusInternalServerError)
			So(out["error"], ShouldEqual, "An unexpected error occurred during prediction.")
		})
	})

	Convey("Given a model returning a NaN probability", t, func() {
		h := newServer(loaded(&stubModel{index: 0, proba: []float64{math.NaN(), 0, 0, 0, 0, 0, 0}}))
		rr, out := post(h, validBody())

		Convey("Then the failure shape is returned instead of an empty success", func() {
			So(rr.Code, ShouldEqual, http.StatusInternalServerError)
			So(out["success"], ShouldEqual, false)
			So(out["error"], ShouldEqual, "An unexpected error occurred during prediction.")
		})
	})

	Convey("Given a server whose scaler failed to load", t, func() {
		h := newServer(&classifier.Artifacts{
			Model: &stubModel{}, Scaling: true, LoadError: "File scaler 'scaler.json' not found.",
		})

		Convey("When an invalid body is posted", func() {
			rr, out := post(h, "garbage")

			Convey("Then the not-loaded error wins", func() {
				So(rr.Code, ShouldEqual, http.StatusInternalServerError)
				So(out["error"], ShouldEqual, "Model or Scaler is not loaded. File scaler 'scaler.json' not found.")
			})
		})
	})

	Convey("Given a small body cap", t, func() {
		h := newServer(loaded(&stubModel{index: 0, proba: make([]float64, 7)}), api.WithMaxBodyBytes(16))
		rr, out := post(h, validBody())

		Convey("Then an oversized body is a bad request", func() {
			So(rr.Code, ShouldEqual, http.StatusBadRequest)
			So(out["error"], ShouldEqual, "Invalid request: No JSON data received.")
		})
	})

	Convey("Given CORS is enabled", t, func() {
		h := newServer(loaded(&stubModel{proba: make([]float64, 7)}), api.WithCORSOrigin("*"))
		req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		Convey("Then the preflight succeeds", func() {
			So(rr.Code, ShouldEqual, http.StatusOK)
			So(rr.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})
	})
}

func TestHealthAndModelEndpoints(t *testing.T) {
	Convey("Given a loaded server", t, func() {
		h := newServer(loaded(&stubModel{}))

		Convey("When probing /healthz", func() {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			var out map[string]any
			So(json.Unmarshal(rr.Body.Bytes(), &out), ShouldBeNil)

			Convey("Then it is ok", func() {
				So(rr.Code, ShouldEqual, http.StatusOK)
				So(out["status"], ShouldEqual, "ok")
				So(out["model_loaded"], ShouldEqual, true)
				So(out["scaling"], ShouldEqual, true)
			})
		})

		Convey("When requesting /model", func() {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/model", nil))
			var out struct {
				Variant  string `json:"variant"`
				Loaded   bool   `json:"loaded"`
				Features []struct {
					Name    string  `json:"name"`
					Default float64 `json:"default"`
					Step    string  `json:"step"`
				} `json:"features"`
				Labels []string `json:"labels"`
			}
			So(json.Unmarshal(rr.Body.Bytes(), &out), ShouldBeNil)

			Convey("Then the contract is described", func() {
				So(out.Variant, ShouldEqual, "scaled")
				So(out.Loaded, ShouldBeTrue)
				So(out.Features, ShouldHaveLength, schema.NumFeatures)
				So(out.Features[0].Name, ShouldEqual, "Area")
				So(out.Features[0].Default, ShouldEqual, 135000)
				So(out.Features[0].Step, ShouldEqual, "1")
				So(out.Labels, ShouldResemble, schema.Labels)
			})
		})

		Convey("When scraping /metrics", func() {
			_, _ = post(h, validBody())
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then service metrics are exposed", func() {
				So(rr.Code, ShouldEqual, http.StatusOK)
				So(rr.Body.String(), ShouldContainSubstring, "drybean_classifier_http_requests_total")
			})
		})
	})

	Convey("Given a server without a model", t, func() {
		h := newServer(&classifier.Artifacts{LoadError: "File model 'm.onnx' not found."})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var out map[string]any
		So(json.Unmarshal(rr.Body.Bytes(), &out), ShouldBeNil)

		Convey("Then it reports degraded with the load error", func() {
			So(rr.Code, ShouldEqual, http.StatusOK)
			So(out["status"], ShouldEqual, "degraded")
			So(out["model_loaded"], ShouldEqual, false)
			So(out["load_error"], ShouldEqual, "File model 'm.onnx' not found.")
		})
	})
}

func TestWrapKind(t *testing.T) {
	Convey("Given an operation error", t, func() {
		cause := errors.New("unexpected EOF")
		err := api.WrapKind("api.predict", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause match", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.predict: bad request: unexpected EOF")
		})

		Convey("And a nil cause yields the bare kind", func() {
			So(api.WrapKind("op", api.ErrBadRequest, nil).Error(), ShouldEqual, "op: bad request")
		})
	})
}
