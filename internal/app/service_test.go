package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	service "github.com/okian/drybean/internal/app"
	"github.com/okian/drybean/internal/domain/classifier"
	"github.com/okian/drybean/internal/domain/schema"
	"github.com/okian/drybean/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeScaler struct {
	calls *[]string
	seen  []float64
	err   error
}

func (f *fakeScaler) Transform(_ context.Context, v []float64) ([]float64, error) {
	*f.calls = append(*f.calls, "transform")
	f.seen = append([]float64(nil), v...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * 10
	}
	return out, nil
}

type fakeModel struct {
	calls     *[]string
	index     int
	proba     []float64
	seen      []float64
	seenProba []float64
	err       error
	panicWith any
}

func (f *fakeModel) Predict(_ context.Context, v []float64) (int, error) {
	*f.calls = append(*f.calls, "predict")
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.seen = append([]float64(nil), v...)
	return f.index, f.err
}

func (f *fakeModel) PredictProba(_ context.Context, v []float64) ([]float64, error) {
	*f.calls = append(*f.calls, "predict_proba")
	f.seenProba = append([]float64(nil), v...)
	return f.proba, nil
}

// singleRunModel also implements the one-call evaluator.
type singleRunModel struct {
	fakeModel
}

func (f *singleRunModel) Classify(_ context.Context, v []float64) (int, []float64, error) {
	*f.calls = append(*f.calls, "classify")
	f.seen = append([]float64(nil), v...)
	return f.index, f.proba, nil
}

func scaledDefaults() []float64 {
	out := orderedDefaults()
	for i := range out {
		out[i] *= 10
	}
	return out
}

var uniform = []float64{0.1, 0.05, 0.15, 0.4, 0.1, 0.1, 0.1}

func defaultsBody() map[string]any {
	body := make(map[string]any, schema.NumFeatures)
	for _, f := range schema.Features {
		body[f.Name] = f.Default()
	}
	return body
}

func orderedDefaults() []float64 {
	out := make([]float64, 0, schema.NumFeatures)
	for _, f := range schema.Features {
		out = append(out, f.Default())
	}
	return out
}

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func newScaled(calls *[]string) (*service.Service, *fakeModel, *fakeScaler) {
	model := &fakeModel{calls: calls, index: 3, proba: uniform}
	scaler := &fakeScaler{calls: calls}
	svc := service.New(
		service.WithLogger(logger.Nop()),
		service.WithArtifacts(&classifier.Artifacts{Model: model, Scaler: scaler, Scaling: true}),
	)
	return svc, model, scaler
}

func TestPredictSuccess(t *testing.T) {
	Convey("Given a scaled service with both artifacts", t, func() {
		var calls []string
		svc, model, scaler := newScaled(&calls)

		Convey("When all sixteen features are sent", func() {
			p, err := svc.Predict(context.Background(), encode(defaultsBody()))

			Convey("Then the label and every probability are returned", func() {
				So(err, ShouldBeNil)
				So(p.Label, ShouldEqual, "Dermason")
				So(p.Probabilities, ShouldHaveLength, schema.NumClasses)
				sum := 0.0
				for _, name := range schema.Labels {
					v, ok := p.Probabilities[name]
					So(ok, ShouldBeTrue)
					sum += v
				}
				So(math.Abs(sum-1), ShouldBeLessThan, 1e-9)
			})

			Convey("And the scaler runs before the model on the ordered vector", func() {
				So(calls, ShouldResemble, []string{"transform", "predict", "predict_proba"})
				So(scaler.seen, ShouldResemble, orderedDefaults())
				So(model.seen, ShouldResemble, scaledDefaults())
				So(model.seenProba, ShouldResemble, scaledDefaults())
			})
		})

		Convey("When features arrive as numeric strings with padding", func() {
			body := defaultsBody()
			body["Area"] = " 135000 "
			body["Eccentricity"] = "0.595"
			_, err := svc.Predict(context.Background(), encode(body))

			Convey("Then they are accepted", func() {
				So(err, ShouldBeNil)
				So(scaler.seen[0], ShouldEqual, 135000)
				So(scaler.seen[5], ShouldEqual, 0.595)
			})
		})

		Convey("When extra keys are present", func() {
			body := defaultsBody()
			body["Color"] = "white"
			_, err := svc.Predict(context.Background(), encode(body))

			Convey("Then they are ignored", func() {
				So(err, ShouldBeNil)
			})
		})
	})

	Convey("Given a raw service", t, func() {
		var calls []string
		model := &fakeModel{calls: &calls, index: 0, proba: uniform}
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithArtifacts(&classifier.Artifacts{Model: model}),
		)

		Convey("When predicting", func() {
			p, err := svc.Predict(context.Background(), encode(defaultsBody()))

			Convey("Then the model sees the unscaled vector", func() {
				So(err, ShouldBeNil)
				So(p.Label, ShouldEqual, "Barbunya")
				So(calls, ShouldResemble, []string{"predict", "predict_proba"})
				So(model.seen, ShouldResemble, orderedDefaults())
				So(svc.Scaling(), ShouldBeFalse)
			})
		})
	})
}

func TestPredictNotLoaded(t *testing.T) {
	Convey("Given a scaled service without a scaler", t, func() {
		var calls []string
		model := &fakeModel{calls: &calls, proba: uniform}
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithArtifacts(&classifier.Artifacts{
				Model: model, Scaling: true, LoadError: "File scaler 'scaler.json' not found.",
			}),
		)

		Convey("When any body is sent, even an invalid one", func() {
			_, err := svc.Predict(context.Background(), []byte("not json"))

			Convey("Then the not-loaded error wins", func() {
				So(errors.Is(err, service.ErrModelNotLoaded), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "Model or Scaler is not loaded. File scaler 'scaler.json' not found.")
				So(calls, ShouldBeEmpty)
				So(service.IsClientError(err), ShouldBeFalse)
			})
		})
	})

	Convey("Given a service without artifacts", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("Then Ready fails", func() {
			So(errors.Is(svc.Ready(), service.ErrModelNotLoaded), ShouldBeTrue)
		})
	})
}

func TestPredictBadBodies(t *testing.T) {
	Convey("Given a ready service", t, func() {
		var calls []string
		svc, _, _ := newScaled(&calls)

		for _, body := range []string{"", "   ", "{}", "[]", "[1,2]", "42", `"text"`, "null", "{", `{"Area":1} {}`} {
			_, err := svc.Predict(context.Background(), []byte(body))
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "Invalid request: No JSON data received.")
			So(service.IsClientError(err), ShouldBeTrue)
		}
		So(calls, ShouldBeEmpty)
	})
}

func TestPredictMissingFeature(t *testing.T) {
	Convey("Given a ready service", t, func() {
		var calls []string
		svc, _, _ := newScaled(&calls)

		Convey("When a feature is absent", func() {
			body := defaultsBody()
			delete(body, "Solidity")
			_, err := svc.Predict(context.Background(), encode(body))

			Convey("Then it is named in the error", func() {
				So(errors.Is(err, service.ErrMissingFeature), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "Feature 'Solidity' is missing from the request.")
				So(calls, ShouldBeEmpty)
			})
		})

		Convey("When a feature is an empty string", func() {
			body := defaultsBody()
			body["Extent"] = ""
			_, err := svc.Predict(context.Background(), encode(body))

			Convey("Then it counts as missing", func() {
				So(err.Error(), ShouldEqual, "Feature 'Extent' is missing from the request.")
			})
		})

		Convey("When several features are bad", func() {
			body := defaultsBody()
			delete(body, "ShapeFactor4")
			body["Perimeter"] = "abc"
			delete(body, "roundness")
			_, err := svc.Predict(context.Background(), encode(body))

			Convey("Then only the first in schema order is reported", func() {
				So(err.Error(), ShouldEqual, "Invalid input for 'Perimeter'. A numeric value is required.")
			})
		})

		Convey("When feature names differ in case", func() {
			body := defaultsBody()
			delete(body, "roundness")
			body["Roundness"] = 0.7
			_, err := svc.Predict(context.Background(), encode(body))

			Convey("Then the exact name is still missing", func() {
				So(err.Error(), ShouldEqual, "Feature 'roundness' is missing from the request.")
			})
		})
	})
}

func TestPredictInvalidFeature(t *testing.T) {
	Convey("Given a ready service", t, func() {
		var calls []string
		svc, _, _ := newScaled(&calls)

		for _, v := range []any{"abc", true, false, nil, map[string]any{"v": 1}, []any{1}, "   ", "1e400", "-1e400",
			"NaN", "nan", "Infinity", "-inf", "+Inf", "0x1p-2", "-0X10", " 0x1A "} {
			body := defaultsBody()
			body["ConvexArea"] = v
			_, err := svc.Predict(context.Background(), encode(body))
			So(errors.Is(err, service.ErrInvalidFeature), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "Invalid input for 'ConvexArea'. A numeric value is required.")
		}
		So(calls, ShouldBeEmpty)
	})
}

func TestPredictSingleRun(t *testing.T) {
	Convey("Given a model that classifies in one run", t, func() {
		var calls []string
		model := &singleRunModel{fakeModel{calls: &calls, index: 2, proba: uniform}}
		svc := service.New(
			service.WithLogger(logger.Nop()),
			service.WithArtifacts(&classifier.Artifacts{Model: model, Scaler: &fakeScaler{calls: &calls}, Scaling: true}),
		)

		p, err := svc.Predict(context.Background(), encode(defaultsBody()))

		Convey("Then the model is run once on the scaled vector", func() {
			So(err, ShouldBeNil)
			So(p.Label, ShouldEqual, "Cali")
			So(calls, ShouldResemble, []string{"transform", "classify"})
			So(model.seen, ShouldResemble, scaledDefaults())
		})
	})
}

func TestPredictModelFailures(t *testing.T) {
	Convey("Given a model returning an out of range index", t, func() {
		var calls []string
		svc, model, _ := newScaled(&calls)
		model.index = 7

		_, err := svc.Predict(context.Background(), encode(defaultsBody()))

		Convey("Then the index is reported", func() {
			So(errors.Is(err, service.ErrInvalidClassIndex), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "Model returned an invalid class index: 7.")
		})

		Convey("And a negative index is reported too", func() {
			model.index = -1
			_, err := svc.Predict(context.Background(), encode(defaultsBody()))
			So(err.Error(), ShouldEqual, "Model returned an invalid class index: -1.")
		})
	})

	Convey("Given a model returning too few probabilities", t, func() {
		var calls []string
		svc, model, _ := newScaled(&calls)
		model.proba = []float64{0.5, 0.5}

		_, err := svc.Predict(context.Background(), encode(defaultsBody()))

		Convey("Then a generic failure is returned", func() {
			So(errors.Is(err, service.ErrInference), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "An unexpected error occurred during prediction.")
			So(errors.Is(err, classifier.ErrArtifactShape), ShouldBeTrue)
		})
	})

	Convey("Given a model returning probabilities outside [0, 1]", t, func() {
		var calls []string
		svc, model, _ := newScaled(&calls)

		for _, proba := range [][]float64{
			{math.NaN(), 0, 0, 1, 0, 0, 0},
			{math.Inf(1), 0, 0, 0, 0, 0, 0},
			{-0.1, 0, 0, 1.1, 0, 0, 0},
			{0, 0, 0, 1.5, 0, 0, 0},
		} {
			model.proba = proba
			p, err := svc.Predict(context.Background(), encode(defaultsBody()))
			So(p, ShouldBeNil)
			So(errors.Is(err, service.ErrInference), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "An unexpected error occurred during prediction.")
			So(service.Reason(err), ShouldEqual, "internal")
		}
	})

	Convey("Given a model that panics", t, func() {
		var calls []string
		svc, model, _ := newScaled(&calls)
		model.panicWith = "boom"

		_, err := svc.Predict(context.Background(), encode(defaultsBody()))

		Convey("Then the panic becomes a generic failure", func() {
			So(errors.Is(err, service.ErrInference), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "An unexpected error occurred during prediction.")
			var e *service.Error
			So(errors.As(err, &e), ShouldBeTrue)
			So(e.Detail(), ShouldContainSubstring, "boom")
		})
	})

	Convey("Given a scaler that fails", t, func() {
		var calls []string
		svc, _, scaler := newScaled(&calls)
		scaler.err = errors.New("width mismatch")

		_, err := svc.Predict(context.Background(), encode(defaultsBody()))

		Convey("Then the model is not called", func() {
			So(err.Error(), ShouldEqual, "An unexpected error occurred during prediction.")
			So(calls, ShouldResemble, []string{"transform"})
			So(service.Reason(err), ShouldEqual, "internal")
		})
	})
}

func TestReason(t *testing.T) {
	Convey("Given the error kinds", t, func() {
		So(service.Reason(nil), ShouldEqual, "")
		So(service.Reason(&service.Error{Kind: service.ErrModelNotLoaded}), ShouldEqual, "not_loaded")
		So(service.Reason(&service.Error{Kind: service.ErrBadRequest}), ShouldEqual, "bad_request")
		So(service.Reason(&service.Error{Kind: service.ErrMissingFeature}), ShouldEqual, "missing_feature")
		So(service.Reason(&service.Error{Kind: service.ErrInvalidFeature}), ShouldEqual, "invalid_feature")
		So(service.Reason(&service.Error{Kind: service.ErrInvalidClassIndex}), ShouldEqual, "invalid_index")
		So(service.Reason(errors.New("other")), ShouldEqual, "internal")
	})
}
