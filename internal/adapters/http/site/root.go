// Package site renders the prediction form and serves its static assets.
package site

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/okian/drybean/internal/domain/schema"
	"github.com/okian/drybean/pkg/logger"
)

// Error constants
var (
	ErrRender = errors.New("form render failed")
	ErrServe  = errors.New("static asset serve failed")
)

// StatusProvider reports the startup load error shown above the form.
type StatusProvider interface {
	LoadError() string
}

// StaticLoadError is a fixed StatusProvider.
type StaticLoadError string

// LoadError implements StatusProvider.
func (s StaticLoadError) LoadError() string { return string(s) }

// Register attaches the form page and asset routes to mux.
func Register(_ context.Context, mux *http.ServeMux, status StatusProvider) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(FS())))
	mux.HandleFunc("/", NewRootHandler(status).HandleRoot)
}

type field struct {
	Name     string
	Min      string
	Max      string
	Step     string
	Decimals int
	Value    string
}

type page struct {
	Fields    []field
	Labels    []string
	LoadError string
}

// RootHandler renders the prediction form.
type RootHandler struct {
	status StatusProvider
	tmpl   *template.Template
	fields []field
}

// NewRootHandler creates a new root handler.
func NewRootHandler(status StatusProvider) *RootHandler {
	if status == nil {
		status = StaticLoadError("")
	}
	fields := make([]field, 0, len(schema.Features))
	for _, f := range schema.Features {
		fields = append(fields, field{
			Name:     f.Name,
			Min:      strconv.FormatFloat(f.Min, 'f', -1, 64),
			Max:      strconv.FormatFloat(f.Max, 'f', -1, 64),
			Step:     f.Step(),
			Decimals: f.Decimals,
			Value:    f.Format(f.Default()),
		})
	}
	return &RootHandler{status: status, tmpl: indexTemplate, fields: fields}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	err := h.tmpl.Execute(&buf, page{
		Fields:    h.fields,
		Labels:    schema.Labels,
		LoadError: h.status.LoadError(),
	})
	if err != nil {
		logger.Get().Error(r.Context(), "failed to render form", logger.Error(errors.Join(ErrRender, err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := buf.WriteTo(w); err != nil {
		logger.Get().Debug(r.Context(), "failed to write form", logger.Error(errors.Join(ErrServe, err)))
	}
}
