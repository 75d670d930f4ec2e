package main

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pivolan/go_utils"
	"github.com/rs/zerolog/log"

	"github.com/pivolan/crime_stats/domain/models"
	"github.com/pivolan/crime_stats/pipeline"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type dashboard struct {
	p *pipeline.Pipeline
}

type indexPage struct {
	Categories  []string
	Units       []string
	Regions     []string
	Selected    map[string]bool
	Filter      models.Filter
	Detect      bool
	Library     models.ChartLibrary
	Query       template.URL
	View        *pipeline.View
	OtherDetail template.HTML
	Anomalies   template.HTML
}

func newRouter(p *pipeline.Pipeline) http.Handler {
	d := &dashboard{p: p}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", d.index)
	r.Get("/chart/{file}", d.chart)
	r.Get("/api/summary", d.summary)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(started)).
			Msg("http request")
	})
}

// filterFromRequest reads category, unit, repeated region and anomalies query parameters.
// An absent category selects the first category of the table.
func (d *dashboard) filterFromRequest(r *http.Request) (models.Filter, bool) {
	q := r.URL.Query()
	f := models.Filter{
		Category: strings.TrimSpace(q.Get("category")),
		Unit:     strings.TrimSpace(q.Get("unit")),
	}
	if f.Category == "" {
		if cats := d.p.Table().Categories(); len(cats) > 0 {
			f.Category = cats[0]
		}
	}
	if f.Unit == "" {
		f.Unit = models.AllUnits
	}
	for _, region := range q["region"] {
		if region = strings.TrimSpace(region); region != "" {
			f.Regions = append(f.Regions, region)
		}
	}
	detect := d.p.Config().AnomalyDetection
	if v := q.Get("anomalies"); v != "" {
		detect = v == "on" || v == "1" || v == "true"
	}
	return f, detect
}

// run summarizes the request's filter. Charts are rendered only by the chart
// endpoints, which also skip anomaly detection.
func (d *dashboard) run(w http.ResponseWriter, r *http.Request, withAnomalies bool) (*pipeline.View, bool) {
	f, detect := d.filterFromRequest(r)
	v, err := d.p.Summarize(f, detect && withAnomalies)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrInvalidFilter) || errors.Is(err, pipeline.ErrUnknownCategory) {
			status = http.StatusBadRequest
		}
		log.Warn().Err(err).Str("category", f.Category).Msg("pipeline pass rejected")
		http.Error(w, err.Error(), status)
		return nil, false
	}
	return v, true
}

func (d *dashboard) index(w http.ResponseWriter, r *http.Request) {
	v, ok := d.run(w, r, true)
	if !ok {
		return
	}
	table := d.p.Table()
	page := indexPage{
		Categories:  table.Categories(),
		Units:       append([]string{models.AllUnits}, table.Units()...),
		Regions:     regionChoices(table.RegionsInUnit(v.Filter.Unit), v.Filter.Regions),
		Selected:    map[string]bool{},
		Filter:      v.Filter,
		Detect:      v.Detection,
		Library:     d.p.Config().ChartLibrary,
		Query:       template.URL(r.URL.RawQuery),
		View:        v,
		OtherDetail: template.HTML(GenerateOtherDetailHTML(v)),
		Anomalies:   template.HTML(GenerateAnomaliesHTML(v.Anomalies)),
	}
	for _, region := range v.Filter.Regions {
		page.Selected[region] = true
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, page); err != nil {
		log.Error().Err(err).Msg("render dashboard")
	}
}

// regionChoices lists the regions of the selected unit followed by any selected
// region outside it, so the form always shows the regions the view is built from.
func regionChoices(inUnit, selected []string) []string {
	out := append([]string(nil), inUnit...)
	for _, r := range selected {
		if !go_utils.InArray(r, out) {
			out = append(out, r)
		}
	}
	return out
}

func chartOf(v *pipeline.View, kind string) *pipeline.Chart {
	switch kind {
	case pipeline.ChartBar:
		return v.Bar
	case pipeline.ChartPie:
		return v.Pie
	}
	return nil
}

// drawable writes a 404 explaining why a chart cannot be drawn and reports false.
func drawable(w http.ResponseWriter, v *pipeline.View, kind string) (*pipeline.Chart, bool) {
	if kind != pipeline.ChartBar && kind != pipeline.ChartPie {
		http.Error(w, "unknown chart "+kind, http.StatusNotFound)
		return nil, false
	}
	c := chartOf(v, kind)
	if c == nil {
		http.Error(w, models.ErrEmptyResult.Error(), http.StatusNotFound)
		return nil, false
	}
	if !c.Drawable() {
		http.Error(w, c.Summary, http.StatusNotFound)
		return nil, false
	}
	return c, true
}

// chart serves /chart/{bar,pie}.{png,html}.
func (d *dashboard) chart(w http.ResponseWriter, r *http.Request) {
	kind, ext, _ := strings.Cut(chi.URLParam(r, "file"), ".")
	if ext != "png" && ext != "html" {
		http.Error(w, "unknown chart format", http.StatusNotFound)
		return
	}
	v, ok := d.run(w, r, false)
	if !ok {
		return
	}
	c, ok := drawable(w, v, kind)
	if !ok {
		return
	}
	if ext == "html" {
		d.writeHTML(w, c)
		return
	}
	img := c.PNG
	if img == nil {
		var err error
		if img, err = d.p.RenderPNG(c); err != nil {
			log.Error().Err(err).Str("chart", c.Kind).Msg("render png")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}

func (d *dashboard) writeHTML(w http.ResponseWriter, c *pipeline.Chart) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if c.HTML != "" {
		w.Write([]byte(c.HTML))
		return
	}
	if err := d.p.RenderHTML(w, c); err != nil {
		log.Error().Err(err).Str("chart", c.Kind).Msg("render html")
	}
}

func (d *dashboard) summary(w http.ResponseWriter, r *http.Request) {
	v, ok := d.run(w, r, true)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode summary")
	}
}
