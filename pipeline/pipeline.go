// Package pipeline runs the single filter → aggregate → rollup → detect → render pass
// behind every dashboard, bot and report view.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"

	"github.com/pivolan/crime_stats/aggregator"
	"github.com/pivolan/crime_stats/anomaly"
	"github.com/pivolan/crime_stats/dataset"
	"github.com/pivolan/crime_stats/domain/models"
	"github.com/pivolan/crime_stats/plot"
)

const (
	ChartBar = "bar"
	ChartPie = "pie"
)

var (
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrUnknownCategory = errors.New("unknown category")
)

// Config parameterizes the pass. The same pipeline serves every combination
// of chart library, font strategy and anomaly toggle.
type Config struct {
	TopN                 int
	ChartLibrary         models.ChartLibrary
	FontStrategy         models.FontStrategy
	FontPath             string
	AnomalyDetection     bool
	AnomalyMethod        string
	AnomalyContamination float64
	AnomalySeed          int64
}

// Chart is one rendered chart of a view. Summary replaces the rendering when
// only one group is left.
type Chart struct {
	Kind    string                  `json:"kind"`
	ID      string                  `json:"id"`
	Title   string                  `json:"title"`
	Rows    []models.AggregationRow `json:"rows"`
	Summary string                  `json:"summary,omitempty"`
	PNG     []byte                  `json:"-"`
	HTML    template.HTML           `json:"-"`

	// OtherLast marks the final row as the "기타" remainder of the rollup.
	OtherLast bool `json:"other_last,omitempty"`
}

// Drawable reports whether the chart has more than one group to draw.
func (c *Chart) Drawable() bool {
	return c != nil && c.Summary == "" && len(c.Rows) > 0
}

type View struct {
	ID          string              `json:"id"`
	Filter      models.Filter       `json:"filter"`
	Regions     []string            `json:"regions"`
	Granularity models.Granularity  `json:"granularity"`
	Total       int64               `json:"total"`
	Bar         *Chart              `json:"bar,omitempty"`
	Pie         *Chart              `json:"pie,omitempty"`
	Rollup      models.RollupResult `json:"rollup"`
	Anomalies   []models.Anomaly    `json:"anomalies"`
	Detection   bool                `json:"detection"`
	Notices     []models.Notice     `json:"notices"`
}

func (v *View) notice(kind models.NoticeKind, chart, message string) {
	v.Notices = append(v.Notices, models.Notice{Kind: kind, Chart: chart, Message: message})
}

// HasNotice reports whether the view carries a notice of kind.
func (v *View) HasNotice(kind models.NoticeKind) bool {
	for _, n := range v.Notices {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

type Pipeline struct {
	table    *dataset.Table
	cfg      Config
	font     plot.Font
	fontErr  error
	detector anomaly.AnomalyDetector
	validate *validator.Validate
}

// New resolves the font and the anomaly detector once. A missing font is not an
// error: every view then carries a missing-asset notice and charts use the default font.
func New(table *dataset.Table, cfg Config) (*Pipeline, error) {
	if table == nil {
		return nil, errors.New("pipeline: nil table")
	}
	if cfg.TopN < 1 {
		cfg.TopN = 10
	}
	if cfg.ChartLibrary == "" {
		cfg.ChartLibrary = models.ChartEcharts
	}
	if cfg.AnomalyContamination <= 0 || cfg.AnomalyContamination >= 1 {
		cfg.AnomalyContamination = 0.1
	}

	p := &Pipeline{table: table, cfg: cfg, validate: validator.New()}

	font, err := plot.LoadFont(cfg.FontStrategy, cfg.FontPath)
	if err != nil && !errors.Is(err, models.ErrMissingAsset) {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if err != nil {
		log.Warn().Err(err).Str("strategy", string(cfg.FontStrategy)).Msg("falling back to default chart font")
	}
	p.font, p.fontErr = font, err

	if p.detector, err = anomaly.New(cfg.AnomalyMethod, cfg.AnomalySeed); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return p, nil
}

func (p *Pipeline) Table() *dataset.Table { return p.table }

func (p *Pipeline) Config() Config { return p.cfg }

func (p *Pipeline) Font() plot.Font { return p.font }

// Run executes one pass with the configured anomaly toggle.
func (p *Pipeline) Run(f models.Filter) (*View, error) {
	return p.RunWith(f, p.cfg.AnomalyDetection)
}

// RunWith executes one pass and pre-renders the charts with the configured library.
// Only an invalid filter is an error; every domain condition ends up as a notice
// on the returned view.
func (p *Pipeline) RunWith(f models.Filter, detect bool) (*View, error) {
	return p.run(f, detect, true)
}

// Summarize executes the pass without rendering. Charts are drawn later, on demand,
// with RenderPNG or RenderHTML.
func (p *Pipeline) Summarize(f models.Filter, detect bool) (*View, error) {
	return p.run(f, detect, false)
}

func (p *Pipeline) run(f models.Filter, detect, render bool) (*View, error) {
	started := time.Now()
	f.Category = dataset.NormalizeLabel(f.Category)
	f.Unit = strings.TrimSpace(f.Unit)
	if err := p.validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if !p.table.HasCategory(f.Category) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, f.Category)
	}

	id := uuid.NewV4().String()
	regions := p.table.ResolveRegions(f)
	regionSet := aggregator.RegionSet(regions)
	records := p.table.Records()

	v := &View{
		ID:        id,
		Filter:    f,
		Regions:   regions,
		Anomalies: []models.Anomaly{},
		Detection: detect,
		Notices:   []models.Notice{},
	}
	if p.fontErr != nil {
		v.notice(models.NoticeMissingAsset, "", p.fontErr.Error())
	}

	v.Granularity = aggregator.ChooseGranularity(records, f, regionSet)
	groups := aggregator.Aggregate(records, f.Category, regionSet, v.Granularity)
	// zero counts are valid cells, but there is nothing to draw
	if aggregator.Sum(groups) == 0 {
		v.notice(models.NoticeEmptyResult, "", models.ErrEmptyResult.Error())
		log.Info().Str("category", f.Category).Str("unit", f.Unit).Msg("empty result")
		return v, nil
	}
	v.Total = aggregator.Sum(groups)
	v.Rollup = aggregator.Rollup(groups, p.cfg.TopN)

	short := strings.ReplaceAll(id, "-", "")[:12]
	v.Bar = &Chart{
		Kind:  ChartBar,
		ID:    ChartBar + "_" + short,
		Title: BarTitle(f.Category),
		Rows:  aggregator.SubcategoryTotals(records, f.Category, regionSet),
	}
	v.Pie = &Chart{
		Kind:  ChartPie,
		ID:    ChartPie + "_" + short,
		Title: PieTitle(f.Category, v.Granularity),
		Rows:  v.Rollup.Top,

		OtherLast: v.Rollup.Other != nil,
	}
	for _, c := range []*Chart{v.Bar, v.Pie} {
		if only, ok := singleGroup(c.Rows); ok {
			c.Summary = fmt.Sprintf("%s: %d건", only.Label, only.Total)
			v.notice(models.NoticeSingleGroup, c.Kind, fmt.Sprintf("%s (%s)", models.ErrSingleGroup, c.Summary))
		}
	}

	if detect {
		p.detect(v, records, regionSet)
	}

	if render {
		if err := p.render(v); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("category", f.Category).
		Str("unit", f.Unit).
		Int("regions", len(regions)).
		Int("rows", len(groups)).
		Str("granularity", string(v.Granularity)).
		Int("anomalies", len(v.Anomalies)).
		Dur("duration", time.Since(started)).
		Msg("pipeline pass")
	return v, nil
}

// singleGroup returns the only row with a non-zero total, if there is exactly one.
func singleGroup(rows []models.AggregationRow) (models.AggregationRow, bool) {
	var only models.AggregationRow
	n := 0
	for _, r := range rows {
		if r.Total > 0 {
			only = r
			n++
		}
	}
	return only, n == 1
}

func (p *Pipeline) detect(v *View, records []models.Record, regionSet map[string]struct{}) {
	m := anomaly.BuildMatrix(records, v.Filter.Category, regionSet)
	flagged, err := anomaly.Detect(m, p.detector, p.cfg.AnomalyContamination)
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		v.notice(models.NoticeInsufficientData, "", err.Error())
	case err != nil:
		log.Error().Err(err).Str("method", p.detector.Name()).Msg("anomaly detection failed")
		v.notice(models.NoticeInsufficientData, "", err.Error())
	case len(flagged) == 0:
		v.notice(models.NoticeNoAnomalies, "", fmt.Sprintf("no anomalous regions among %d", m.Rows()))
	default:
		v.Anomalies = flagged
	}
}

func (p *Pipeline) render(v *View) error {
	for _, c := range []*Chart{v.Bar, v.Pie} {
		if !c.Drawable() {
			continue
		}
		switch p.cfg.ChartLibrary {
		case models.ChartGoChart:
			img, err := p.RenderPNG(c)
			if err != nil {
				return err
			}
			c.PNG = img
		default:
			var buf bytes.Buffer
			if err := p.RenderHTML(&buf, c); err != nil {
				return err
			}
			c.HTML = template.HTML(buf.String())
		}
	}
	return nil
}

// RenderPNG draws c with go-chart regardless of the configured library.
func (p *Pipeline) RenderPNG(c *Chart) ([]byte, error) {
	data := plot.NewDataRowsForGraph(c.Rows, c.OtherLast, "건수", c.Title)
	if c.Kind == ChartPie {
		return plot.DrawPie(data, p.font.TTF)
	}
	return plot.DrawPlotBar(data, p.font.TTF)
}

// RenderHTML writes c as a standalone echarts page.
func (p *Pipeline) RenderHTML(w io.Writer, c *Chart) error {
	if c.Kind == ChartPie {
		return plot.RenderPieHTML(w, c.ID, c.Title, c.Rows, c.OtherLast, p.font)
	}
	return plot.RenderBarHTML(w, c.ID, c.Title, c.Rows, c.OtherLast, p.font)
}

func BarTitle(category string) string {
	return category + " 중분류별 발생 건수"
}

func PieTitle(category string, g models.Granularity) string {
	if g == models.GranularityRegion {
		return category + " 지역(시/군/구)별 발생 비율"
	}
	return category + " 도별 발생 비율"
}
