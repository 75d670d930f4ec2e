package models

import "errors"

// OtherLabel is both the catch-all administrative unit and the label of the rollup remainder bucket.
const OtherLabel = "기타"

// AllUnits is the unit selector value meaning "no unit filter".
const AllUnits = "전체"

// Record is one long-format row of the source table.
type Record struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Region      string `json:"region"`
	Count       int64  `json:"count"`
}

// AggregationRow is a summed group. Label is a region, a unit or a subcategory depending on the caller.
type AggregationRow struct {
	Label string `json:"label"`
	Total int64  `json:"total"`
}

// RollupResult is the top-N plus "기타" summary used for pie charts.
// Top already carries Other as its final element when Other is present.
type RollupResult struct {
	Top         []AggregationRow `json:"top"`
	Other       *AggregationRow  `json:"other,omitempty"`
	OtherDetail []AggregationRow `json:"other_detail"`
}

// Granularity selects what records are grouped by.
type Granularity string

const (
	GranularityRegion Granularity = "region"
	GranularityUnit   Granularity = "unit"
)

// Filter is the user selection driving one pipeline pass.
type Filter struct {
	Category string   `json:"category" validate:"required"`
	Unit     string   `json:"unit"`
	Regions  []string `json:"regions"`
}

// HasUnit reports whether an explicit administrative unit was selected.
func (f Filter) HasUnit() bool {
	return f.Unit != "" && f.Unit != AllUnits
}

// NoticeKind classifies user-visible messages attached to a view.
type NoticeKind string

const (
	NoticeEmptyResult      NoticeKind = "empty_result"
	NoticeSingleGroup      NoticeKind = "single_group"
	NoticeInsufficientData NoticeKind = "insufficient_data"
	NoticeMissingAsset     NoticeKind = "missing_asset"
	NoticeNoAnomalies      NoticeKind = "no_anomalies"
)

type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Chart   string     `json:"chart,omitempty"`
	Message string     `json:"message"`
}

var (
	ErrEmptyResult      = errors.New("no records match the selected filter")
	ErrSingleGroup      = errors.New("only one group remains after aggregation")
	ErrInsufficientData = errors.New("not enough regions for anomaly detection")
	ErrMissingAsset     = errors.New("static asset is missing")
)

// Anomaly is a region flagged by an anomaly detector together with its score.
type Anomaly struct {
	Region string  `json:"region"`
	Score  float64 `json:"score"`
	Total  int64   `json:"total"`
}

// ChartLibrary selects the renderer.
type ChartLibrary string

const (
	ChartEcharts ChartLibrary = "echarts"
	ChartGoChart ChartLibrary = "gochart"
)

// FontStrategy selects where chart fonts come from.
type FontStrategy string

const (
	FontSystem  FontStrategy = "system"
	FontBundled FontStrategy = "bundled"
)
