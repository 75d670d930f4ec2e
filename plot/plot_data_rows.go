package plot

import (
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/pivolan/crime_stats/domain/models"
)

// Other bucket gets a neutral grey so it never reads as a real group.
var otherColor = drawing.ColorFromHex("b0b0b0")

type dataRowsForGraph struct {
	labels    []string
	yValues   []float64
	other     int
	nameYAxis string
	nameGraph string
}

// NewDataRowsForGraph adapts aggregation rows, in their given order, for the PNG renderers.
// otherLast marks the final row as the rollup remainder; a unit that is itself
// called "기타" keeps a regular colour.
func NewDataRowsForGraph(rows []models.AggregationRow, otherLast bool, nameYAxis, nameGraph string) dataRowsForGraph {
	d := dataRowsForGraph{
		labels:    make([]string, len(rows)),
		yValues:   make([]float64, len(rows)),
		other:     otherIndex(len(rows), otherLast),
		nameYAxis: nameYAxis,
		nameGraph: nameGraph,
	}
	for i, r := range rows {
		d.labels[i] = r.Label
		d.yValues[i] = float64(r.Total)
	}
	return d
}

func (d dataRowsForGraph) GetNameGraph() string {
	return d.nameGraph
}
func (d dataRowsForGraph) getNameYAxis() string {
	return d.nameYAxis
}
func (d dataRowsForGraph) getYValues() []float64 {
	return d.yValues
}

func (d dataRowsForGraph) lenXValues() int {
	return len(d.labels)
}

func (d dataRowsForGraph) total() float64 {
	sum := 0.0
	for _, v := range d.yValues {
		sum += v
	}
	return sum
}

func (d dataRowsForGraph) calculateChartDimensions(minBarWidth float64) (width, height int) {
	if len(d.yValues) == 0 || d.lenXValues() <= 0 || minBarWidth <= 0 {
		return 0, 0
	}
	x := 1.1
	if d.lenXValues() < 2 {
		x = 10.0
	} else if d.lenXValues() < 10 {
		x = 3.0
	}

	const (
		paddingY     = 100        // отступ для оси Y и подписей
		spacingRatio = 0.2        // соотношение отступа между столбцами к ширине столбца
		aspectRatio  = 9.0 / 16.0 // соотношение сторон по умолчанию
	)

	barSpacing := minBarWidth * spacingRatio
	totalWidth := (minBarWidth+barSpacing)*float64(d.lenXValues()) + paddingY
	width = int(totalWidth*x) + paddingY
	height = int(float64(width) * aspectRatio)
	return width, height
}

func otherIndex(n int, otherLast bool) int {
	if !otherLast {
		return -1
	}
	return n - 1
}

func (d dataRowsForGraph) style(i int) chart.Style {
	if i == d.other {
		return chart.Style{FillColor: otherColor, StrokeColor: otherColor}
	}
	return chart.Style{}
}

func (d dataRowsForGraph) generateBarValues() []chart.Value {
	bars := make([]chart.Value, 0, len(d.labels))
	for i, label := range d.labels {
		style := d.style(i)
		if style.FillColor.IsZero() {
			style.FillColor = drawing.ColorPurple.WithAlpha(100)
		}
		bars = append(bars, chart.Value{
			Value: d.yValues[i],
			Label: label,
			Style: style,
		})
	}
	return bars
}

// generatePieValues labels each slice with its share; zero slices are dropped.
func (d dataRowsForGraph) generatePieValues() []chart.Value {
	total := d.total()
	slices := make([]chart.Value, 0, len(d.labels))
	for i, label := range d.labels {
		if d.yValues[i] <= 0 {
			continue
		}
		slices = append(slices, chart.Value{
			Value: d.yValues[i],
			Label: fmt.Sprintf("%s %.1f%%", label, d.yValues[i]/total*100),
			Style: d.style(i),
		})
	}
	return slices
}

func (d dataRowsForGraph) generateGrid() []chart.Tick {
	var ticks []chart.Tick
	max := findMaxValue(d.yValues)
	gridStep := calculateGridStep(max)
	if gridStep <= 0 {
		return nil
	}
	for i := 0.0; i <= max; i += gridStep {
		ticks = append(ticks, chart.Tick{
			Value: i,
			Label: fmt.Sprintf("%.0f", i),
		})
	}
	return ticks
}
