package plot

import (
	"bytes"
	"fmt"
	"math"

	"github.com/golang/freetype/truetype"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// calculateGridStep picks a 1-2-5 style step for the y axis. Counts are integers,
// so the step never drops below 1.
func calculateGridStep(maxValue float64) float64 {
	if maxValue <= 0 {
		return 0
	}

	// Находим порядок величины максимального значения
	magnitude := math.Pow(10, math.Floor(math.Log10(maxValue)))
	normalized := maxValue / magnitude

	var step float64
	switch {
	case normalized <= 1:
		step = 0.2
	case normalized <= 2:
		step = 0.5
	case normalized <= 5:
		step = 1.0
	default:
		step = 2.0
	}

	finalStep := step * magnitude
	if finalStep < 1 {
		return 1
	}
	return math.Round(finalStep)
}

// DrawPlotBar renders data as a PNG bar chart. A nil font selects the go-chart default.
func DrawPlotBar(data dataForGraph, font *truetype.Font) ([]byte, error) {
	barValues := data.generateBarValues()
	if len(barValues) == 0 {
		return nil, fmt.Errorf("bar chart %q has no values", data.GetNameGraph())
	}
	paddingX := customizePaddingXBottom(barValues)
	width, height := data.calculateChartDimensions(100)
	bar := chart.BarChart{}
	bar.Title = data.GetNameGraph()
	bar.Font = font
	bar.Background = chart.Style{
		FontSize:    160,
		StrokeColor: chart.ColorBlack,
		Padding: chart.Box{
			Bottom: paddingX,
			Top:    50,
		},
	}
	bar.Height = height + 50
	bar.Width = width + paddingX + 50
	bar.BarWidth = 60
	bar.Bars = barValues
	bar.YAxis = chart.YAxis{
		Name: data.getNameYAxis(),
		Range: &chart.ContinuousRange{
			Min: 0.0,
			Max: findMaxValue(data.getYValues()),
		},
		Style: chart.Style{
			StrokeWidth: 2, // Толщина линии
			StrokeColor: chart.ColorBlack,
			FontSize:    17,
		},
		Ticks: data.generateGrid(),
		GridMinorStyle: chart.Style{
			StrokeColor: chart.ColorBlack,
			StrokeWidth: 1,
			DotWidth:    1,
		},
		GridMajorStyle: chart.Style{
			StrokeColor:     chart.ColorBlack,
			StrokeWidth:     1,
			DotWidth:        1,
			StrokeDashArray: []float64{5.0, 5.0}, // Пунктирная линия
		},
	}
	bar.XAxis = chart.Style{
		StrokeWidth:         2, // Толщина линии
		StrokeColor:         chart.ColorBlack,
		TextRotationDegrees: 88,
		FontSize:            17,
	}
	buffer := bytes.NewBuffer([]byte{})

	// Отрисовываем график в формате PNG
	err := bar.Render(chart.PNG, buffer)
	if err != nil {
		return nil, fmt.Errorf("error rendering chart: %w", err)
	}

	return buffer.Bytes(), nil
}

// DrawPie renders data as a PNG pie chart with percentage labels.
func DrawPie(data dataForGraph, font *truetype.Font) ([]byte, error) {
	slices := data.generatePieValues()
	if len(slices) == 0 {
		return nil, fmt.Errorf("pie chart %q has no values", data.GetNameGraph())
	}
	pie := chart.PieChart{
		Title:  data.GetNameGraph(),
		Font:   font,
		Width:  1024,
		Height: 1024,
		Background: chart.Style{
			Padding:   chart.Box{Top: 60, Left: 20, Right: 20, Bottom: 20},
			FillColor: drawing.ColorWhite,
		},
		Values: slices,
	}
	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("error rendering chart: %w", err)
	}
	return buffer.Bytes(), nil
}

func findMaxValue(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	max := y[0]
	for _, v := range y {
		if v > max {
			max = v
		}
	}
	return max
}

func customizePaddingXBottom(values []chart.Value) int {
	count := 0
	for _, v := range values {
		if len(v.Label) > count {
			count = len(v.Label)
		}
	}
	return int(count * 8)
}
