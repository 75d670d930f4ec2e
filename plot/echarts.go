package plot

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/pivolan/crime_stats/domain/models"
)

const otherHex = "#b0b0b0"

func initOpts(id, title string) opts.Initialization {
	return opts.Initialization{
		PageTitle: title,
		ChartID:   id,
		Width:     "100%",
		Height:    "560px",
	}
}

func itemStyle(i, other int) *opts.ItemStyle {
	if i == other {
		return &opts.ItemStyle{Color: otherHex}
	}
	return nil
}

// RenderBarHTML writes a horizontal bar chart page. Rows are drawn top to bottom
// in the given order; otherLast greys out the final row.
func RenderBarHTML(w io.Writer, id, title string, rows []models.AggregationRow, otherLast bool, font Font) error {
	other := otherIndex(len(rows), otherLast)
	labels := make([]string, len(rows))
	data := make([]opts.BarData, len(rows))
	// echarts draws the first category at the bottom of a reversed axis
	for i, r := range rows {
		j := len(rows) - 1 - i
		labels[j] = r.Label
		data[j] = opts.BarData{Name: r.Label, Value: r.Total, ItemStyle: itemStyle(i, other)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(id, title)),
		charts.WithTitleOpts(opts.Title{
			Title:      title,
			TitleStyle: &opts.TextStyle{FontFamily: font.Family},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	bar.SetXAxis(labels).
		AddSeries("count", data, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "right"})).
		XYReversal()

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render bar %q: %w", title, err)
	}
	return nil
}

// RenderPieHTML writes a pie chart page with name and percentage labels.
func RenderPieHTML(w io.Writer, id, title string, rows []models.AggregationRow, otherLast bool, font Font) error {
	other := otherIndex(len(rows), otherLast)
	data := make([]opts.PieData, 0, len(rows))
	for i, r := range rows {
		if r.Total <= 0 {
			continue
		}
		data = append(data, opts.PieData{Name: r.Label, Value: r.Total, ItemStyle: itemStyle(i, other)})
	}
	if len(data) == 0 {
		return fmt.Errorf("pie chart %q has no values", title)
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(id, title)),
		charts.WithTitleOpts(opts.Title{
			Title:      title,
			TitleStyle: &opts.TextStyle{FontFamily: font.Family},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	pie.AddSeries("share", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}),
		charts.WithPieChartOpts(opts.PieChart{Radius: "65%"}),
	)

	if err := pie.Render(w); err != nil {
		return fmt.Errorf("render pie %q: %w", title, err)
	}
	return nil
}
