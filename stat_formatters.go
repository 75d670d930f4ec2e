package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/pivolan/crime_stats/domain/models"
	"github.com/pivolan/crime_stats/pipeline"
)

func share(part, total int64) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
}

// rowsTable lists rows with their share of total; the footer carries the rows sum.
func rowsTable(title, labelHeader string, rows []models.AggregationRow, total int64) table.Writer {
	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"#", labelHeader, "건수", "비율"})
	var sum int64
	for i, r := range rows {
		t.AppendRow(table.Row{i + 1, r.Label, r.Total, share(r.Total, total)})
		sum += r.Total
	}
	t.AppendFooter(table.Row{"", "합계", sum, share(sum, total)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.SetStyle(table.StyleDefault)
	return t
}

func anomaliesTable(anomalies []models.Anomaly) table.Writer {
	t := table.NewWriter()
	t.SetTitle("이상 지역")
	t.AppendHeader(table.Row{"#", "지역", "건수", "점수"})
	for i, a := range anomalies {
		t.AppendRow(table.Row{i + 1, a.Region, a.Total, fmt.Sprintf("%.3f", a.Score)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleDefault)
	return t
}

func groupHeader(g models.Granularity) string {
	if g == models.GranularityRegion {
		return "지역"
	}
	return "시도"
}

// GenerateOtherDetailTable lists the groups folded into the "기타" slice.
func GenerateOtherDetailTable(v *pipeline.View) string {
	if v.Rollup.Other == nil {
		return ""
	}
	return rowsTable(models.OtherLabel+" 상세", groupHeader(v.Granularity), v.Rollup.OtherDetail, v.Total).Render()
}

func GenerateOtherDetailHTML(v *pipeline.View) string {
	if v.Rollup.Other == nil {
		return ""
	}
	return rowsTable(models.OtherLabel+" 상세", groupHeader(v.Granularity), v.Rollup.OtherDetail, v.Total).RenderHTML()
}

func GenerateAnomaliesTable(anomalies []models.Anomaly) string {
	if len(anomalies) == 0 {
		return ""
	}
	return anomaliesTable(anomalies).Render()
}

func GenerateAnomaliesHTML(anomalies []models.Anomaly) string {
	if len(anomalies) == 0 {
		return ""
	}
	return anomaliesTable(anomalies).RenderHTML()
}

// GenerateReport renders every table of a view as plain text.
func GenerateReport(v *pipeline.View) string {
	buf := &strings.Builder{}
	unit := v.Filter.Unit
	if unit == "" {
		unit = models.AllUnits
	}
	fmt.Fprintf(buf, "%s / %s (%s, %d regions)\n\n", v.Filter.Category, unit, v.Granularity, len(v.Regions))

	for _, n := range v.Notices {
		fmt.Fprintf(buf, "! %s: %s\n", n.Kind, n.Message)
	}
	if len(v.Notices) > 0 {
		buf.WriteString("\n")
	}
	if v.Bar == nil {
		return buf.String()
	}

	buf.WriteString(rowsTable(v.Bar.Title, "중분류", v.Bar.Rows, v.Total).Render())
	buf.WriteString("\n\n")
	buf.WriteString(rowsTable(v.Pie.Title, groupHeader(v.Granularity), v.Rollup.Top, v.Total).Render())
	buf.WriteString("\n")
	if detail := GenerateOtherDetailTable(v); detail != "" {
		buf.WriteString("\n" + detail + "\n")
	}
	if a := GenerateAnomaliesTable(v.Anomalies); a != "" {
		buf.WriteString("\n" + a + "\n")
	}
	return buf.String()
}
