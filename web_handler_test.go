package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivolan/crime_stats/dataset"
	"github.com/pivolan/crime_stats/domain/models"
	"github.com/pivolan/crime_stats/pipeline"
)

func testTable() *dataset.Table {
	fraud := map[string]int64{"서울종로구": 50, "서울중구": 40, "부산중구": 30, "경기수원시": 60, "경기성남시": 20, "강원춘천시": 5, "제주시": 3}
	embezzle := map[string]int64{"서울종로구": 5, "서울중구": 4, "부산중구": 3, "경기수원시": 6, "경기성남시": 2, "강원춘천시": 1, "제주시": 0}
	order := []string{"서울종로구", "서울중구", "부산중구", "경기수원시", "경기성남시", "강원춘천시", "제주시"}

	var records []models.Record
	for _, r := range order {
		records = append(records,
			models.Record{Category: "지능범죄", Subcategory: "사기", Region: r, Count: fraud[r]},
			models.Record{Category: "지능범죄", Subcategory: "횡령", Region: r, Count: embezzle[r]},
		)
	}
	records = append(records, models.Record{Category: "강력범죄", Subcategory: "살인", Region: "서울종로구", Count: 1})
	return dataset.NewTable(records)
}

func testPipeline(t *testing.T, lib models.ChartLibrary) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(testTable(), pipeline.Config{
		TopN:          3,
		ChartLibrary:  lib,
		FontStrategy:  models.FontBundled,
		FontPath:      filepath.Join(t.TempDir(), "missing.ttf"),
		AnomalyMethod: "isolation",
		AnomalySeed:   42,
	})
	require.NoError(t, err)
	return p
}

func get(t *testing.T, h http.Handler, path string, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newRouter(testPipeline(t, models.ChartEcharts)), "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestIndexEcharts(t *testing.T) {
	rec := get(t, newRouter(testPipeline(t, models.ChartEcharts)), "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "지능범죄 중분류별 발생 건수")
	assert.Contains(t, body, "지능범죄 도별 발생 비율")
	assert.Contains(t, body, `<iframe src="/chart/bar.html?`)
	assert.Contains(t, body, `<iframe src="/chart/pie.html?`)
	assert.Contains(t, body, "기타 상세")
	assert.Contains(t, body, "강원")
	assert.Contains(t, body, `<option value="강력범죄">`)
}

func TestIndexGoChartKeepsQuery(t *testing.T) {
	q := url.Values{"category": {"지능범죄"}, "unit": {"경기"}}
	rec := get(t, newRouter(testPipeline(t, models.ChartGoChart)), "/", q)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `<img src="/chart/pie.png?`+strings.ReplaceAll(q.Encode(), "&", "&amp;")+`"`)
	assert.Contains(t, body, "지능범죄 지역(시/군/구)별 발생 비율")
	assert.Contains(t, body, `<option value="경기" selected>`)
	assert.Contains(t, body, `<option value="경기수원시">`)
	assert.NotContains(t, body, `<option value="서울종로구">`)
}

func TestIndexSingleGroupShowsSummary(t *testing.T) {
	rec := get(t, newRouter(testPipeline(t, models.ChartEcharts)), "/", url.Values{"category": {"강력범죄"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "살인: 1건")
	assert.NotContains(t, rec.Body.String(), "/chart/bar.html")
}

func TestIndexEmptyResult(t *testing.T) {
	rec := get(t, newRouter(testPipeline(t, models.ChartEcharts)), "/", url.Values{"category": {"지능범죄"}, "unit": {"전북"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), models.ErrEmptyResult.Error())
	assert.NotContains(t, rec.Body.String(), "<iframe")
}

func TestSummaryJSON(t *testing.T) {
	q := url.Values{"category": {"지능범죄"}, "unit": {"경기"}, "anomalies": {"on"}}
	rec := get(t, newRouter(testPipeline(t, models.ChartEcharts)), "/api/summary", q)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var v pipeline.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, models.GranularityRegion, v.Granularity)
	assert.Equal(t, int64(88), v.Total)
	assert.Equal(t, []string{"경기수원시", "경기성남시"}, v.Regions)
	assert.True(t, v.Detection)
	assert.True(t, v.HasNotice(models.NoticeInsufficientData))
	assert.NotContains(t, rec.Body.String(), "<html")
}

func TestSummaryRepeatedRegions(t *testing.T) {
	q := url.Values{"category": {"지능범죄"}, "region": {"서울중구", "부산중구"}}
	rec := get(t, newRouter(testPipeline(t, models.ChartEcharts)), "/api/summary", q)
	require.Equal(t, http.StatusOK, rec.Code)

	var v pipeline.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, models.GranularityUnit, v.Granularity)
	assert.Equal(t, int64(77), v.Total)
}

func TestChartPNG(t *testing.T) {
	h := newRouter(testPipeline(t, models.ChartEcharts))
	for _, kind := range []string{"bar", "pie"} {
		rec := get(t, h, "/chart/"+kind+".png", url.Values{"category": {"지능범죄"}})
		require.Equal(t, http.StatusOK, rec.Code, kind)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"), kind)
	}
}

func TestChartHTML(t *testing.T) {
	rec := get(t, newRouter(testPipeline(t, models.ChartGoChart)), "/chart/pie.html", url.Values{"category": {"지능범죄"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "echarts")
}

func TestChartErrors(t *testing.T) {
	h := newRouter(testPipeline(t, models.ChartEcharts))

	rec := get(t, h, "/chart/bar.png", url.Values{"category": {"방화"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, h, "/chart/bar.png", url.Values{"category": {"강력범죄"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "살인: 1건")

	rec = get(t, h, "/chart/pie.png", url.Values{"category": {"지능범죄"}, "unit": {"전북"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/chart/line.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/chart/bar.svg", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIUnknownCategory(t *testing.T) {
	rec := get(t, newRouter(testPipeline(t, models.ChartEcharts)), "/api/summary", url.Values{"category": {"방화"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexUnitChangeClearsRegions(t *testing.T) {
	q := url.Values{"category": {"지능범죄"}, "unit": {"부산"}, "region": {"서울중구"}}
	rec := get(t, newRouter(testPipeline(t, models.ChartEcharts)), "/", q)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `this.form.elements['region'].selectedIndex = -1`)
	assert.Contains(t, body, `<option value="부산중구">`)
	// an explicit region outside the unit stays visible and selected
	assert.Contains(t, body, `<option value="서울중구" selected>`)
}

func TestRegionChoices(t *testing.T) {
	assert.Equal(t, []string{"부산중구", "서울중구"}, regionChoices([]string{"부산중구"}, []string{"서울중구", "부산중구"}))
	assert.Equal(t, []string{"부산중구"}, regionChoices([]string{"부산중구"}, nil))
}

func TestAllZeroCategoryIsEmptyNotError(t *testing.T) {
	table := dataset.NewTable([]models.Record{
		{Category: "방화", Subcategory: "방화", Region: "서울종로구", Count: 0},
		{Category: "방화", Subcategory: "실화", Region: "부산중구", Count: 0},
	})
	for _, lib := range []models.ChartLibrary{models.ChartEcharts, models.ChartGoChart} {
		p, err := pipeline.New(table, pipeline.Config{
			ChartLibrary: lib,
			FontStrategy: models.FontBundled,
			FontPath:     filepath.Join(t.TempDir(), "missing.ttf"),
		})
		require.NoError(t, err)
		h := newRouter(p)
		q := url.Values{"category": {"방화"}}

		rec := get(t, h, "/", q)
		require.Equal(t, http.StatusOK, rec.Code, lib)
		assert.Contains(t, rec.Body.String(), models.ErrEmptyResult.Error())

		rec = get(t, h, "/chart/pie.png", q)
		assert.Equal(t, http.StatusNotFound, rec.Code, lib)
		rec = get(t, h, "/chart/bar.html", q)
		assert.Equal(t, http.StatusNotFound, rec.Code, lib)
	}
}

func TestChartEndpointsIgnoreAnomalyToggle(t *testing.T) {
	h := newRouter(testPipeline(t, models.ChartGoChart))
	q := url.Values{"category": {"지능범죄"}, "anomalies": {"on"}}

	rec := get(t, h, "/chart/pie.png", q)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	rec = get(t, h, "/api/summary", q)
	require.Equal(t, http.StatusOK, rec.Code)
	var v pipeline.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.Detection)
	require.NotNil(t, v.Pie)
	assert.True(t, v.Pie.OtherLast)
}
