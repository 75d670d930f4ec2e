package anomaly

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivolan/crime_stats/domain/models"
)

type countingDetector struct {
	calls int
}

func (c *countingDetector) Name() string { return "counting" }
func (c *countingDetector) Threshold() float64 { return 0 }
func (c *countingDetector) Score(m Matrix) []float64 {
	c.calls++
	return make([]float64, m.Rows())
}

// clusteredRecords builds eight similar regions and one region with far higher counts.
func clusteredRecords() []models.Record {
	base := [][2]int64{{10, 10}, {11, 9}, {9, 11}, {10, 12}, {12, 10}, {11, 11}, {9, 9}, {10, 11}}
	var records []models.Record
	for i, c := range base {
		region := fmt.Sprintf("경기지역%d", i)
		records = append(records,
			models.Record{Category: "지능범죄", Subcategory: "사기", Region: region, Count: c[0]},
			models.Record{Category: "지능범죄", Subcategory: "횡령", Region: region, Count: c[1]},
		)
	}
	records = append(records,
		models.Record{Category: "지능범죄", Subcategory: "사기", Region: "서울강남구", Count: 200},
		models.Record{Category: "지능범죄", Subcategory: "횡령", Region: "서울강남구", Count: 150},
	)
	return records
}

func regionsOf(records []models.Record) map[string]struct{} {
	set := map[string]struct{}{}
	for _, r := range records {
		set[r.Region] = struct{}{}
	}
	return set
}

func TestBuildMatrixFillsMissingWithZero(t *testing.T) {
	records := []models.Record{
		{Category: "c", Subcategory: "b", Region: "r2", Count: 3},
		{Category: "c", Subcategory: "a", Region: "r1", Count: 1},
		{Category: "c", Subcategory: "a", Region: "r1", Count: 2},
		{Category: "other", Subcategory: "z", Region: "r1", Count: 9},
		{Category: "c", Subcategory: "a", Region: "r3", Count: 7},
	}
	m := BuildMatrix(records, "c", map[string]struct{}{"r1": {}, "r2": {}})

	assert.Equal(t, []string{"r1", "r2"}, m.Regions)
	assert.Equal(t, []string{"a", "b"}, m.Subcategories)
	assert.Equal(t, []float64{3, 0}, m.Row(0))
	assert.Equal(t, []float64{0, 3}, m.Row(1))
	assert.Equal(t, 3.0, m.RowTotal(0))
}

func TestBuildMatrixEmpty(t *testing.T) {
	m := BuildMatrix(nil, "c", nil)
	assert.Equal(t, 0, m.Rows())
	assert.Nil(t, m.Values)
}

func TestDetectInsufficientData(t *testing.T) {
	records := clusteredRecords()
	regions := map[string]struct{}{"경기지역0": {}, "경기지역1": {}, "경기지역2": {}, "경기지역3": {}}
	m := BuildMatrix(records, "지능범죄", regions)
	require.Equal(t, 4, m.Rows())

	d := &countingDetector{}
	flagged, err := Detect(m, d, 0.1)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	assert.Empty(t, flagged)
	assert.Equal(t, 0, d.calls)
}

func TestDetectRejectsContamination(t *testing.T) {
	records := clusteredRecords()
	m := BuildMatrix(records, "지능범죄", regionsOf(records))
	for _, c := range []float64{0, 1, -0.1, 1.5} {
		_, err := Detect(m, &countingDetector{}, c)
		assert.Error(t, err, "contamination %v", c)
	}
}

func TestMaxFlagged(t *testing.T) {
	assert.Equal(t, 1, MaxFlagged(0.1, 9))
	assert.Equal(t, 2, MaxFlagged(0.25, 8))
	assert.Equal(t, 3, MaxFlagged(0.3, 10))
	assert.Equal(t, 1, MaxFlagged(0.01, 5))
}

func TestIsolationForestFlagsOutlier(t *testing.T) {
	records := clusteredRecords()
	m := BuildMatrix(records, "지능범죄", regionsOf(records))

	flagged, err := Detect(m, NewIsolationForest(42), 0.1)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "서울강남구", flagged[0].Region)
	assert.Equal(t, int64(350), flagged[0].Total)
}

func TestIsolationForestDeterministic(t *testing.T) {
	records := clusteredRecords()
	m := BuildMatrix(records, "지능범죄", regionsOf(records))

	a := NewIsolationForest(7).Score(m)
	b := NewIsolationForest(7).Score(m)
	assert.Equal(t, a, b)
	for _, s := range a {
		assert.True(t, s > 0 && s <= 1, "score %v out of range", s)
	}
}

func TestIsolationForestCapNeverExceeded(t *testing.T) {
	records := clusteredRecords()
	m := BuildMatrix(records, "지능범죄", regionsOf(records))
	for _, c := range []float64{0.05, 0.2, 0.5, 0.9} {
		flagged, err := Detect(m, NewIsolationForest(1), c)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(flagged), MaxFlagged(c, m.Rows()))
	}
}

func TestRobustZScore(t *testing.T) {
	records := clusteredRecords()
	m := BuildMatrix(records, "지능범죄", regionsOf(records))

	flagged, err := Detect(m, NewRobustZScore(), 0.5)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "서울강남구", flagged[0].Region)
}

func TestRobustZScoreNothingUnusual(t *testing.T) {
	var records []models.Record
	for i := 0; i < 6; i++ {
		records = append(records, models.Record{Category: "c", Subcategory: "s", Region: fmt.Sprintf("r%d", i), Count: 10})
	}
	m := BuildMatrix(records, "c", regionsOf(records))
	flagged, err := Detect(m, NewRobustZScore(), 0.5)
	require.NoError(t, err)
	assert.Empty(t, flagged)
}

func TestNewDetector(t *testing.T) {
	d, err := New("", 1)
	require.NoError(t, err)
	assert.Equal(t, MethodIsolation, d.Name())

	d, err = New(MethodZScore, 1)
	require.NoError(t, err)
	assert.Equal(t, MethodZScore, d.Name())

	_, err = New("dbscan", 1)
	assert.Error(t, err)
}
