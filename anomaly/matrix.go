// Package anomaly flags regions whose subcategory count profile deviates from the rest.
//
// Detection runs on a region × subcategory matrix of counts built from the filtered
// records. Detectors only produce per-region scores; Detect applies the contamination
// cap so that at most ceil(contamination × regions) regions are ever flagged.
package anomaly

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/pivolan/crime_stats/domain/models"
)

// Matrix holds counts indexed by region (rows) and subcategory (columns).
// Values is nil when either dimension is empty.
type Matrix struct {
	Regions       []string
	Subcategories []string
	Values        *mat.Dense
}

func (m Matrix) Rows() int { return len(m.Regions) }

func (m Matrix) Cols() int { return len(m.Subcategories) }

// Row returns the count vector of region i.
func (m Matrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.Values)
}

// Col returns the counts of subcategory j across regions.
func (m Matrix) Col(j int) []float64 {
	return mat.Col(nil, j, m.Values)
}

// RowTotal sums the counts of region i.
func (m Matrix) RowTotal(i int) float64 {
	return mat.Sum(m.Values.RowView(i))
}

// BuildMatrix pivots the records of category inside regions into a count matrix.
// Missing region/subcategory combinations are 0. Rows and columns are sorted by label.
func BuildMatrix(records []models.Record, category string, regions map[string]struct{}) Matrix {
	cells := map[string]map[string]float64{}
	subSet := map[string]struct{}{}
	for _, r := range records {
		if r.Category != category {
			continue
		}
		if _, ok := regions[r.Region]; !ok {
			continue
		}
		row, ok := cells[r.Region]
		if !ok {
			row = map[string]float64{}
			cells[r.Region] = row
		}
		row[r.Subcategory] += float64(r.Count)
		subSet[r.Subcategory] = struct{}{}
	}

	m := Matrix{
		Regions:       sortedKeys(cells),
		Subcategories: make([]string, 0, len(subSet)),
	}
	for s := range subSet {
		m.Subcategories = append(m.Subcategories, s)
	}
	sort.Strings(m.Subcategories)
	if m.Rows() == 0 || m.Cols() == 0 {
		return m
	}

	m.Values = mat.NewDense(m.Rows(), m.Cols(), nil)
	for i, region := range m.Regions {
		for j, sub := range m.Subcategories {
			m.Values.Set(i, j, cells[region][sub])
		}
	}
	return m
}

func sortedKeys(m map[string]map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
