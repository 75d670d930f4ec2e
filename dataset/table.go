package dataset

import (
	"sort"

	"github.com/pivolan/crime_stats/aggregator"
	"github.com/pivolan/crime_stats/domain/models"
)

// Table is the parsed source table. It is built once and never modified; every
// accessor returns a fresh slice.
type Table struct {
	records    []models.Record
	categories []string
	regions    []string
	source     string
}

func NewTable(records []models.Record) *Table {
	t := &Table{records: make([]models.Record, len(records))}
	copy(t.records, records)

	seenCat := map[string]struct{}{}
	seenRegion := map[string]struct{}{}
	for _, r := range t.records {
		if _, ok := seenCat[r.Category]; !ok {
			seenCat[r.Category] = struct{}{}
			t.categories = append(t.categories, r.Category)
		}
		if _, ok := seenRegion[r.Region]; !ok {
			seenRegion[r.Region] = struct{}{}
			t.regions = append(t.regions, r.Region)
		}
	}
	return t
}

func (t *Table) Len() int { return len(t.records) }

func (t *Table) Source() string { return t.source }

func (t *Table) Records() []models.Record {
	out := make([]models.Record, len(t.records))
	copy(out, t.records)
	return out
}

// Categories returns distinct categories in order of first appearance.
func (t *Table) Categories() []string {
	return append([]string(nil), t.categories...)
}

// Regions returns distinct regions in column order.
func (t *Table) Regions() []string {
	return append([]string(nil), t.regions...)
}

// HasCategory reports whether category occurs in the table.
func (t *Table) HasCategory(category string) bool {
	for _, c := range t.categories {
		if c == category {
			return true
		}
	}
	return false
}

// Units returns the administrative units present in the table in gazetteer order, "기타" last.
func (t *Table) Units() []string {
	seen := map[string]struct{}{}
	var units []string
	for _, r := range t.regions {
		u := aggregator.DeriveUnit(r)
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			units = append(units, u)
		}
	}
	sort.SliceStable(units, func(i, j int) bool {
		return aggregator.UnitOrder(units[i]) < aggregator.UnitOrder(units[j])
	})
	return units
}

// RegionsInUnit lists the regions of unit in column order. Empty or "전체" returns every region.
func (t *Table) RegionsInUnit(unit string) []string {
	if unit == "" || unit == models.AllUnits {
		return t.Regions()
	}
	var out []string
	for _, r := range t.regions {
		if aggregator.DeriveUnit(r) == unit {
			out = append(out, r)
		}
	}
	return out
}

// ResolveRegions returns the explicit region selection of f, or every region under f.Unit
// when none was given.
func (t *Table) ResolveRegions(f models.Filter) []string {
	if len(f.Regions) == 0 {
		return t.RegionsInUnit(f.Unit)
	}
	out := make([]string, 0, len(f.Regions))
	for _, r := range f.Regions {
		out = append(out, NormalizeLabel(r))
	}
	return out
}
