package aggregator

import (
	"sort"
	"strings"

	"github.com/pivolan/crime_stats/domain/models"
)

// Gazetteer lists administrative unit prefixes in match order.
var Gazetteer = []string{
	"서울", "부산", "대구", "인천", "광주", "대전", "울산", "세종",
	"경기", "강원", "충북", "충남", "전북", "전남", "경북", "경남", "제주",
}

// DeriveUnit returns the first gazetteer prefix of region, or models.OtherLabel.
func DeriveUnit(region string) string {
	for _, unit := range Gazetteer {
		if strings.HasPrefix(region, unit) {
			return unit
		}
	}
	return models.OtherLabel
}

// UnitOrder returns the position of unit in the gazetteer; "기타" and unknown units sort last.
func UnitOrder(unit string) int {
	for i, u := range Gazetteer {
		if u == unit {
			return i
		}
	}
	return len(Gazetteer)
}

// Aggregate filters records by category and region set, then sums counts per region or unit.
// Rows are ordered by total descending, ties by label ascending.
func Aggregate(records []models.Record, category string, regions map[string]struct{}, granularity models.Granularity) []models.AggregationRow {
	return groupSum(records, category, regions, func(r models.Record) string {
		if granularity == models.GranularityUnit {
			return DeriveUnit(r.Region)
		}
		return r.Region
	})
}

// SubcategoryTotals sums counts per subcategory for the same filter Aggregate applies.
func SubcategoryTotals(records []models.Record, category string, regions map[string]struct{}) []models.AggregationRow {
	return groupSum(records, category, regions, func(r models.Record) string {
		return r.Subcategory
	})
}

func groupSum(records []models.Record, category string, regions map[string]struct{}, key func(models.Record) string) []models.AggregationRow {
	totals := map[string]int64{}
	for _, r := range records {
		if r.Category != category {
			continue
		}
		if _, ok := regions[r.Region]; !ok {
			continue
		}
		totals[key(r)] += r.Count
	}
	rows := make([]models.AggregationRow, 0, len(totals))
	for label, total := range totals {
		rows = append(rows, models.AggregationRow{Label: label, Total: total})
	}
	SortRows(rows)
	return rows
}

// SortRows orders rows by total descending, then label ascending.
func SortRows(rows []models.AggregationRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Label < rows[j].Label
	})
}

// Rollup keeps the first topN rows and collapses the rest into a "기타" bucket appended to Top.
// rows must already be ordered; topN below 1 is treated as 1.
func Rollup(rows []models.AggregationRow, topN int) models.RollupResult {
	if topN < 1 {
		topN = 1
	}
	if len(rows) <= topN {
		top := make([]models.AggregationRow, len(rows))
		copy(top, rows)
		return models.RollupResult{Top: top, OtherDetail: []models.AggregationRow{}}
	}

	detail := make([]models.AggregationRow, len(rows)-topN)
	copy(detail, rows[topN:])
	var sum int64
	for _, r := range detail {
		sum += r.Total
	}
	other := models.AggregationRow{Label: models.OtherLabel, Total: sum}

	top := make([]models.AggregationRow, 0, topN+1)
	top = append(top, rows[:topN]...)
	top = append(top, other)
	return models.RollupResult{Top: top, Other: &other, OtherDetail: detail}
}

// ChooseGranularity groups by unit unless exactly one unit is selected and the
// matching records stay inside it.
func ChooseGranularity(records []models.Record, filter models.Filter, regions map[string]struct{}) models.Granularity {
	if !filter.HasUnit() {
		return models.GranularityUnit
	}
	if len(SpannedUnits(records, filter.Category, regions)) > 1 {
		return models.GranularityUnit
	}
	return models.GranularityRegion
}

// SpannedUnits returns the distinct units of the records that pass the filter, in gazetteer order.
func SpannedUnits(records []models.Record, category string, regions map[string]struct{}) []string {
	seen := map[string]struct{}{}
	for _, r := range records {
		if r.Category != category {
			continue
		}
		if _, ok := regions[r.Region]; !ok {
			continue
		}
		seen[DeriveUnit(r.Region)] = struct{}{}
	}
	units := make([]string, 0, len(seen))
	for u := range seen {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool {
		return UnitOrder(units[i]) < UnitOrder(units[j])
	})
	return units
}

// RegionSet turns a region list into a lookup set.
func RegionSet(regions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(regions))
	for _, r := range regions {
		set[r] = struct{}{}
	}
	return set
}

// Sum totals a row sequence.
func Sum(rows []models.AggregationRow) int64 {
	var s int64
	for _, r := range rows {
		s += r.Total
	}
	return s
}
