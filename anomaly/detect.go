package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/pivolan/crime_stats/domain/models"
)

// MinRegions is the smallest matrix detection runs on.
const MinRegions = 5

// AnomalyDetector scores every row of a matrix; higher means more anomalous.
// Only rows scoring above Threshold are eligible to be flagged.
type AnomalyDetector interface {
	Name() string
	Score(m Matrix) []float64
	Threshold() float64
}

// MaxFlagged is the contamination cap: ceil(contamination × rows).
// The epsilon keeps products like 0.3×10 from rounding up to 4.
func MaxFlagged(contamination float64, rows int) int {
	return int(math.Ceil(contamination*float64(rows) - 1e-9))
}

// Detect flags at most MaxFlagged regions of m, ordered by score descending then region.
// It returns models.ErrInsufficientData without invoking the detector when m has
// fewer than MinRegions rows.
func Detect(m Matrix, d AnomalyDetector, contamination float64) ([]models.Anomaly, error) {
	if m.Rows() < MinRegions {
		return nil, fmt.Errorf("%w: %d regions, need %d", models.ErrInsufficientData, m.Rows(), MinRegions)
	}
	if contamination <= 0 || contamination >= 1 {
		return nil, fmt.Errorf("contamination %v must be in (0,1)", contamination)
	}

	scores := d.Score(m)
	if len(scores) != m.Rows() {
		return nil, fmt.Errorf("%s returned %d scores for %d regions", d.Name(), len(scores), m.Rows())
	}

	candidates := make([]models.Anomaly, 0, m.Rows())
	for i, s := range scores {
		if s > d.Threshold() {
			candidates = append(candidates, models.Anomaly{
				Region: m.Regions[i],
				Score:  s,
				Total:  int64(m.RowTotal(i)),
			})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Region < candidates[j].Region
	})

	if limit := MaxFlagged(contamination, m.Rows()); len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// New returns the detector registered under method.
func New(method string, seed int64) (AnomalyDetector, error) {
	switch method {
	case "", MethodIsolation:
		return NewIsolationForest(seed), nil
	case MethodZScore:
		return NewRobustZScore(), nil
	}
	return nil, fmt.Errorf("unknown anomaly method %q", method)
}
