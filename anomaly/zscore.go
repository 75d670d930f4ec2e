package anomaly

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RobustZScore scores a region by its largest modified z-score (median/MAD) across subcategories.
type RobustZScore struct {
	Cutoff float64
}

func NewRobustZScore() *RobustZScore {
	return &RobustZScore{Cutoff: 3.5}
}

func (z *RobustZScore) Name() string { return MethodZScore }

func (z *RobustZScore) Threshold() float64 { return z.Cutoff }

func (z *RobustZScore) Score(m Matrix) []float64 {
	scores := make([]float64, m.Rows())
	for j := 0; j < m.Cols(); j++ {
		col := m.Col(j)
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)
		median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

		dev := make([]float64, len(col))
		for i, v := range col {
			dev[i] = math.Abs(v - median)
		}
		sort.Float64s(dev)
		mad := stat.Quantile(0.5, stat.Empirical, dev, nil)

		scale := 0.6745 / mad
		if mad == 0 {
			// fall back to the mean absolute deviation when more than half the values tie
			meanAbs := stat.Mean(dev, nil)
			if meanAbs == 0 {
				continue
			}
			scale = 1 / (1.253314 * meanAbs)
		}
		for i, v := range col {
			if s := math.Abs(v-median) * scale; s > scores[i] {
				scores[i] = s
			}
		}
	}
	return scores
}
