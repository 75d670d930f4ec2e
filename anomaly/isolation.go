package anomaly

import (
	"math"
	"math/rand"
)

const (
	MethodIsolation = "isolation"
	MethodZScore    = "zscore"
)

const eulerGamma = 0.5772156649

// IsolationForest scores rows by how quickly random axis-aligned splits isolate them.
// Scores are in (0,1]; the same seed and matrix always give the same scores.
type IsolationForest struct {
	Trees      int
	SampleSize int
	Seed       int64
}

func NewIsolationForest(seed int64) *IsolationForest {
	return &IsolationForest{Trees: 100, SampleSize: 256, Seed: seed}
}

func (f *IsolationForest) Name() string { return MethodIsolation }

// Threshold is 0: with a contamination cap the forest behaves like a percentile cut.
func (f *IsolationForest) Threshold() float64 { return 0 }

type isoNode struct {
	feature     int
	split       float64
	left, right *isoNode
	size        int
}

func (f *IsolationForest) Score(m Matrix) []float64 {
	n := m.Rows()
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = m.Row(i)
	}

	psi := f.SampleSize
	if psi <= 0 || psi > n {
		psi = n
	}
	trees := f.Trees
	if trees <= 0 {
		trees = 100
	}
	heightLimit := int(math.Ceil(math.Log2(float64(psi))))
	rng := rand.New(rand.NewSource(f.Seed))

	depths := make([]float64, n)
	for t := 0; t < trees; t++ {
		sample := rng.Perm(n)[:psi]
		root := buildIsoTree(rows, sample, 0, heightLimit, rng)
		for i, row := range rows {
			depths[i] += pathLength(root, row, 0)
		}
	}

	norm := averagePathLength(psi)
	for i := range scores {
		if norm == 0 {
			scores[i] = 0.5
			continue
		}
		scores[i] = math.Pow(2, -(depths[i]/float64(trees))/norm)
	}
	return scores
}

func buildIsoTree(rows [][]float64, idx []int, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(idx) <= 1 {
		return &isoNode{size: len(idx)}
	}

	var splittable []int
	cols := len(rows[idx[0]])
	mins := make([]float64, cols)
	maxs := make([]float64, cols)
	for j := 0; j < cols; j++ {
		mins[j], maxs[j] = math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			mins[j] = math.Min(mins[j], rows[i][j])
			maxs[j] = math.Max(maxs[j], rows[i][j])
		}
		if maxs[j] > mins[j] {
			splittable = append(splittable, j)
		}
	}
	if len(splittable) == 0 {
		return &isoNode{size: len(idx)}
	}

	feature := splittable[rng.Intn(len(splittable))]
	split := mins[feature] + rng.Float64()*(maxs[feature]-mins[feature])

	var left, right []int
	for _, i := range idx {
		if rows[i][feature] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		left:    buildIsoTree(rows, left, depth+1, limit, rng),
		right:   buildIsoTree(rows, right, depth+1, limit, rng),
	}
}

func pathLength(node *isoNode, row []float64, depth int) float64 {
	if node.left == nil && node.right == nil {
		return float64(depth) + averagePathLength(node.size)
	}
	if row[node.feature] < node.split {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// averagePathLength is c(n), the mean path length of an unsuccessful BST search.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
