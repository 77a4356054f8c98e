package segmentation

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

type kmeansFit struct {
	labels  []int
	centers [][]float64
	inertia float64
}

// Cluster partitions the rows of m into k clusters with seeded k-means and
// returns one label in [0, k) per row. Identical input, k and seed always
// produce identical labels.
func Cluster(m Matrix, k int, opts Options) ([]int, error) {
	return ClusterContext(context.Background(), m, k, opts)
}

// ClusterContext is Cluster with cancellation checked between restarts.
func ClusterContext(ctx context.Context, m Matrix, k int, opts Options) ([]int, error) {
	n, _, err := m.dims()
	if err != nil {
		return nil, err
	}
	if k < MinClusters {
		return nil, fmt.Errorf("%w: k=%d", ErrInvalidK, k)
	}
	if n < k {
		return nil, &InsufficientDataError{Rows: n, Required: k}
	}

	fit, err := fitKMeans(ctx, m, k, opts.withDefaults())
	if err != nil {
		return nil, err
	}
	return fit.labels, nil
}

// fitKMeans runs k-means++ seeded Lloyd iterations opts.Restarts times and
// keeps the lowest-inertia fit. The first restart wins ties. A cancelled
// context stops the fit before the next restart.
func fitKMeans(ctx context.Context, m Matrix, k int, opts Options) (kmeansFit, error) {
	rng := rand.New(rand.NewSource(opts.Seed))

	best := kmeansFit{inertia: math.Inf(1)}
	for r := 0; r < opts.Restarts; r++ {
		if err := ctx.Err(); err != nil {
			return kmeansFit{}, err
		}
		centers := seedCenters(m, k, rng)
		fit := lloyd(m, centers, opts.MaxIter, opts.Tolerance)
		if fit.inertia < best.inertia {
			best = fit
		}
	}
	return best, nil
}

func seedCenters(m Matrix, k int, rng *rand.Rand) [][]float64 {
	n := len(m)
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(m[rng.Intn(n)]))

	d2 := make([]float64, n)
	for i, row := range m {
		d2[i] = sqDist(row, centers[0])
	}

	for len(centers) < k {
		idx := pickWeighted(d2, rng)
		c := clone(m[idx])
		centers = append(centers, c)
		for i, row := range m {
			if d := sqDist(row, c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centers
}

// pickWeighted draws an index with probability proportional to weights.
// All-zero weights fall back to a uniform draw.
func pickWeighted(weights []float64, rng *rand.Rand) int {
	total := floats.Sum(weights)
	if total <= 0 {
		return rng.Intn(len(weights))
	}

	target := rng.Float64() * total
	last := 0
	acc := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		acc += w
		if acc > target {
			return i
		}
	}
	return last
}

func lloyd(m Matrix, centers [][]float64, maxIter int, tol float64) kmeansFit {
	labels := make([]int, len(m))
	for iter := 0; iter < maxIter; iter++ {
		assign(m, centers, labels)
		next := recomputeCenters(m, centers, labels)

		shift := 0.0
		for j := range centers {
			shift += sqDist(centers[j], next[j])
		}
		centers = next
		if shift <= tol {
			break
		}
	}

	inertia := assign(m, centers, labels)
	return kmeansFit{labels: labels, centers: centers, inertia: inertia}
}

// assign labels every row with its nearest center (lowest index on ties) and
// returns the total squared distance.
func assign(m Matrix, centers [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, row := range m {
		best, bestDist := 0, math.Inf(1)
		for j, c := range centers {
			if d := sqDist(row, c); d < bestDist {
				best, bestDist = j, d
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

func recomputeCenters(m Matrix, centers [][]float64, labels []int) [][]float64 {
	k, d := len(centers), len(m[0])

	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	// An empty cluster takes over the point farthest from its own center,
	// as long as that does not empty another cluster.
	for j := 0; j < k; j++ {
		if counts[j] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, row := range m {
			if counts[labels[i]] < 2 {
				continue
			}
			if dist := sqDist(row, centers[labels[i]]); dist > farDist {
				far, farDist = i, dist
			}
		}
		if far < 0 {
			continue
		}
		counts[labels[far]]--
		labels[far] = j
		counts[j]++
	}

	next := make([][]float64, k)
	for j := range next {
		next[j] = make([]float64, d)
	}
	for i, row := range m {
		floats.Add(next[labels[i]], row)
	}
	for j := range next {
		if counts[j] == 0 {
			copy(next[j], centers[j])
			continue
		}
		floats.Scale(1/float64(counts[j]), next[j])
	}
	return next
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func clone(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	return out
}
