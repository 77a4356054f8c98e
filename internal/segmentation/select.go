package segmentation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
)

// SelectOptimalK fits k-means for every candidate k in [minK, maxK] and
// returns the k with the highest silhouette score together with all scores.
// Ties go to the smallest k. Candidates with k >= rows are skipped because
// the silhouette is undefined for them.
func SelectOptimalK(ctx context.Context, m Matrix, minK, maxK int, opts Options) (int, map[int]float64, error) {
	n, _, err := m.dims()
	if err != nil {
		return 0, nil, err
	}
	if minK < MinClusters || maxK < minK {
		return 0, nil, fmt.Errorf("%w: range [%d, %d]", ErrInvalidK, minK, maxK)
	}
	if n < minAutomaticRows {
		return 0, nil, &InsufficientDataError{Rows: n, Required: minAutomaticRows}
	}

	opts = opts.withDefaults()
	search := m
	if opts.MaxSearchRows > 0 && n > opts.MaxSearchRows {
		search = sampleRows(m, opts.MaxSearchRows, opts.Seed)
	}

	upper := min(maxK, len(search)-1)
	if upper < minK {
		return 0, nil, &InsufficientDataError{Rows: len(search), Required: minK + 1}
	}

	ks := make([]int, 0, upper-minK+1)
	for k := minK; k <= upper; k++ {
		ks = append(ks, k)
	}
	scores := make([]float64, len(ks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, k := range ks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fit, err := fitKMeans(gctx, search, k, opts)
			if err != nil {
				return err
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[i] = Silhouette(search, fit.labels)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}

	best, bestScore := ks[0], scores[0]
	byK := make(map[int]float64, len(ks))
	for i, k := range ks {
		byK[k] = scores[i]
		if scores[i] > bestScore {
			best, bestScore = k, scores[i]
		}
	}
	return best, byK, nil
}

// sampleRows picks limit rows with a seeded permutation, kept in input order.
func sampleRows(m Matrix, limit int, seed int64) Matrix {
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(len(m))[:limit]
	sort.Ints(idx)

	out := make(Matrix, len(idx))
	for i, j := range idx {
		out[i] = m[j]
	}
	return out
}
