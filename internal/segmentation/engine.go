package segmentation

import (
	"context"
)

// Run executes the whole pipeline on a raw feature matrix: standardize,
// choose k (automatic mode only), cluster and project. Any failure aborts
// the run; there is no partial result.
func Run(ctx context.Context, m Matrix, mode Mode, opts Options) (*Result, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	x, err := Standardize(m, opts.ZeroVariance)
	if err != nil {
		return nil, err
	}

	res := &Result{Mode: mode, K: mode.K}
	if mode.Kind == ModeAutomatic {
		k, scores, err := SelectOptimalK(ctx, x, mode.MinK, mode.MaxK, opts)
		if err != nil {
			return nil, err
		}
		res.K = k
		res.Scores = scores
	}

	labels, err := ClusterContext(ctx, x, res.K, opts)
	if err != nil {
		return nil, err
	}
	res.Labels = labels

	points, explained, err := project(x)
	if err != nil {
		return nil, err
	}
	res.Points = points
	res.Explained = explained

	return res, nil
}
