package segmentation

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Standardize rescales every column to zero mean and unit population
// variance. The input matrix is left untouched.
func Standardize(m Matrix, policy ZeroVariancePolicy) (Matrix, error) {
	n, d, err := m.dims()
	if err != nil {
		return nil, err
	}

	out := make(Matrix, n)
	for i := range out {
		out[i] = make([]float64, d)
	}

	col := make([]float64, n)
	for j := 0; j < d; j++ {
		for i := range m {
			col[i] = m[i][j]
		}

		mean, variance := stat.PopMeanVariance(col, nil)
		std := math.Sqrt(variance)
		if isZeroScale(std, mean) {
			if policy == FailOnZeroVariance {
				return nil, &DegenerateFeatureError{Column: j, Name: featureName(j)}
			}
			// out is already zeroed
			continue
		}

		for i := range m {
			out[i][j] = (m[i][j] - mean) / std
		}
	}

	return out, nil
}

func isZeroScale(std, mean float64) bool {
	return std <= 10*epsilon*math.Max(1, math.Abs(mean))
}

const epsilon = 2.220446049250313e-16

func featureName(j int) string {
	if j < len(FeatureNames) {
		return FeatureNames[j]
	}
	return ""
}
