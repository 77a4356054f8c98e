package segmentation

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Silhouette returns the mean silhouette coefficient of a labelling. Points
// that are alone in their cluster contribute 0. A labelling with fewer than
// two non-empty clusters scores 0.
func Silhouette(m Matrix, labels []int) float64 {
	n := len(m)
	if n == 0 || len(labels) != n {
		return 0
	}

	k := 0
	for _, l := range labels {
		if l+1 > k {
			k = l + 1
		}
	}
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	nonEmpty := 0
	for _, s := range sizes {
		if s > 0 {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return 0
	}

	sums := make([]float64, k)
	total := 0.0
	for i := range m {
		clear(sums)
		for j := range m {
			if i == j {
				continue
			}
			sums[labels[j]] += floats.Distance(m[i], m[j], 2)
		}

		own := labels[i]
		if sizes[own] <= 1 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)

		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || sizes[c] == 0 {
				continue
			}
			if v := sums[c] / float64(sizes[c]); v < b {
				b = v
			}
		}

		if mx := math.Max(a, b); mx > 0 {
			total += (b - a) / mx
		}
	}

	return total / float64(n)
}
