package segmentation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ProjectTo2D projects the rows of m onto its first two principal axes.
// Each axis is oriented so its largest-magnitude loading is positive, which
// makes repeated runs agree; consumers must still treat axis sign as
// arbitrary.
func ProjectTo2D(m Matrix) ([]Point, error) {
	points, _, err := project(m)
	return points, err
}

// project also returns the share of total variance carried by each axis.
func project(m Matrix) ([]Point, [2]float64, error) {
	var explained [2]float64

	n, d, err := m.dims()
	if err != nil {
		return nil, explained, err
	}
	if n < 2 {
		return nil, explained, &InsufficientDataError{Rows: n, Required: 2}
	}
	if d < 2 {
		return nil, explained, ErrDecomposition
	}

	x := m.dense()
	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, explained, ErrDecomposition
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	if _, c := vecs.Dims(); c < 2 {
		return nil, explained, ErrDecomposition
	}
	axes := mat.DenseCopyOf(vecs.Slice(0, d, 0, 2))
	orientAxes(axes)

	centered := centerColumns(x)
	var proj mat.Dense
	proj.Mul(centered, axes)

	points := make([]Point, n)
	for i := range points {
		points[i] = Point{PCA1: proj.At(i, 0), PCA2: proj.At(i, 1)}
	}

	vars := pc.VarsTo(nil)
	if total := floats.Sum(vars); total > 0 {
		explained[0] = vars[0] / total
		explained[1] = vars[1] / total
	}

	return points, explained, nil
}

func orientAxes(axes *mat.Dense) {
	r, c := axes.Dims()
	for j := 0; j < c; j++ {
		pivot := 0.0
		for i := 0; i < r; i++ {
			if v := axes.At(i, j); math.Abs(v) > math.Abs(pivot) {
				pivot = v
			}
		}
		if pivot < 0 {
			for i := 0; i < r; i++ {
				axes.Set(i, j, -axes.At(i, j))
			}
		}
	}
}

func centerColumns(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean := stat.Mean(col, nil)
		for i := 0; i < r; i++ {
			out.Set(i, j, col[i]-mean)
		}
	}
	return out
}
