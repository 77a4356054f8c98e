// Package segmentation partitions customers into segments: it standardizes
// per-customer features, optionally searches the cluster count by silhouette
// score, fits k-means and projects the result onto two principal axes for
// display. It holds no state between calls and performs no I/O.
package segmentation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"sales-dashboard/internal/models"
)

const (
	MinClusters = 2
	MaxClusters = 10

	// Automatic selection needs at least two points for each of the two
	// smallest candidate clusters.
	minAutomaticRows = 2 * MinClusters
)

// FeatureNames lists the feature columns in matrix order.
var FeatureNames = []string{"sales", "orders", "quantity"}

// Matrix is a dense row-major feature matrix. Row i always corresponds to
// input record i.
type Matrix [][]float64

// Features builds the feature matrix from customer aggregates in the fixed
// column order sales, orders, quantity.
func Features(records []models.CustomerAggregate) Matrix {
	m := make(Matrix, len(records))
	for i, r := range records {
		m[i] = []float64{r.Sales, float64(r.Orders), float64(r.Quantity)}
	}
	return m
}

func (m Matrix) dims() (int, int, error) {
	if len(m) == 0 {
		return 0, 0, &InsufficientDataError{Rows: 0, Required: 1}
	}
	d := len(m[0])
	for _, row := range m {
		if len(row) != d {
			return 0, 0, ErrRaggedMatrix
		}
	}
	return len(m), d, nil
}

func (m Matrix) dense() *mat.Dense {
	n, d := len(m), len(m[0])
	data := make([]float64, 0, n*d)
	for _, row := range m {
		data = append(data, row...)
	}
	return mat.NewDense(n, d, data)
}

// Point is a customer's position on the first two principal axes.
type Point struct {
	PCA1 float64 `json:"pca1"`
	PCA2 float64 `json:"pca2"`
}

type ZeroVariancePolicy int

const (
	// ZeroFill maps a constant column to all zeros.
	ZeroFill ZeroVariancePolicy = iota
	// FailOnZeroVariance rejects a constant column with DegenerateFeatureError.
	FailOnZeroVariance
)

func ParseZeroVariancePolicy(s string) (ZeroVariancePolicy, error) {
	switch s {
	case "", "zero":
		return ZeroFill, nil
	case "fail":
		return FailOnZeroVariance, nil
	default:
		return ZeroFill, fmt.Errorf("unknown zero-variance policy %q", s)
	}
}

func (p ZeroVariancePolicy) String() string {
	if p == FailOnZeroVariance {
		return "fail"
	}
	return "zero"
}

type ModeKind int

const (
	ModeManual ModeKind = iota
	ModeAutomatic
)

// Mode selects how the cluster count is chosen.
type Mode struct {
	Kind ModeKind
	K    int
	MinK int
	MaxK int
}

func Manual(k int) Mode {
	return Mode{Kind: ModeManual, K: k}
}

func Automatic(minK, maxK int) Mode {
	return Mode{Kind: ModeAutomatic, MinK: minK, MaxK: maxK}
}

func (m Mode) Validate() error {
	switch m.Kind {
	case ModeManual:
		if m.K < MinClusters || m.K > MaxClusters {
			return fmt.Errorf("%w: k=%d, must be in [%d, %d]", ErrInvalidK, m.K, MinClusters, MaxClusters)
		}
	case ModeAutomatic:
		if m.MinK < MinClusters || m.MaxK > MaxClusters || m.MinK > m.MaxK {
			return fmt.Errorf("%w: range [%d, %d], must lie within [%d, %d]", ErrInvalidK, m.MinK, m.MaxK, MinClusters, MaxClusters)
		}
	default:
		return fmt.Errorf("unknown segmentation mode %d", m.Kind)
	}
	return nil
}

func (m Mode) String() string {
	if m.Kind == ModeAutomatic {
		return "automatic"
	}
	return "manual"
}

// Options tunes the engine. Zero values fall back to DefaultOptions, except
// Seed which is always used as given.
type Options struct {
	Seed         int64
	Restarts     int
	MaxIter      int
	Tolerance    float64
	ZeroVariance ZeroVariancePolicy
	// MaxSearchRows caps the rows scored during automatic k selection.
	// Zero means no ceiling.
	MaxSearchRows int
	Workers       int
}

func DefaultOptions() Options {
	return Options{
		Seed:      42,
		Restarts:  10,
		MaxIter:   300,
		Tolerance: 1e-4,
		Workers:   4,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Restarts <= 0 {
		o.Restarts = def.Restarts
	}
	if o.MaxIter <= 0 {
		o.MaxIter = def.MaxIter
	}
	if o.Tolerance <= 0 || math.IsNaN(o.Tolerance) {
		o.Tolerance = def.Tolerance
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	if o.MaxSearchRows < 0 {
		o.MaxSearchRows = 0
	}
	return o
}

// Result is the output of one segmentation run. Labels and Points are
// aligned with the input rows.
type Result struct {
	Mode      Mode
	K         int
	Labels    []int
	Points    []Point
	Scores    map[int]float64
	Explained [2]float64
}
