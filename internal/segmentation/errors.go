package segmentation

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidK      = errors.New("cluster count out of range")
	ErrRaggedMatrix  = errors.New("feature matrix rows have different widths")
	ErrDecomposition = errors.New("principal component decomposition failed")
)

// InsufficientDataError reports that there are fewer rows than the requested
// (or smallest candidate) cluster count needs.
type InsufficientDataError struct {
	Rows     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d rows, at least %d required", e.Rows, e.Required)
}

// DegenerateFeatureError reports a feature column with zero variance when the
// standardization policy is FailOnZeroVariance.
type DegenerateFeatureError struct {
	Column int
	Name   string
}

func (e *DegenerateFeatureError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("degenerate feature: column %d (%s) has zero variance", e.Column, e.Name)
	}
	return fmt.Sprintf("degenerate feature: column %d has zero variance", e.Column)
}
