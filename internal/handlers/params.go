package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/segmentation"
	"sales-dashboard/internal/services"
)

// SegmentDefaults fills in segmentation parameters a request leaves out.
type SegmentDefaults struct {
	DefaultK int
	MinK     int
	MaxK     int
}

func queryValues(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// salesFilter reads repeated address and month parameters. Addresses may
// contain commas, so they are never split.
func salesFilter(r *http.Request) (services.SalesFilter, error) {
	var f services.SalesFilter
	for _, a := range r.URL.Query()["address"] {
		if a = strings.TrimSpace(a); a != "" {
			f.Addresses = append(f.Addresses, a)
		}
	}
	for _, v := range queryValues(r, "month") {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return f, errors.Validation(fmt.Sprintf("invalid month %q, must be 1-12", v))
		}
		f.Months = append(f.Months, m)
	}
	return f, nil
}

func assuranceFilter(r *http.Request) services.AssuranceFilter {
	return services.AssuranceFilter{
		Dates:      queryValues(r, "date"),
		Statuses:   queryValues(r, "status"),
		Operations: queryValues(r, "operation"),
		Countries:  queryValues(r, "country"),
		Providers:  queryValues(r, "provider"),
	}
}

// segmentMode reads mode=auto|manual and k. Automatic is the default.
func segmentMode(r *http.Request, d SegmentDefaults) (segmentation.Mode, error) {
	q := r.URL.Query()
	switch strings.ToLower(q.Get("mode")) {
	case "", "auto", "automatic":
		return segmentation.Automatic(d.MinK, d.MaxK), nil
	case "manual":
		k := d.DefaultK
		if v := q.Get("k"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return segmentation.Mode{}, errors.Validation(fmt.Sprintf("invalid k %q", v))
			}
			k = parsed
		}
		mode := segmentation.Manual(k)
		if err := mode.Validate(); err != nil {
			return mode, errors.ValidationWrap(err, err.Error())
		}
		return mode, nil
	default:
		return segmentation.Mode{}, errors.Validation(fmt.Sprintf("invalid mode %q, must be auto or manual", q.Get("mode")))
	}
}

// appError translates domain failures into API errors.
func appError(err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var insufficient *segmentation.InsufficientDataError
	var degenerate *segmentation.DegenerateFeatureError
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &insufficient):
		return errors.InsufficientData(err, insufficient.Error())
	case stderrors.As(err, &degenerate):
		return errors.DegenerateFeature(err, degenerate.Error())
	case stderrors.As(err, &tooLarge):
		return errors.PayloadTooLarge(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
	case stderrors.Is(err, segmentation.ErrInvalidK):
		return errors.ValidationWrap(err, "cluster count out of range")
	case stderrors.Is(err, ingest.ErrEmptyFile),
		stderrors.Is(err, ingest.ErrMissingColumn),
		stderrors.Is(err, ingest.ErrNoCSVInArchive),
		stderrors.Is(err, ingest.ErrUnsupportedFile),
		stderrors.Is(err, ingest.ErrNoValidRows),
		stderrors.Is(err, ingest.ErrBadArchive):
		return errors.ValidationWrap(err, err.Error())
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		appErr := errors.ServiceUnavailable("request cancelled before completion")
		appErr.Cause = err
		return appErr
	default:
		return errors.InternalWrap(err, "request failed")
	}
}
