package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const (
	segmentTimeout  = 60 * time.Second
	uploadTimeout   = 2 * time.Minute
	multipartMemory = 32 << 20
	maxPreviewRows  = 500
)

// Dependencies are shared by the API and SSE handlers.
type Dependencies struct {
	Sales          *services.Sales
	Assurance      *services.Assurance
	Segments       SegmentDefaults
	UploadMaxBytes int64
	Logger         *slog.Logger
}

type APIHandlers struct {
	sales     *services.Sales
	assurance *services.Assurance
	segments  SegmentDefaults
	uploadMax int64
	logger    *slog.Logger
}

func NewAPIHandlers(deps Dependencies) *APIHandlers {
	return &APIHandlers{
		sales:     deps.Sales,
		assurance: deps.Assurance,
		segments:  deps.Segments,
		uploadMax: deps.UploadMaxBytes,
		logger:    deps.Logger,
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, appError(err), observability.GetRequestID(r.Context()))
}

// writeDataset answers with data tagged by the dataset it was computed from.
// A matching If-None-Match gets 304 until the next upload replaces the data.
func writeDataset(w http.ResponseWriter, r *http.Request, datasetID string, data any) {
	headers := map[string]string{"Cache-Control": "no-cache"}
	if datasetID != "" {
		etag := `"` + datasetID + `"`
		if r.Header.Get("If-None-Match") == etag {
			w.Header().Set("ETag", etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		headers["ETag"] = etag
	}
	errors.WriteSuccessWithHeaders(w, data, headers)
}

func (h *APIHandlers) salesQuery(w http.ResponseWriter, r *http.Request, fn func(services.SalesView) any) {
	f, err := salesFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view := h.sales.View(f)
	writeDataset(w, r, view.Dataset.ID, fn(view))
}

func (h *APIHandlers) HandleSalesKPIs(w http.ResponseWriter, r *http.Request) {
	h.salesQuery(w, r, func(v services.SalesView) any { return v.KPIs() })
}

func (h *APIHandlers) HandleSalesMonthly(w http.ResponseWriter, r *http.Request) {
	h.salesQuery(w, r, func(v services.SalesView) any { return v.MonthlySales() })
}

func (h *APIHandlers) HandleSalesProducts(w http.ResponseWriter, r *http.Request) {
	h.salesQuery(w, r, func(v services.SalesView) any { return v.ProductQuantities() })
}

func (h *APIHandlers) HandleSalesPairs(w http.ResponseWriter, r *http.Request) {
	h.salesQuery(w, r, func(v services.SalesView) any { return v.ProductPairs() })
}

func (h *APIHandlers) HandleSalesCustomers(w http.ResponseWriter, r *http.Request) {
	h.salesQuery(w, r, func(v services.SalesView) any { return v.Customers() })
}

func (h *APIHandlers) HandleSalesVision360(w http.ResponseWriter, r *http.Request) {
	h.salesQuery(w, r, func(v services.SalesView) any { return v.Vision360() })
}

func (h *APIHandlers) HandleSalesPreview(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPreviewRows {
			h.fail(w, r, errors.Validation(fmt.Sprintf("invalid limit %q, must be 1-%d", v, maxPreviewRows)))
			return
		}
		limit = n
	}
	h.salesQuery(w, r, func(v services.SalesView) any { return v.Preview(limit) })
}

func (h *APIHandlers) HandleSalesOptions(w http.ResponseWriter, r *http.Request) {
	view := h.sales.View(services.SalesFilter{})
	writeDataset(w, r, view.Dataset.ID, map[string]any{
		"addresses": view.Addresses(),
		"months":    view.Months(),
	})
}

// HandleSalesDataset describes the loaded sales dataset, or 404 before the
// first load.
func (h *APIHandlers) HandleSalesDataset(w http.ResponseWriter, r *http.Request) {
	h.writeSummary(w, r, "sales", h.sales.Dataset())
}

func (h *APIHandlers) HandleAssuranceDataset(w http.ResponseWriter, r *http.Request) {
	h.writeSummary(w, r, "assurance", h.assurance.Dataset())
}

func (h *APIHandlers) writeSummary(w http.ResponseWriter, r *http.Request, kind string, dataset models.DatasetSummary) {
	if dataset.ID == "" {
		h.fail(w, r, errors.NotFound(fmt.Sprintf("no %s dataset loaded", kind)))
		return
	}
	writeDataset(w, r, dataset.ID, dataset)
}

func (h *APIHandlers) HandleSalesSegments(w http.ResponseWriter, r *http.Request) {
	f, err := salesFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	mode, err := segmentMode(r, h.segments)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), segmentTimeout)
	defer cancel()

	seg, err := h.sales.Segment(ctx, f, mode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeDataset(w, r, seg.DatasetID, seg)
}

func (h *APIHandlers) HandleSalesUpload(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, h.sales.Load)
}

func (h *APIHandlers) HandleAssuranceUpload(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, h.assurance.Load)
}

type loadFunc func(ctx context.Context, name string, r io.ReaderAt, size int64) (models.DatasetSummary, error)

func (h *APIHandlers) upload(w http.ResponseWriter, r *http.Request, load loadFunc) {
	file, header, err := h.readUpload(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	summary, err := load(ctx, header.Filename, file, header.Size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, summary)
}

func (h *APIHandlers) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMax)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, errors.PayloadTooLarge(fmt.Sprintf("upload exceeds %d bytes", h.uploadMax))
		}
		return nil, nil, errors.BadRequestWrap(err, "expected a multipart form with a file field")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.BadRequestWrap(err, "missing file field")
	}
	return file, header, nil
}

func (h *APIHandlers) assuranceQuery(w http.ResponseWriter, r *http.Request, fn func(services.AssuranceView) any) {
	view := h.assurance.View(assuranceFilter(r))
	writeDataset(w, r, view.Dataset.ID, fn(view))
}

func (h *APIHandlers) HandleAssuranceKPIs(w http.ResponseWriter, r *http.Request) {
	h.assuranceQuery(w, r, func(v services.AssuranceView) any { return v.KPIs() })
}

func (h *APIHandlers) HandleAssuranceProviders(w http.ResponseWriter, r *http.Request) {
	h.assuranceQuery(w, r, func(v services.AssuranceView) any { return v.ByProvider() })
}

func (h *APIHandlers) HandleAssuranceStatuses(w http.ResponseWriter, r *http.Request) {
	h.assuranceQuery(w, r, func(v services.AssuranceView) any { return v.ByStatus() })
}

func (h *APIHandlers) HandleAssuranceCountries(w http.ResponseWriter, r *http.Request) {
	h.assuranceQuery(w, r, func(v services.AssuranceView) any { return v.ByCountry() })
}

func (h *APIHandlers) HandleAssuranceOptions(w http.ResponseWriter, r *http.Request) {
	view := h.assurance.View(services.AssuranceFilter{})
	writeDataset(w, r, view.Dataset.ID, view.Options())
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]any{
		"sales":     h.sales.Stats(),
		"assurance": h.assurance.Stats(),
	})
}
