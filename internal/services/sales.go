package services

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/segmentation"
)

const (
	topPairs            = 5
	topSegmentProducts  = 5
	defaultPreviewLimit = 5
)

// Sales holds the current retail dataset. An upload replaces it wholesale;
// every query recomputes from the cleaned orders.
type Sales struct {
	mu       sync.RWMutex
	orders   []models.Order
	dataset  models.DatasetSummary
	loadedAt time.Time
	options  segmentation.Options
	logger   *slog.Logger
}

func NewSales(options segmentation.Options) *Sales {
	return &Sales{
		options: options,
		logger:  slog.Default(),
	}
}

// SetData replaces the dataset with already-cleaned orders.
func (s *Sales) SetData(orders []models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = orders
	s.dataset = models.DatasetSummary{
		ID:       uuid.NewString(),
		RowsRead: len(orders),
		RowsKept: len(orders),
	}
	s.loadedAt = time.Now()
}

// LoadFromFile reads a .csv or .zip export from disk.
func (s *Sales) LoadFromFile(ctx context.Context, path string) (models.DatasetSummary, error) {
	start := time.Now()
	s.logger.Info("processing sales file", "filename", path)

	orders, report, err := ingest.LoadSalesFile(ctx, path)
	if err != nil {
		return models.DatasetSummary{}, fmt.Errorf("load sales: %w", err)
	}
	summary := s.replace(path, orders, report)

	s.logger.Info("sales file loaded",
		"records", report.RowsKept,
		"dropped", report.RowsRead-report.RowsKept,
		"duration", time.Since(start))
	return summary, nil
}

// Load ingests an uploaded .csv or .zip.
func (s *Sales) Load(ctx context.Context, name string, r io.ReaderAt, size int64) (models.DatasetSummary, error) {
	ctx, span := observability.StartSpan(ctx, "sales.load")
	defer span.Finish()
	span.SetTag("file", name)

	orders, report, err := ingest.LoadSales(ctx, name, r, size)
	if err != nil {
		span.SetError(err)
		return models.DatasetSummary{}, fmt.Errorf("load sales: %w", err)
	}
	summary := s.replace(name, orders, report)

	s.logger.Info("sales upload loaded",
		"dataset_id", summary.ID,
		"files", len(report.Files),
		"records", report.RowsKept,
		"request_id", observability.GetRequestID(ctx))
	return summary, nil
}

func (s *Sales) replace(name string, orders []models.Order, report ingest.Report) models.DatasetSummary {
	summary := models.DatasetSummary{
		ID:       uuid.NewString(),
		Name:     name,
		Files:    report.Files,
		RowsRead: report.RowsRead,
		RowsKept: report.RowsKept,
	}

	s.mu.Lock()
	s.orders = orders
	s.dataset = summary
	s.loadedAt = time.Now()
	s.mu.Unlock()

	return summary
}

// snapshot returns the filtered orders together with the dataset they came
// from. The backing slice is never mutated after a load, so callers may read
// it without holding the lock.
func (s *Sales) snapshot(f SalesFilter) ([]models.Order, models.DatasetSummary) {
	s.mu.RLock()
	orders, dataset := s.orders, s.dataset
	s.mu.RUnlock()
	return f.apply(orders), dataset
}

func (s *Sales) Dataset() models.DatasetSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// SalesView is one consistent read of the loaded dataset. Every figure
// computed from a view belongs to view.Dataset, even if an upload replaces
// the data meanwhile.
type SalesView struct {
	Dataset models.DatasetSummary
	orders  []models.Order
}

func (s *Sales) View(f SalesFilter) SalesView {
	orders, dataset := s.snapshot(f)
	return SalesView{Dataset: dataset, orders: orders}
}

func (v SalesView) KPIs() models.SalesKPIs {
	return computeKPIs(v.orders)
}

func (v SalesView) MonthlySales() []models.MonthlySales {
	return monthlySales(v.orders)
}

func (v SalesView) ProductQuantities() []models.ProductQuantity {
	return productQuantities(v.orders)
}

func (v SalesView) ProductPairs() []models.ProductPair {
	return productPairs(v.orders, topPairs)
}

func (v SalesView) Customers() []models.CustomerAggregate {
	return aggregateCustomers(v.orders)
}

func (v SalesView) Vision360() models.Vision360 {
	return vision360(v.orders)
}

func (v SalesView) Preview(limit int) []models.OrderPreview {
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	return preview(v.orders, limit)
}

// Addresses lists the distinct purchase addresses, sorted.
func (v SalesView) Addresses() []string {
	seen := make(map[string]struct{})
	for _, o := range v.orders {
		seen[o.PurchaseAddress] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// Months lists the distinct order months, sorted.
func (v SalesView) Months() []int {
	seen := make(map[int]struct{})
	for _, o := range v.orders {
		seen[o.Month()] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

func (s *Sales) KPIs(f SalesFilter) models.SalesKPIs {
	return s.View(f).KPIs()
}

func (s *Sales) MonthlySales(f SalesFilter) []models.MonthlySales {
	return s.View(f).MonthlySales()
}

func (s *Sales) ProductQuantities(f SalesFilter) []models.ProductQuantity {
	return s.View(f).ProductQuantities()
}

func (s *Sales) ProductPairs(f SalesFilter) []models.ProductPair {
	return s.View(f).ProductPairs()
}

func (s *Sales) Customers(f SalesFilter) []models.CustomerAggregate {
	return s.View(f).Customers()
}

func (s *Sales) Vision360(f SalesFilter) models.Vision360 {
	return s.View(f).Vision360()
}

func (s *Sales) Preview(f SalesFilter, limit int) []models.OrderPreview {
	return s.View(f).Preview(limit)
}

func (s *Sales) Addresses() []string {
	return s.View(SalesFilter{}).Addresses()
}

func (s *Sales) Months() []int {
	return s.View(SalesFilter{}).Months()
}

// Segment clusters the filtered customers and attaches per-segment
// summaries. A failed run returns no partial result.
func (s *Sales) Segment(ctx context.Context, f SalesFilter, mode segmentation.Mode) (*models.Segmentation, error) {
	ctx, span := observability.StartSpan(ctx, "sales.segment")
	defer span.Finish()
	span.SetTag("mode", mode.String())

	orders, dataset := s.snapshot(f)
	customers := aggregateCustomers(orders)

	start := time.Now()
	res, err := segmentation.Run(ctx, segmentation.Features(customers), mode, s.options)
	if err != nil {
		span.SetError(err)
		s.logger.Warn("segmentation failed",
			"mode", mode.String(),
			"customers", len(customers),
			"error", err,
			"request_id", observability.GetRequestID(ctx))
		return nil, fmt.Errorf("segment customers: %w", err)
	}
	span.SetTag("k", strconv.Itoa(res.K))

	s.logger.Info("segmentation complete",
		"mode", mode.String(),
		"k", res.K,
		"customers", len(customers),
		"duration", time.Since(start),
		"request_id", observability.GetRequestID(ctx))

	seg := buildSegmentation(orders, customers, res)
	seg.DatasetID = dataset.ID
	return seg, nil
}

func buildSegmentation(orders []models.Order, customers []models.CustomerAggregate, res *segmentation.Result) *models.Segmentation {
	out := &models.Segmentation{
		Mode:      res.Mode.String(),
		K:         res.K,
		Scores:    res.Scores,
		Explained: res.Explained,
		Customers: make([]models.SegmentedCustomer, len(customers)),
	}

	clusterOf := make(map[string]int, len(customers))
	summaries := make(map[int]*models.SegmentSummary)
	var total float64
	for i, c := range customers {
		label := res.Labels[i]
		out.Customers[i] = models.SegmentedCustomer{
			CustomerAggregate: c,
			Cluster:           label,
			PCA1:              res.Points[i].PCA1,
			PCA2:              res.Points[i].PCA2,
		}
		clusterOf[c.Customer] = label

		sum := summaries[label]
		if sum == nil {
			sum = &models.SegmentSummary{Cluster: label}
			summaries[label] = sum
		}
		sum.Customers++
		sum.Sales += c.Sales
		total += c.Sales
	}

	products := make(map[int]map[string]int)
	for _, o := range orders {
		label := clusterOf[o.PurchaseAddress]
		if products[label] == nil {
			products[label] = make(map[string]int)
		}
		products[label][o.Product] += o.QuantityOrdered
	}

	for label, sum := range summaries {
		if total > 0 {
			sum.SalesShare = 100 * sum.Sales / total
		}
		sum.TopProducts = topQuantities(products[label], topSegmentProducts)
		out.Segments = append(out.Segments, *sum)
	}
	slices.SortFunc(out.Segments, func(a, b models.SegmentSummary) int {
		return cmp.Compare(a.Cluster, b.Cluster)
	})

	return out
}

func (s *Sales) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"dataset_id":  s.dataset.ID,
		"dataset":     s.dataset.Name,
		"orders":      len(s.orders),
		"rows_read":   s.dataset.RowsRead,
		"last_loaded": s.loadedAt,
	}
}
