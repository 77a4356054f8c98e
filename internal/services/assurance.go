package services

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"

	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

// AssuranceFilter narrows payments. Each non-empty list is applied on its own
// and an empty list keeps every value.
type AssuranceFilter struct {
	Dates      []string
	Statuses   []string
	Operations []string
	Countries  []string
	Providers  []string
}

func (f AssuranceFilter) apply(payments []models.Payment) []models.Payment {
	dates := toSet(f.Dates)
	statuses := toSet(f.Statuses)
	operations := toSet(f.Operations)
	countries := toSet(f.Countries)
	providers := toSet(f.Providers)

	if dates == nil && statuses == nil && operations == nil && countries == nil && providers == nil {
		return payments
	}

	out := make([]models.Payment, 0, len(payments))
	for _, p := range payments {
		if !matches(dates, p.Date) ||
			!matches(statuses, p.Status) ||
			!matches(operations, p.OperationOrigin) ||
			!matches(countries, p.Country) ||
			!matches(providers, p.Provider) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func matches(set map[string]struct{}, v string) bool {
	if set == nil {
		return true
	}
	_, ok := set[v]
	return ok
}

// Assurance holds the current revenue-assurance dataset.
type Assurance struct {
	mu       sync.RWMutex
	payments []models.Payment
	dataset  models.DatasetSummary
	loadedAt time.Time
	encoding encoding.Encoding
	logger   *slog.Logger
}

// NewAssurance builds a service that decodes uploads with enc. A nil enc
// falls back to ISO-8859-1.
func NewAssurance(enc encoding.Encoding) *Assurance {
	return &Assurance{
		encoding: enc,
		logger:   slog.Default(),
	}
}

func (a *Assurance) SetData(payments []models.Payment) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.payments = payments
	a.dataset = models.DatasetSummary{
		ID:       uuid.NewString(),
		RowsRead: len(payments),
		RowsKept: len(payments),
	}
	a.loadedAt = time.Now()
}

func (a *Assurance) LoadFromFile(ctx context.Context, path string) (models.DatasetSummary, error) {
	start := time.Now()
	a.logger.Info("processing assurance file", "filename", path)

	payments, report, err := ingest.LoadPaymentsFile(ctx, path, a.encoding)
	if err != nil {
		return models.DatasetSummary{}, fmt.Errorf("load payments: %w", err)
	}
	summary := a.replace(path, payments, report)

	a.logger.Info("assurance file loaded",
		"records", report.RowsKept,
		"duplicates", report.RowsRead-report.RowsKept,
		"duration", time.Since(start))
	return summary, nil
}

func (a *Assurance) Load(ctx context.Context, name string, r io.ReaderAt, size int64) (models.DatasetSummary, error) {
	ctx, span := observability.StartSpan(ctx, "assurance.load")
	defer span.Finish()
	span.SetTag("file", name)

	payments, report, err := ingest.LoadPayments(ctx, name, r, size, a.encoding)
	if err != nil {
		span.SetError(err)
		return models.DatasetSummary{}, fmt.Errorf("load payments: %w", err)
	}
	summary := a.replace(name, payments, report)

	a.logger.Info("assurance upload loaded",
		"dataset_id", summary.ID,
		"files", len(report.Files),
		"records", report.RowsKept,
		"request_id", observability.GetRequestID(ctx))
	return summary, nil
}

func (a *Assurance) replace(name string, payments []models.Payment, report ingest.Report) models.DatasetSummary {
	summary := models.DatasetSummary{
		ID:       uuid.NewString(),
		Name:     name,
		Files:    report.Files,
		RowsRead: report.RowsRead,
		RowsKept: report.RowsKept,
	}

	a.mu.Lock()
	a.payments = payments
	a.dataset = summary
	a.loadedAt = time.Now()
	a.mu.Unlock()

	return summary
}

func (a *Assurance) snapshot(f AssuranceFilter) ([]models.Payment, models.DatasetSummary) {
	a.mu.RLock()
	payments, dataset := a.payments, a.dataset
	a.mu.RUnlock()
	return f.apply(payments), dataset
}

func (a *Assurance) Dataset() models.DatasetSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dataset
}

// AssuranceView is one consistent read of the loaded payments and the
// dataset they belong to.
type AssuranceView struct {
	Dataset  models.DatasetSummary
	payments []models.Payment
}

func (a *Assurance) View(f AssuranceFilter) AssuranceView {
	payments, dataset := a.snapshot(f)
	return AssuranceView{Dataset: dataset, payments: payments}
}

// KPIs counts payins (payment operations) and payouts (transfers). Rows
// with a missing amount are counted but contribute nothing to the sums.
func (v AssuranceView) KPIs() models.AssuranceKPIs {
	var k models.AssuranceKPIs
	for _, p := range v.payments {
		k.Transactions++
		if p.HasAmount {
			k.TotalAmount += p.Amount
		}
		switch p.OperationOrigin {
		case models.OperationPayment:
			k.PayinCount++
			if p.HasAmount {
				k.PayinAmount += p.Amount
			}
		case models.OperationTransfer:
			k.PayoutCount++
			if p.HasAmount {
				k.PayoutAmount += p.Amount
			}
		}
	}
	return k
}

func (v AssuranceView) ByProvider() []models.AmountBy {
	return amountBy(v.payments, func(p models.Payment) string { return p.Provider })
}

func (v AssuranceView) ByStatus() []models.AmountBy {
	return amountBy(v.payments, func(p models.Payment) string { return p.Status })
}

func (v AssuranceView) ByCountry() []models.AmountBy {
	return amountBy(v.payments, func(p models.Payment) string { return p.Country })
}

// Options lists the distinct values available to each filter.
func (v AssuranceView) Options() models.AssuranceOptions {
	return models.AssuranceOptions{
		Dates:      distinct(v.payments, func(p models.Payment) string { return p.Date }),
		Statuses:   distinct(v.payments, func(p models.Payment) string { return p.Status }),
		Operations: distinct(v.payments, func(p models.Payment) string { return p.OperationOrigin }),
		Countries:  distinct(v.payments, func(p models.Payment) string { return p.Country }),
		Providers:  distinct(v.payments, func(p models.Payment) string { return p.Provider }),
	}
}

func (a *Assurance) KPIs(f AssuranceFilter) models.AssuranceKPIs {
	return a.View(f).KPIs()
}

func (a *Assurance) ByProvider(f AssuranceFilter) []models.AmountBy {
	return a.View(f).ByProvider()
}

func (a *Assurance) ByStatus(f AssuranceFilter) []models.AmountBy {
	return a.View(f).ByStatus()
}

func (a *Assurance) ByCountry(f AssuranceFilter) []models.AmountBy {
	return a.View(f).ByCountry()
}

func (a *Assurance) Options() models.AssuranceOptions {
	return a.View(AssuranceFilter{}).Options()
}

// amountBy groups payments by key, sorted by key.
func amountBy(payments []models.Payment, key func(models.Payment) string) []models.AmountBy {
	groups := make(map[string]*models.AmountBy)
	for _, p := range payments {
		k := key(p)
		g := groups[k]
		if g == nil {
			g = &models.AmountBy{Key: k}
			groups[k] = g
		}
		g.Transactions++
		if p.HasAmount {
			g.Amount += p.Amount
		}
	}

	result := make([]models.AmountBy, 0, len(groups))
	for _, g := range groups {
		result = append(result, *g)
	}
	slices.SortFunc(result, func(x, y models.AmountBy) int {
		return cmp.Compare(x.Key, y.Key)
	})
	return result
}

func distinct(payments []models.Payment, key func(models.Payment) string) []string {
	seen := make(map[string]struct{})
	for _, p := range payments {
		if k := key(p); k != "" {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (a *Assurance) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]any{
		"dataset_id":  a.dataset.ID,
		"dataset":     a.dataset.Name,
		"payments":    len(a.payments),
		"rows_read":   a.dataset.RowsRead,
		"last_loaded": a.loadedAt,
	}
}
