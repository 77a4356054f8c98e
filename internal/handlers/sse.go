package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

var fragments = template.Must(template.New("fragments").Funcs(template.FuncMap{
	"money": func(v float64) string { return formatMoney(v) },
}).Parse(`
{{define "salesKPIs"}}<div id="sales-kpis" class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">Total sales</span><strong>{{money .TotalSales}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Orders</span><strong>{{.TotalOrders}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Customers</span><strong>{{.TotalCustomers}}</strong></div>
</div>{{end}}

{{define "preview"}}<div id="preview-content">
<table class="modern-table">
<thead><tr><th>Order ID</th><th>Product</th><th>Qty</th><th>Price</th><th>Date</th><th>Address</th><th>Sales</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.OrderID}}</td>
<td>{{.Product}}</td>
<td>{{.QuantityOrdered}}</td>
<td>{{money .PriceEach}}</td>
<td>{{.OrderDate.Format "2006-01-02 15:04"}}</td>
<td>{{.PurchaseAddress}}</td>
<td><strong>{{money .Sales}}</strong></td>
</tr>{{end}}
</tbody>
</table>
</div>{{end}}

{{define "segments"}}<div id="segments-content">
<p class="segment-meta">{{.Mode}} mode, k = {{.K}}, {{len .Customers}} customers</p>
<table class="modern-table">
<thead><tr><th>Segment</th><th>Customers</th><th>Sales</th><th>Share</th><th>Top products</th></tr></thead>
<tbody>
{{range .Segments}}<tr>
<td><span class="category-badge">Cluster {{.Cluster}}</span></td>
<td>{{.Customers}}</td>
<td><strong>{{money .Sales}}</strong></td>
<td>{{printf "%.1f" .SalesShare}}%</td>
<td>{{range $i, $p := .TopProducts}}{{if $i}}, {{end}}{{$p.Product}} ({{$p.Quantity}}){{end}}</td>
</tr>{{end}}
</tbody>
</table>
</div>{{end}}

{{define "assuranceKPIs"}}<div id="assurance-kpis" class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">Transactions</span><strong>{{.Transactions}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Total amount</span><strong>{{money .TotalAmount}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Payin</span><strong>{{.PayinCount}}</strong><small>{{money .PayinAmount}}</small></div>
<div class="kpi-card"><span class="kpi-label">Payout</span><strong>{{.PayoutCount}}</strong><small>{{money .PayoutAmount}}</small></div>
</div>{{end}}

{{define "error"}}<div id="{{.ID}}" class="error-banner">{{.Message}}</div>{{end}}
`))

type SSEHandlers struct {
	sales     *services.Sales
	assurance *services.Assurance
	segments  SegmentDefaults
	logger    *slog.Logger
}

func NewSSEHandlers(deps Dependencies) *SSEHandlers {
	return &SSEHandlers{
		sales:     deps.Sales,
		assurance: deps.Assurance,
		segments:  deps.Segments,
		logger:    deps.Logger,
	}
}

func render(name string, data any) (string, error) {
	var buf strings.Builder
	err := fragments.ExecuteTemplate(&buf, name, data)
	return buf.String(), err
}

// patchError replaces the element with the given id by an error banner.
func (h *SSEHandlers) patchError(sse *datastar.ServerSentEventGenerator, id string, err error) {
	message := err.Error()
	if appErr, ok := appError(err).(*errors.AppError); ok {
		message = appErr.Message
	}
	html, renderErr := render("error", map[string]string{"ID": id, "Message": message})
	if renderErr != nil {
		h.logger.Error("render error banner", "error", renderErr)
		return
	}
	sse.PatchElements(html)
}

func (h *SSEHandlers) patchSignals(sse *datastar.ServerSentEventGenerator, signals map[string]any) {
	data, err := json.Marshal(signals)
	if err != nil {
		h.logger.Error("marshal signals", "error", err)
		return
	}
	sse.PatchSignals(data)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleSalesRefresh pushes every retail panel except segmentation, which
// has its own stream because it is the slow one.
func (h *SSEHandlers) HandleSalesRefresh(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	f, err := salesFilter(r)
	if err != nil {
		h.patchError(sse, "sales-kpis", err)
		return
	}

	view := h.sales.View(f)

	html, err := render("salesKPIs", view.KPIs())
	if err != nil {
		h.logger.Error("render sales kpis", "error", err)
		return
	}
	sse.PatchElements(html)

	html, err = render("preview", view.Preview(0))
	if err != nil {
		h.logger.Error("render preview", "error", err)
		return
	}
	sse.PatchElements(html)

	h.patchSignals(sse, map[string]any{
		"monthlyData":  view.MonthlySales(),
		"productsData": view.ProductQuantities(),
		"pairsData":    view.ProductPairs(),
		"visionData":   view.Vision360(),
	})

	flush(w)
}

func (h *SSEHandlers) HandleSalesSegments(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	f, err := salesFilter(r)
	if err != nil {
		h.patchError(sse, "segments-content", err)
		return
	}
	mode, err := segmentMode(r, h.segments)
	if err != nil {
		h.patchError(sse, "segments-content", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), segmentTimeout)
	defer cancel()

	seg, err := h.sales.Segment(ctx, f, mode)
	if err != nil {
		h.patchError(sse, "segments-content", err)
		flush(w)
		return
	}

	html, err := render("segments", seg)
	if err != nil {
		h.logger.Error("render segments", "error", err)
		return
	}
	sse.PatchElements(html)

	h.patchSignals(sse, map[string]any{
		"segmentPoints": segmentPoints(seg),
		"segmentScores": seg.Scores,
		"segmentK":      seg.K,
		"explained":     seg.Explained,
	})

	flush(w)
}

type scatterPoint struct {
	Customer string  `json:"customer"`
	Cluster  int     `json:"cluster"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

func segmentPoints(seg *models.Segmentation) []scatterPoint {
	points := make([]scatterPoint, len(seg.Customers))
	for i, c := range seg.Customers {
		points[i] = scatterPoint{Customer: c.Customer, Cluster: c.Cluster, X: c.PCA1, Y: c.PCA2}
	}
	return points
}

func (h *SSEHandlers) HandleAssuranceRefresh(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	view := h.assurance.View(assuranceFilter(r))

	html, err := render("assuranceKPIs", view.KPIs())
	if err != nil {
		h.logger.Error("render assurance kpis", "error", err)
		return
	}
	sse.PatchElements(html)

	h.patchSignals(sse, map[string]any{
		"providersData": view.ByProvider(),
		"statusesData":  view.ByStatus(),
		"countriesData": view.ByCountry(),
	})

	flush(w)
}
