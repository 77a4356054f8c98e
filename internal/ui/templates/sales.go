package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

const salesFilterScript = `new URLSearchParams(new FormData(document.getElementById('sales-filters'))).toString()`

const salesCharts = `<script>
const charts = {};
function draw(id, type, labels, datasets, options) {
  const el = document.getElementById(id);
  if (!el) return;
  if (charts[id]) charts[id].destroy();
  charts[id] = new Chart(el, {type, data: {labels, datasets}, options: options || {}});
}
document.addEventListener('datastar-signal-patch', () => {
  const s = window.ds && window.ds.signals ? window.ds.signals : {};
  if (s.monthlyData) draw('monthly-chart', 'bar', s.monthlyData.map(m => m.month), [{label: 'Sales', data: s.monthlyData.map(m => m.sales)}]);
  if (s.productsData) draw('products-chart', 'bar', s.productsData.map(p => p.product), [{label: 'Quantity', data: s.productsData.map(p => p.quantity)}]);
  if (s.visionData) draw('weekday-chart', 'line', s.visionData.weekdays.map(d => d.weekday), [{label: 'Sales', data: s.visionData.weekdays.map(d => d.sales)}]);
  if (s.segmentPoints) {
    const byCluster = {};
    s.segmentPoints.forEach(p => (byCluster[p.cluster] = byCluster[p.cluster] || []).push({x: p.x, y: p.y}));
    draw('segments-chart', 'scatter', [], Object.entries(byCluster).map(([c, pts]) => ({label: 'Cluster ' + c, data: pts})));
  }
});
</script>`

// SalesDashboard renders the retail page. addresses and months seed the
// filter controls.
func SalesDashboard(addresses []string, months []int) templ.Component {
	monthOptions := make([]string, len(months))
	for i, m := range months {
		monthOptions[i] = strconv.Itoa(m)
	}

	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		refresh := `@get('/sse/sales/refresh?' + ` + salesFilterScript + `)`
		segment := `@get('/sse/sales/segments?' + ` + salesFilterScript + ` + '&mode=' + $segmentMode + '&k=' + $segmentK)`

		panels := []struct{ id, title, inner string }{
			{"upload", "Load sales data", uploadForm("/api/sales/upload", ".csv,.zip")},
			{"filters", "Filters", `<form id="sales-filters" class="filters" data-on-submit__prevent="` + templ.EscapeString(refresh) + `">` +
				selectMultiple("address", "Purchase address", addresses) +
				selectMultiple("month", "Month", monthOptions) +
				`<button type="submit">Apply</button></form>`},
			{"kpis", "Key figures", `<div id="sales-kpis" data-on-load="` + templ.EscapeString(refresh) + `">Loading...</div>`},
			{"monthly", "Monthly sales", `<canvas id="monthly-chart"></canvas>`},
			{"products", "Quantity ordered by product", `<canvas id="products-chart"></canvas>`},
			{"segmentation", "Customer segmentation", `<div class="filters" data-signals="{segmentMode: 'auto', segmentK: 3}">` +
				`<label>Mode<br><select data-bind-segment-mode><option value="auto">Automatic (silhouette)</option><option value="manual">Manual</option></select></label>` +
				`<label>Clusters<br><input type="number" min="2" max="10" data-bind-segment-k></label>` +
				`<button data-on-click="` + templ.EscapeString(segment) + `">Run</button></div>` +
				`<canvas id="segments-chart"></canvas><div id="segments-content"></div>`},
			{"vision", "Vision 360", `<canvas id="weekday-chart"></canvas>`},
			{"preview", "Data preview", `<div id="preview-content"></div>`},
		}
		for _, p := range panels {
			if err := section(w, p.id, p.title, p.inner); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, salesCharts)
		return err
	})

	return Layout("Retail Sales Dashboard", "Sales analysis and customer segmentation", body)
}
