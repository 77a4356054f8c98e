package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"sales-dashboard/internal/models"
)

const assuranceCharts = `<script>
const charts = {};
function draw(id, labels, data) {
  const el = document.getElementById(id);
  if (!el) return;
  if (charts[id]) charts[id].destroy();
  charts[id] = new Chart(el, {type: 'bar', data: {labels, datasets: [{label: 'Amount', data}]}});
}
document.addEventListener('datastar-signal-patch', () => {
  const s = window.ds && window.ds.signals ? window.ds.signals : {};
  for (const [key, id] of [['providersData', 'providers-chart'], ['statusesData', 'statuses-chart'], ['countriesData', 'countries-chart']]) {
    if (s[key]) draw(id, s[key].map(r => r.key), s[key].map(r => r.amount));
  }
});
</script>`

// AssuranceDashboard renders the revenue-assurance page with filter
// controls for every option in opts.
func AssuranceDashboard(opts models.AssuranceOptions) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		refresh := `@get('/sse/assurance/refresh?' + new URLSearchParams(new FormData(document.getElementById('assurance-filters'))).toString())`

		panels := []struct{ id, title, inner string }{
			{"upload", "Load transactions", uploadForm("/api/assurance/upload", ".csv,.zip")},
			{"filters", "Filters", `<form id="assurance-filters" class="filters" data-on-submit__prevent="` + templ.EscapeString(refresh) + `">` +
				selectMultiple("date", "Date", opts.Dates) +
				selectMultiple("status", "Status", opts.Statuses) +
				selectMultiple("operation", "Operation", opts.Operations) +
				selectMultiple("country", "Country", opts.Countries) +
				selectMultiple("provider", "Provider", opts.Providers) +
				`<button type="submit">Apply</button></form>`},
			{"kpis", "Key figures", `<div id="assurance-kpis" data-on-load="` + templ.EscapeString(refresh) + `">Loading...</div>`},
			{"providers", "Amount by provider", `<canvas id="providers-chart"></canvas>`},
			{"statuses", "Amount by status", `<canvas id="statuses-chart"></canvas>`},
			{"countries", "Amount by country", `<canvas id="countries-chart"></canvas>`},
		}
		for _, p := range panels {
			if err := section(w, p.id, p.title, p.inner); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, assuranceCharts)
		return err
	})

	return Layout("Revenue Assurance Dashboard", "Payin and payout monitoring", body)
}
