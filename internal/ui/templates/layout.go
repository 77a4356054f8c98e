// Package templates renders the dashboard pages. The pages are shells: every
// panel is filled in by datastar SSE patches after load.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const (
	datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"
	chartScript    = "https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"
)

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6fa;color:#1f2330}
header{background:#1f2330;color:#fff;padding:1.25rem 2rem}
header h1{margin:0;font-size:1.5rem}
header p{margin:.25rem 0 0;opacity:.75}
nav a{color:#9ecbff;margin-right:1rem}
main{padding:1.5rem 2rem;display:grid;gap:1.5rem}
section{background:#fff;border-radius:8px;padding:1rem 1.25rem;box-shadow:0 1px 3px rgba(0,0,0,.08)}
.kpi-grid{display:grid;grid-template-columns:repeat(auto-fit,minmax(180px,1fr));gap:1rem}
.kpi-card{background:#eef1f8;border-radius:6px;padding:.75rem 1rem;display:flex;flex-direction:column}
.kpi-label{font-size:.8rem;text-transform:uppercase;opacity:.7}
.modern-table{width:100%;border-collapse:collapse}
.modern-table th,.modern-table td{padding:.4rem .6rem;border-bottom:1px solid #e3e6ee;text-align:left}
.category-badge{background:#dbe7ff;border-radius:4px;padding:.1rem .4rem}
.error-banner{background:#fde8e8;color:#9b1c1c;padding:.75rem 1rem;border-radius:6px}
.filters{display:flex;flex-wrap:wrap;gap:1rem;align-items:flex-end}
.filters select{min-width:12rem}
`

// Layout wraps body in the shared page chrome.
func Layout(title, subtitle string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`+
			templ.EscapeString(title)+`</title><style>`+styles+`</style>`+
			`<script type="module" src="`+datastarScript+`"></script>`+
			`<script src="`+chartScript+`"></script></head><body>`+
			`<header><h1>`+templ.EscapeString(title)+`</h1><p>`+templ.EscapeString(subtitle)+`</p>`+
			`<nav><a href="/">Retail sales</a><a href="/assurance">Revenue assurance</a></nav></header><main>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// section writes a titled panel around inner HTML.
func section(w io.Writer, id, title, inner string) error {
	_, err := io.WriteString(w, `<section id="`+id+`-panel"><h2>`+templ.EscapeString(title)+`</h2>`+inner+`</section>`)
	return err
}

func selectMultiple(name, label string, options []string) string {
	html := `<label>` + templ.EscapeString(label) + `<br><select name="` + name + `" multiple size="4">`
	for _, o := range options {
		v := templ.EscapeString(o)
		html += `<option value="` + v + `">` + v + `</option>`
	}
	return html + `</select></label>`
}

// uploadForm posts a file then re-runs the given refresh stream.
func uploadForm(endpoint, accept string) string {
	return `<form class="filters" method="post" enctype="multipart/form-data" action="` + endpoint + `" ` +
		`data-on-submit__prevent="fetch('` + endpoint + `',{method:'POST',body:new FormData(el)}).then(()=>location.reload())">` +
		`<input type="file" name="file" accept="` + accept + `" required><button type="submit">Upload</button></form>`
}
