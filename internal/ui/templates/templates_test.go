package templates

import (
	"context"
	"strings"
	"testing"

	"sales-dashboard/internal/models"
)

func TestSalesDashboard(t *testing.T) {
	var buf strings.Builder
	err := SalesDashboard([]string{"917 1st St, Dallas <TX>"}, []int{1, 4}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	body := buf.String()
	expected := []string{
		"<title>Retail Sales Dashboard</title>",
		"Customer segmentation",
		"/sse/sales/refresh",
		"/sse/sales/segments",
		"/api/sales/upload",
		`<option value="4">4</option>`,
		"917 1st St, Dallas &lt;TX&gt;",
	}
	for _, content := range expected {
		if !strings.Contains(body, content) {
			t.Errorf("dashboard should contain %q", content)
		}
	}
}

func TestAssuranceDashboard(t *testing.T) {
	var buf strings.Builder
	opts := models.AssuranceOptions{Providers: []string{"Orange", "Wave"}, Statuses: []string{"Réussi"}}
	if err := AssuranceDashboard(opts).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	body := buf.String()
	for _, content := range []string{"Revenue Assurance Dashboard", "/sse/assurance/refresh", `value="Wave"`, "Réussi", "Amount by provider"} {
		if !strings.Contains(body, content) {
			t.Errorf("dashboard should contain %q", content)
		}
	}
}
