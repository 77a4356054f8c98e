package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sales-dashboard/internal/models"
)

func TestNewSSEHandlers(t *testing.T) {
	deps := createTestDeps()
	handlers := NewSSEHandlers(deps)

	if handlers.sales != deps.Sales || handlers.assurance != deps.Assurance {
		t.Error("NewSSEHandlers() should set services")
	}
	if handlers.logger != deps.Logger {
		t.Error("NewSSEHandlers() should set logger field")
	}
}

func TestRender_Preview(t *testing.T) {
	rows := []models.OrderPreview{{
		OrderID:         "176558",
		Product:         "USB-C <Cable>",
		QuantityOrdered: 2,
		PriceEach:       11.95,
		OrderDate:       time.Date(2019, 4, 19, 8, 46, 0, 0, time.UTC),
		PurchaseAddress: "917 1st St, Dallas, TX 75001",
		Sales:           23.9,
	}}

	html, err := render("preview", rows)
	if err != nil {
		t.Fatalf("render() failed: %v", err)
	}

	expected := []string{
		`<div id="preview-content">`,
		"<th>Order ID</th>",
		"176558",
		"USB-C &lt;Cable&gt;",
		"2019-04-19 08:46",
		"$23.90",
	}
	for _, content := range expected {
		if !strings.Contains(html, content) {
			t.Errorf("expected HTML to contain %q", content)
		}
	}
}

func TestRender_Segments(t *testing.T) {
	seg := &models.Segmentation{
		Mode: "manual",
		K:    2,
		Segments: []models.SegmentSummary{
			{Cluster: 0, Customers: 3, Sales: 57, SalesShare: 0.76, TopProducts: []models.ProductQuantity{{Product: "Cable", Quantity: 4}, {Product: "Charger", Quantity: 1}}},
			{Cluster: 1, Customers: 3, Sales: 7500, SalesShare: 99.24},
		},
	}

	html, err := render("segments", seg)
	if err != nil {
		t.Fatalf("render() failed: %v", err)
	}

	for _, content := range []string{"manual mode, k = 2", "Cluster 1", "99.2%", "Cable (4), Charger (1)", "$7,500.00"} {
		if !strings.Contains(html, content) {
			t.Errorf("expected HTML to contain %q", content)
		}
	}
}

func TestSSEHandlers_Streams(t *testing.T) {
	handlers := NewSSEHandlers(createTestDeps())

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		url      string
		contains []string
	}{
		{
			name:     "sales refresh",
			handler:  handlers.HandleSalesRefresh,
			url:      "/sse/sales/refresh",
			contains: []string{"datastar-patch-elements", "sales-kpis", "preview-content", "datastar-patch-signals", "monthlyData", "visionData"},
		},
		{
			name:     "sales segments",
			handler:  handlers.HandleSalesSegments,
			url:      "/sse/sales/segments?mode=manual&k=2",
			contains: []string{"segments-content", "segmentPoints", "Cluster 0"},
		},
		{
			name:     "segments error",
			handler:  handlers.HandleSalesSegments,
			url:      "/sse/sales/segments?mode=manual&k=3&address=a+St",
			contains: []string{"error-banner", "insufficient data"},
		},
		{
			name:     "bad filter",
			handler:  handlers.HandleSalesRefresh,
			url:      "/sse/sales/refresh?month=0",
			contains: []string{"error-banner", "invalid month"},
		},
		{
			name:     "assurance refresh",
			handler:  handlers.HandleAssuranceRefresh,
			url:      "/sse/assurance/refresh?country=SN",
			contains: []string{"assurance-kpis", "providersData", "countriesData"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if w.Code != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
				t.Errorf("content-type = %q, should contain 'text/event-stream'", ct)
			}

			body := w.Body.String()
			for _, content := range tt.contains {
				if !strings.Contains(body, content) {
					t.Errorf("expected stream to contain %q", content)
				}
			}
		})
	}
}
