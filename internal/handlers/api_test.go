package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/segmentation"
	"sales-dashboard/internal/services"
)

func testOrder(id, product string, qty int, price float64, month time.Month, address string) models.Order {
	return models.Order{
		OrderID:         id,
		Product:         product,
		QuantityOrdered: qty,
		PriceEach:       price,
		OrderDate:       time.Date(2019, month, 10, 9, 30, 0, 0, time.UTC),
		PurchaseAddress: address,
		Sales:           float64(qty) * price,
	}
}

func createTestDeps() Dependencies {
	sales := services.NewSales(segmentation.DefaultOptions())
	sales.SetData([]models.Order{
		testOrder("1", "Cable", 1, 10, time.January, "a St"),
		testOrder("1", "Charger", 1, 15, time.January, "a St"),
		testOrder("2", "Cable", 2, 10, time.February, "b St"),
		testOrder("3", "Cable", 1, 12, time.February, "c St"),
		testOrder("4", "Laptop", 3, 700, time.March, "x St"),
		testOrder("5", "Laptop", 3, 1000, time.March, "y St"),
		testOrder("6", "Laptop", 3, 800, time.April, "z St"),
	})

	assurance := services.NewAssurance(nil)
	assurance.SetData([]models.Payment{
		{TransactionID: "T1", Date: "2024-03-01", Amount: 100, HasAmount: true, OperationOrigin: "payment", Status: "SUCCESS", Country: "SN", Provider: "Orange"},
		{TransactionID: "T2", Date: "2024-03-02", Amount: 40, HasAmount: true, OperationOrigin: "transfer", Status: "FAILED", Country: "CI", Provider: "Wave"},
	})

	return Dependencies{
		Sales:          sales,
		Assurance:      assurance,
		Segments:       SegmentDefaults{DefaultK: 3, MinK: 2, MaxK: 10},
		UploadMaxBytes: 1 << 20,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return env
}

func TestNewAPIHandlers(t *testing.T) {
	deps := createTestDeps()
	handlers := NewAPIHandlers(deps)

	if handlers.sales != deps.Sales || handlers.assurance != deps.Assurance {
		t.Error("NewAPIHandlers() should set services")
	}
	if handlers.uploadMax != deps.UploadMaxBytes {
		t.Error("NewAPIHandlers() should set upload limit")
	}
}

func TestAPIHandlers_SalesEndpoints(t *testing.T) {
	handlers := NewAPIHandlers(createTestDeps())

	tests := []struct {
		name    string
		handler http.HandlerFunc
		url     string
	}{
		{"kpis", handlers.HandleSalesKPIs, "/api/sales/kpis"},
		{"monthly", handlers.HandleSalesMonthly, "/api/sales/monthly?month=1&month=2"},
		{"products", handlers.HandleSalesProducts, "/api/sales/products"},
		{"pairs", handlers.HandleSalesPairs, "/api/sales/pairs"},
		{"customers", handlers.HandleSalesCustomers, "/api/sales/customers?address=a+St"},
		{"vision360", handlers.HandleSalesVision360, "/api/sales/vision360"},
		{"preview", handlers.HandleSalesPreview, "/api/sales/preview?limit=3"},
		{"options", handlers.HandleSalesOptions, "/api/sales/options"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if w.Code != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected content-type 'application/json', got %q", ct)
			}
			if w.Header().Get("ETag") == "" {
				t.Error("expected ETag header")
			}
			if env := decode(t, w); !env.Success {
				t.Error("expected success=true in response")
			}
		})
	}
}

func TestAPIHandlers_SalesKPIsFiltered(t *testing.T) {
	handlers := NewAPIHandlers(createTestDeps())

	w := httptest.NewRecorder()
	handlers.HandleSalesKPIs(w, httptest.NewRequest(http.MethodGet, "/api/sales/kpis?month=3,4", nil))

	var kpis models.SalesKPIs
	if err := json.Unmarshal(decode(t, w).Data, &kpis); err != nil {
		t.Fatal(err)
	}
	if kpis.TotalOrders != 3 || kpis.TotalSales != 7500 {
		t.Errorf("unexpected kpis: %+v", kpis)
	}
}

func TestAPIHandlers_NotModified(t *testing.T) {
	handlers := NewAPIHandlers(createTestDeps())

	w := httptest.NewRecorder()
	handlers.HandleSalesKPIs(w, httptest.NewRequest(http.MethodGet, "/api/sales/kpis", nil))
	etag := w.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/api/sales/kpis", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	handlers.HandleSalesKPIs(w, req)

	if w.Code != http.StatusNotModified {
		t.Errorf("expected status %d, got %d", http.StatusNotModified, w.Code)
	}
}

func TestAPIHandlers_SegmentsTaggedWithSourceDataset(t *testing.T) {
	deps := createTestDeps()
	handlers := NewAPIHandlers(deps)
	loaded := deps.Sales.Dataset().ID

	w := httptest.NewRecorder()
	handlers.HandleSalesSegments(w, httptest.NewRequest(http.MethodGet, "/api/sales/segments?mode=manual&k=2", nil))

	var seg models.Segmentation
	if err := json.Unmarshal(decode(t, w).Data, &seg); err != nil {
		t.Fatal(err)
	}
	if seg.DatasetID != loaded {
		t.Errorf("dataset_id = %q, want %q", seg.DatasetID, loaded)
	}
	if got := w.Header().Get("ETag"); got != `"`+seg.DatasetID+`"` {
		t.Errorf("ETag = %s, want the segmented dataset %q", got, seg.DatasetID)
	}
}

func TestAPIHandlers_Dataset(t *testing.T) {
	empty := NewAPIHandlers(Dependencies{
		Sales:     services.NewSales(segmentation.DefaultOptions()),
		Assurance: services.NewAssurance(nil),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	loaded := NewAPIHandlers(createTestDeps())

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{"sales before load", empty.HandleSalesDataset, http.StatusNotFound},
		{"assurance before load", empty.HandleAssuranceDataset, http.StatusNotFound},
		{"sales loaded", loaded.HandleSalesDataset, http.StatusOK},
		{"assurance loaded", loaded.HandleAssuranceDataset, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/api/sales/dataset", nil))

			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, w.Code)
			}
			env := decode(t, w)
			if tt.want == http.StatusNotFound && (env.Error == nil || env.Error.Code != "NOT_FOUND") {
				t.Errorf("expected NOT_FOUND envelope, got %+v", env.Error)
			}
		})
	}
}

func TestAPIHandlers_UploadWithNonFinitePrices(t *testing.T) {
	handlers := NewAPIHandlers(createTestDeps())

	csv := "Order ID,Product,Quantity Ordered,Price Each,Order Date,Purchase Address\n" +
		"1,Gadget,1,NaN,04/19/19 08:46,addr1\n" +
		"2,Gadget,1,Inf,04/19/19 08:47,addr2\n" +
		"3,Cable,2,10,04/19/19 08:48,addr3\n"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "sales.csv")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(csv))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sales/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	handlers.HandleSalesUpload(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	handlers.HandleSalesKPIs(w, httptest.NewRequest(http.MethodGet, "/api/sales/kpis", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("kpis status = %d", w.Code)
	}

	var kpis models.SalesKPIs
	if err := json.Unmarshal(decode(t, w).Data, &kpis); err != nil {
		t.Fatal(err)
	}
	if kpis.TotalOrders != 1 || kpis.TotalSales != 20 {
		t.Errorf("unexpected KPIs after cleaning: %+v", kpis)
	}
}

func TestAPIHandlers_BadParams(t *testing.T) {
	handlers := NewAPIHandlers(createTestDeps())

	tests := []struct {
		name    string
		handler http.HandlerFunc
		url     string
		code    string
	}{
		{"month out of range", handlers.HandleSalesKPIs, "/api/sales/kpis?month=13", "VALIDATION_ERROR"},
		{"month not a number", handlers.HandleSalesMonthly, "/api/sales/monthly?month=jan", "VALIDATION_ERROR"},
		{"preview limit", handlers.HandleSalesPreview, "/api/sales/preview?limit=0", "VALIDATION_ERROR"},
		{"unknown mode", handlers.HandleSalesSegments, "/api/sales/segments?mode=fuzzy", "VALIDATION_ERROR"},
		{"k too large", handlers.HandleSalesSegments, "/api/sales/segments?mode=manual&k=11", "VALIDATION_ERROR"},
		{"k not a number", handlers.HandleSalesSegments, "/api/sales/segments?mode=manual&k=two", "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			env := decode(t, w)
			if env.Success || env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("unexpected error envelope: %+v", env)
			}
		})
	}
}

func TestAPIHandlers_Segments(t *testing.T) {
	handlers := NewAPIHandlers(createTestDeps())

	t.Run("manual", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.HandleSalesSegments(w, httptest.NewRequest(http.MethodGet, "/api/sales/segments?mode=manual&k=2", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var seg models.Segmentation
		if err := json.Unmarshal(decode(t, w).Data, &seg); err != nil {
			t.Fatal(err)
		}
		if seg.K != 2 || len(seg.Customers) != 6 || seg.Mode != "manual" {
			t.Errorf("unexpected segmentation: k=%d customers=%d mode=%s", seg.K, len(seg.Customers), seg.Mode)
		}
	})

	t.Run("automatic", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.HandleSalesSegments(w, httptest.NewRequest(http.MethodGet, "/api/sales/segments", nil))

		var seg models.Segmentation
		if err := json.Unmarshal(decode(t, w).Data, &seg); err != nil {
			t.Fatal(err)
		}
		if seg.Mode != "automatic" || len(seg.Scores) == 0 {
			t.Errorf("unexpected segmentation: mode=%s scores=%v", seg.Mode, seg.Scores)
		}
	})

	t.Run("insufficient data", func(t *testing.T) {
		w := httptest.NewRecorder()
		handlers.HandleSalesSegments(w, httptest.NewRequest(http.MethodGet, "/api/sales/segments?mode=manual&k=3&address=a+St", nil))

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
		}
		if env := decode(t, w); env.Error == nil || env.Error.Code != "INSUFFICIENT_DATA" {
			t.Errorf("unexpected error envelope: %+v", env)
		}
	})
}

func TestAPIHandlers_AssuranceEndpoints(t *testing.T) {
	handlers := NewAPIHandlers(createTestDeps())

	tests := []struct {
		name    string
		handler http.HandlerFunc
		url     string
	}{
		{"kpis", handlers.HandleAssuranceKPIs, "/api/assurance/kpis?status=SUCCESS"},
		{"providers", handlers.HandleAssuranceProviders, "/api/assurance/providers"},
		{"statuses", handlers.HandleAssuranceStatuses, "/api/assurance/statuses"},
		{"countries", handlers.HandleAssuranceCountries, "/api/assurance/countries?provider=Wave"},
		{"options", handlers.HandleAssuranceOptions, "/api/assurance/options"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if w.Code != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
			}
			if env := decode(t, w); !env.Success {
				t.Error("expected success=true in response")
			}
		})
	}

	w := httptest.NewRecorder()
	handlers.HandleAssuranceKPIs(w, httptest.NewRequest(http.MethodGet, "/api/assurance/kpis?status=SUCCESS", nil))
	var kpis models.AssuranceKPIs
	if err := json.Unmarshal(decode(t, w).Data, &kpis); err != nil {
		t.Fatal(err)
	}
	if kpis.Transactions != 1 || kpis.PayinAmount != 100 || kpis.PayoutCount != 0 {
		t.Errorf("unexpected kpis: %+v", kpis)
	}
}

func multipartUpload(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAPIHandlers_SalesUpload(t *testing.T) {
	deps := createTestDeps()
	handlers := NewAPIHandlers(deps)

	csv := "Order ID,Product,Quantity Ordered,Price Each,Order Date,Purchase Address\n" +
		"9,Monitor,1,150,05/01/19 10:00,\"9 Elm St, Boston, MA 02215\"\n"

	w := httptest.NewRecorder()
	handlers.HandleSalesUpload(w, multipartUpload(t, "file", "may.csv", []byte(csv)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var summary models.DatasetSummary
	if err := json.Unmarshal(decode(t, w).Data, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.RowsKept != 1 || summary.Name != "may.csv" || summary.ID == "" {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if got := deps.Sales.KPIs(services.SalesFilter{}).TotalSales; got != 150 {
		t.Errorf("dataset not replaced, total sales = %f", got)
	}
}

func TestAPIHandlers_UploadErrors(t *testing.T) {
	deps := createTestDeps()
	deps.UploadMaxBytes = 512
	handlers := NewAPIHandlers(deps)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"wrong field", multipartUpload(t, "data", "sales.csv", []byte("x")), http.StatusBadRequest},
		{"unsupported type", multipartUpload(t, "file", "sales.xlsx", []byte("x")), http.StatusBadRequest},
		{"missing columns", multipartUpload(t, "file", "sales.csv", []byte("a,b\n1,2\n")), http.StatusBadRequest},
		{"too large", multipartUpload(t, "file", "sales.csv", bytes.Repeat([]byte("x"), 4096)), http.StatusRequestEntityTooLarge},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString("plain")), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.HandleSalesUpload(w, tt.req)

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}

	if deps.Sales.KPIs(services.SalesFilter{}).TotalOrders != 6 {
		t.Error("failed uploads must keep the previous dataset")
	}
}

func TestAPIHandlers_AssuranceUpload(t *testing.T) {
	deps := createTestDeps()
	handlers := NewAPIHandlers(deps)

	csv := "transaction_id,created_at,amount,operation_origin,statut,country,provider_name\n" +
		"N1,2024-04-01 08:00:00,75,transfer,SUCCESS,SN,Wave\n"

	w := httptest.NewRecorder()
	handlers.HandleAssuranceUpload(w, multipartUpload(t, "file", "ra.csv", []byte(csv)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if got := deps.Assurance.KPIs(services.AssuranceFilter{}); got.PayoutAmount != 75 {
		t.Errorf("dataset not replaced: %+v", got)
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(createTestDeps())

	w := httptest.NewRecorder()
	handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var health map[string]string
	if err := json.Unmarshal(decode(t, w).Data, &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %v", health["status"])
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := NewAPIHandlers(createTestDeps())

	w := httptest.NewRecorder()
	handlers.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	var stats map[string]map[string]any
	if err := json.Unmarshal(decode(t, w).Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats["sales"]["orders"] != float64(7) {
		t.Errorf("sales orders = %v, want 7", stats["sales"]["orders"])
	}
	if stats["assurance"]["payments"] != float64(2) {
		t.Errorf("assurance payments = %v, want 2", stats["assurance"]["payments"])
	}
}

func TestFormatMoney(t *testing.T) {
	if got := formatMoney(1234567.5); got != "$1,234,567.50" {
		t.Errorf("formatMoney() = %q", got)
	}
}
