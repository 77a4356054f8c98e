package services

import (
	"bytes"
	"context"
	"testing"

	"sales-dashboard/internal/models"
)

func testPayments() []models.Payment {
	return []models.Payment{
		{TransactionID: "T1", Date: "2024-03-01", Amount: 100, HasAmount: true, OperationOrigin: "payment", Status: "SUCCESS", Country: "SN", Provider: "Orange"},
		{TransactionID: "T2", Date: "2024-03-01", Amount: 50, HasAmount: true, OperationOrigin: "transfer", Status: "SUCCESS", Country: "CI", Provider: "Wave"},
		{TransactionID: "T3", Date: "2024-03-02", Amount: 25, HasAmount: true, OperationOrigin: "payment", Status: "FAILED", Country: "SN", Provider: "Wave"},
		{TransactionID: "T4", Date: "2024-03-02", OperationOrigin: "payment", Status: "PENDING", Country: "ML", Provider: "Orange"},
		{TransactionID: "T5", Date: "2024-03-03", Amount: 10, HasAmount: true, OperationOrigin: "refund", Status: "SUCCESS", Country: "SN", Provider: "Free"},
	}
}

func newTestAssurance() *Assurance {
	a := NewAssurance(nil)
	a.SetData(testPayments())
	return a
}

func TestAssurance_KPIs(t *testing.T) {
	a := newTestAssurance()
	k := a.KPIs(AssuranceFilter{})

	want := models.AssuranceKPIs{
		Transactions: 5,
		TotalAmount:  185,
		PayinCount:   3,
		PayinAmount:  125,
		PayoutCount:  1,
		PayoutAmount: 50,
	}
	if k != want {
		t.Errorf("KPIs() = %+v, want %+v", k, want)
	}
}

func TestAssurance_Filters(t *testing.T) {
	a := newTestAssurance()

	tests := []struct {
		name   string
		filter AssuranceFilter
		want   int
	}{
		{"none", AssuranceFilter{}, 5},
		{"date", AssuranceFilter{Dates: []string{"2024-03-01"}}, 2},
		{"status", AssuranceFilter{Statuses: []string{"SUCCESS"}}, 3},
		{"operation", AssuranceFilter{Operations: []string{"payment"}}, 3},
		{"country", AssuranceFilter{Countries: []string{"SN", "CI"}}, 4},
		{"provider", AssuranceFilter{Providers: []string{"Wave"}}, 2},
		{"combined", AssuranceFilter{Countries: []string{"SN"}, Statuses: []string{"SUCCESS"}}, 2},
		{"status and provider", AssuranceFilter{Statuses: []string{"FAILED"}, Providers: []string{"Orange"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.KPIs(tt.filter).Transactions; got != tt.want {
				t.Errorf("Transactions = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAssurance_AmountBy(t *testing.T) {
	a := newTestAssurance()

	providers := a.ByProvider(AssuranceFilter{})
	if len(providers) != 3 {
		t.Fatalf("got %d providers, want 3", len(providers))
	}
	if providers[0].Key != "Free" || providers[1].Key != "Orange" || providers[2].Key != "Wave" {
		t.Errorf("providers should be sorted by key: %+v", providers)
	}
	if providers[1].Amount != 100 || providers[1].Transactions != 2 {
		t.Errorf("Orange = %+v, want amount 100 over 2 transactions", providers[1])
	}

	statuses := a.ByStatus(AssuranceFilter{})
	if len(statuses) != 3 {
		t.Errorf("got %d statuses, want 3", len(statuses))
	}

	countries := a.ByCountry(AssuranceFilter{Providers: []string{"Wave"}})
	if len(countries) != 2 || countries[0].Key != "CI" || countries[1].Amount != 25 {
		t.Errorf("unexpected countries: %+v", countries)
	}
}

func TestAssurance_Options(t *testing.T) {
	a := newTestAssurance()
	opts := a.Options()

	if len(opts.Dates) != 3 || opts.Dates[0] != "2024-03-01" {
		t.Errorf("Dates = %v", opts.Dates)
	}
	if len(opts.Operations) != 3 {
		t.Errorf("Operations = %v", opts.Operations)
	}
	if len(opts.Countries) != 3 || len(opts.Providers) != 3 || len(opts.Statuses) != 3 {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestAssurance_Load(t *testing.T) {
	csv := "transaction_id,created_at,amount,operation_origin,statut,country,provider_name\n" +
		"T1,2024-03-01 10:00:00,10,payment,R\xe9ussi,SN,Orange\n" +
		"T1,2024-03-01 10:00:00,10,payment,R\xe9ussi,SN,Orange\n"

	a := NewAssurance(nil)
	data := []byte(csv)
	ds, err := a.Load(context.Background(), "ra.csv", bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ds.RowsRead != 2 || ds.RowsKept != 1 {
		t.Errorf("unexpected summary: %+v", ds)
	}
	if got := a.Options().Statuses; len(got) != 1 || got[0] != "Réussi" {
		t.Errorf("Statuses = %v, want [Réussi]", got)
	}
}

func TestAssurance_EmptyData(t *testing.T) {
	a := NewAssurance(nil)

	if got := a.KPIs(AssuranceFilter{}); got.Transactions != 0 {
		t.Errorf("KPIs() = %+v, want zero", got)
	}
	if got := a.ByProvider(AssuranceFilter{}); len(got) != 0 {
		t.Errorf("ByProvider() should be empty, got %d", len(got))
	}
	if got := a.Stats()["payments"]; got != 0 {
		t.Errorf("Stats payments = %v", got)
	}
}

func TestAssurance_ViewIsConsistentAcrossReplace(t *testing.T) {
	a := newTestAssurance()
	view := a.View(AssuranceFilter{Countries: []string{"SN"}})
	id := view.Dataset.ID

	a.SetData(testPayments()[:1])

	if view.Dataset.ID != id || a.Dataset().ID == id {
		t.Errorf("view dataset %q should outlive the replaced dataset (now %q)", view.Dataset.ID, a.Dataset().ID)
	}
	if got := view.KPIs().Transactions; got != 3 {
		t.Errorf("view transactions = %d, want 3", got)
	}
	if got := len(view.ByProvider()); got != 3 {
		t.Errorf("view providers = %d, want 3", got)
	}
}
