package models

// Payment is one deduplicated revenue-assurance transaction.
type Payment struct {
	TransactionID   string
	CreatedAt       string
	Date            string
	Amount          float64
	HasAmount       bool
	OperationOrigin string
	Status          string
	Country         string
	Provider        string
}

const (
	OperationPayment  = "payment"
	OperationTransfer = "transfer"
)

type AssuranceKPIs struct {
	Transactions int     `json:"transactions"`
	TotalAmount  float64 `json:"total_amount"`
	PayinCount   int     `json:"payin_count"`
	PayinAmount  float64 `json:"payin_amount"`
	PayoutCount  int     `json:"payout_count"`
	PayoutAmount float64 `json:"payout_amount"`
}

type AmountBy struct {
	Key          string  `json:"key"`
	Amount       float64 `json:"amount"`
	Transactions int     `json:"transactions"`
}

type AssuranceOptions struct {
	Dates      []string `json:"dates"`
	Statuses   []string `json:"statuses"`
	Operations []string `json:"operations"`
	Countries  []string `json:"countries"`
	Providers  []string `json:"providers"`
}

// DatasetSummary describes the outcome of an upload.
type DatasetSummary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Files    []string `json:"files"`
	RowsRead int      `json:"rows_read"`
	RowsKept int      `json:"rows_kept"`
}
