package models

import "time"

// Order is one cleaned line of a retail sales export.
type Order struct {
	OrderID         string
	Product         string
	QuantityOrdered int
	PriceEach       float64
	OrderDate       time.Time
	PurchaseAddress string
	Sales           float64
}

func (o Order) Month() int {
	return int(o.OrderDate.Month())
}

func (o Order) Hour() int {
	return o.OrderDate.Hour()
}

type SalesKPIs struct {
	TotalSales     float64 `json:"total_sales"`
	TotalOrders    int     `json:"total_orders"`
	TotalCustomers int     `json:"total_customers"`
}

type MonthlySales struct {
	Month int     `json:"month"`
	Sales float64 `json:"sales"`
}

type ProductQuantity struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type ProductPair struct {
	First  string `json:"first"`
	Second string `json:"second"`
	Count  int    `json:"count"`
}

// CustomerAggregate is one row per distinct purchase address.
type CustomerAggregate struct {
	Customer string  `json:"customer"`
	Sales    float64 `json:"sales"`
	Orders   int     `json:"orders"`
	Quantity int     `json:"quantity"`
}

type SegmentedCustomer struct {
	CustomerAggregate
	Cluster int     `json:"cluster"`
	PCA1    float64 `json:"pca1"`
	PCA2    float64 `json:"pca2"`
}

type SegmentSummary struct {
	Cluster     int               `json:"cluster"`
	Customers   int               `json:"customers"`
	Sales       float64           `json:"sales"`
	SalesShare  float64           `json:"sales_share"`
	TopProducts []ProductQuantity `json:"top_products"`
}

type Segmentation struct {
	DatasetID string              `json:"dataset_id"`
	Mode      string              `json:"mode"`
	K         int                 `json:"k"`
	Scores    map[int]float64     `json:"scores,omitempty"`
	Explained [2]float64          `json:"explained_variance"`
	Customers []SegmentedCustomer `json:"customers"`
	Segments  []SegmentSummary    `json:"segments"`
}

type MonthlyFinance struct {
	Month     int     `json:"month"`
	Revenue   float64 `json:"revenue"`
	Expenses  float64 `json:"expenses"`
	NetProfit float64 `json:"net_profit"`
	Growth    float64 `json:"growth"`
}

type WeekdaySales struct {
	Weekday string  `json:"weekday"`
	Sales   float64 `json:"sales"`
}

type Vision360 struct {
	Revenue     float64          `json:"revenue"`
	Expenses    float64          `json:"expenses"`
	GrossProfit float64          `json:"gross_profit"`
	NetProfit   float64          `json:"net_profit"`
	Monthly     []MonthlyFinance `json:"monthly"`
	Weekdays    []WeekdaySales   `json:"weekdays"`
}

type OrderPreview struct {
	OrderID         string    `json:"order_id"`
	Product         string    `json:"product"`
	QuantityOrdered int       `json:"quantity_ordered"`
	PriceEach       float64   `json:"price_each"`
	OrderDate       time.Time `json:"order_date"`
	PurchaseAddress string    `json:"purchase_address"`
	Sales           float64   `json:"sales"`
}
