package services

import (
	"cmp"
	"slices"
	"time"

	"sales-dashboard/internal/models"
)

const (
	expenseRate   = 0.2
	netProfitRate = 0.8
)

// SalesFilter restricts orders to the listed purchase addresses and months.
// An empty list means no restriction.
type SalesFilter struct {
	Addresses []string
	Months    []int
}

func (f SalesFilter) apply(orders []models.Order) []models.Order {
	if len(f.Addresses) == 0 && len(f.Months) == 0 {
		return orders
	}

	addresses := make(map[string]struct{}, len(f.Addresses))
	for _, a := range f.Addresses {
		addresses[a] = struct{}{}
	}
	months := make(map[int]struct{}, len(f.Months))
	for _, m := range f.Months {
		months[m] = struct{}{}
	}

	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if len(addresses) > 0 {
			if _, ok := addresses[o.PurchaseAddress]; !ok {
				continue
			}
		}
		if len(months) > 0 {
			if _, ok := months[o.Month()]; !ok {
				continue
			}
		}
		out = append(out, o)
	}
	return out
}

func computeKPIs(orders []models.Order) models.SalesKPIs {
	orderIDs := make(map[string]struct{})
	customers := make(map[string]struct{})
	var total float64
	for _, o := range orders {
		total += o.Sales
		orderIDs[o.OrderID] = struct{}{}
		customers[o.PurchaseAddress] = struct{}{}
	}
	return models.SalesKPIs{
		TotalSales:     total,
		TotalOrders:    len(orderIDs),
		TotalCustomers: len(customers),
	}
}

func monthlySales(orders []models.Order) []models.MonthlySales {
	groups := make(map[int]float64)
	for _, o := range orders {
		groups[o.Month()] += o.Sales
	}

	result := make([]models.MonthlySales, 0, len(groups))
	for month, sales := range groups {
		result = append(result, models.MonthlySales{Month: month, Sales: sales})
	}
	slices.SortFunc(result, func(a, b models.MonthlySales) int {
		return cmp.Compare(a.Month, b.Month)
	})
	return result
}

func productQuantities(orders []models.Order) []models.ProductQuantity {
	groups := make(map[string]int)
	for _, o := range orders {
		groups[o.Product] += o.QuantityOrdered
	}
	return sortedQuantities(groups)
}

// sortedQuantities orders products by product name.
func sortedQuantities(groups map[string]int) []models.ProductQuantity {
	result := make([]models.ProductQuantity, 0, len(groups))
	for product, qty := range groups {
		result = append(result, models.ProductQuantity{Product: product, Quantity: qty})
	}
	slices.SortFunc(result, func(a, b models.ProductQuantity) int {
		return cmp.Compare(a.Product, b.Product)
	})
	return result
}

// topQuantities orders products by quantity, largest first, and truncates.
func topQuantities(groups map[string]int, limit int) []models.ProductQuantity {
	result := sortedQuantities(groups)
	slices.SortStableFunc(result, func(a, b models.ProductQuantity) int {
		return cmp.Compare(b.Quantity, a.Quantity)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// productPairs counts pairs of distinct products bought in the same order.
func productPairs(orders []models.Order, limit int) []models.ProductPair {
	baskets := make(map[string]map[string]struct{})
	for _, o := range orders {
		if baskets[o.OrderID] == nil {
			baskets[o.OrderID] = make(map[string]struct{})
		}
		baskets[o.OrderID][o.Product] = struct{}{}
	}

	type pairKey struct{ first, second string }
	counts := make(map[pairKey]int)
	for _, basket := range baskets {
		if len(basket) < 2 {
			continue
		}
		products := make([]string, 0, len(basket))
		for p := range basket {
			products = append(products, p)
		}
		slices.Sort(products)
		for i := 0; i < len(products); i++ {
			for j := i + 1; j < len(products); j++ {
				counts[pairKey{products[i], products[j]}]++
			}
		}
	}

	result := make([]models.ProductPair, 0, len(counts))
	for k, c := range counts {
		result = append(result, models.ProductPair{First: k.first, Second: k.second, Count: c})
	}
	slices.SortFunc(result, func(a, b models.ProductPair) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(a.First, b.First); c != 0 {
			return c
		}
		return cmp.Compare(a.Second, b.Second)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// aggregateCustomers builds one record per purchase address, sorted by
// address so row order is stable between calls.
func aggregateCustomers(orders []models.Order) []models.CustomerAggregate {
	type acc struct {
		sales    float64
		quantity int
		orders   map[string]struct{}
	}
	groups := make(map[string]*acc)
	for _, o := range orders {
		g := groups[o.PurchaseAddress]
		if g == nil {
			g = &acc{orders: make(map[string]struct{})}
			groups[o.PurchaseAddress] = g
		}
		g.sales += o.Sales
		g.quantity += o.QuantityOrdered
		g.orders[o.OrderID] = struct{}{}
	}

	result := make([]models.CustomerAggregate, 0, len(groups))
	for address, g := range groups {
		result = append(result, models.CustomerAggregate{
			Customer: address,
			Sales:    g.sales,
			Orders:   len(g.orders),
			Quantity: g.quantity,
		})
	}
	slices.SortFunc(result, func(a, b models.CustomerAggregate) int {
		return cmp.Compare(a.Customer, b.Customer)
	})
	return result
}

func vision360(orders []models.Order) models.Vision360 {
	var revenue float64
	for _, o := range orders {
		revenue += o.Sales
	}
	expenses := revenue * expenseRate
	gross := revenue - expenses

	monthly := monthlySales(orders)
	finance := make([]models.MonthlyFinance, len(monthly))
	for i, m := range monthly {
		exp := m.Sales * expenseRate
		finance[i] = models.MonthlyFinance{
			Month:     m.Month,
			Revenue:   m.Sales,
			Expenses:  exp,
			NetProfit: m.Sales - exp,
		}
		if i > 0 && monthly[i-1].Sales != 0 {
			prev := monthly[i-1].Sales
			finance[i].Growth = (m.Sales - prev) / prev * 100
		}
	}

	return models.Vision360{
		Revenue:     revenue,
		Expenses:    expenses,
		GrossProfit: gross,
		NetProfit:   gross * netProfitRate,
		Monthly:     finance,
		Weekdays:    weekdaySales(orders),
	}
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// weekdaySales sums sales per weekday, Monday first, omitting days with no
// orders.
func weekdaySales(orders []models.Order) []models.WeekdaySales {
	groups := make(map[time.Weekday]float64)
	seen := make(map[time.Weekday]bool)
	for _, o := range orders {
		d := o.OrderDate.Weekday()
		groups[d] += o.Sales
		seen[d] = true
	}

	result := make([]models.WeekdaySales, 0, len(groups))
	for _, d := range weekdayOrder {
		if seen[d] {
			result = append(result, models.WeekdaySales{Weekday: d.String(), Sales: groups[d]})
		}
	}
	return result
}

func preview(orders []models.Order, limit int) []models.OrderPreview {
	n := min(limit, len(orders))
	result := make([]models.OrderPreview, n)
	for i := 0; i < n; i++ {
		o := orders[i]
		result[i] = models.OrderPreview{
			OrderID:         o.OrderID,
			Product:         o.Product,
			QuantityOrdered: o.QuantityOrdered,
			PriceEach:       o.PriceEach,
			OrderDate:       o.OrderDate,
			PurchaseAddress: o.PurchaseAddress,
			Sales:           o.Sales,
		}
	}
	return result
}
