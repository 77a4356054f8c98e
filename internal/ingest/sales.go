package ingest

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
)

const orderDateLayout = "01/02/06 15:04"

const (
	colOrderID  = "Order ID"
	colProduct  = "Product"
	colQuantity = "Quantity Ordered"
	colPrice    = "Price Each"
	colDate     = "Order Date"
	colAddress  = "Purchase Address"
)

var salesColumns = []string{colOrderID, colProduct, colQuantity, colPrice, colDate, colAddress}

// LoadSalesFile reads a sales export from disk.
func LoadSalesFile(ctx context.Context, path string) ([]models.Order, Report, error) {
	f, size, err := openFile(path)
	if err != nil {
		return nil, Report{}, err
	}
	defer f.Close()
	return LoadSales(ctx, path, f, size)
}

// LoadSales reads a .csv, or every .csv inside a .zip, and concatenates the
// cleaned orders in file order.
func LoadSales(ctx context.Context, name string, r io.ReaderAt, size int64) ([]models.Order, Report, error) {
	srcs, err := sources(name, r, size)
	if err != nil {
		return nil, Report{}, err
	}

	var (
		orders []models.Order
		report Report
	)
	for _, src := range srcs {
		rc, err := src.open()
		if err != nil {
			return nil, report, fmt.Errorf("open %s: %w", src.name, err)
		}
		parsed, read, err := ParseSalesCSV(ctx, rc)
		rc.Close()
		if err != nil {
			return nil, report, fmt.Errorf("parse %s: %w", src.name, err)
		}
		report.Files = append(report.Files, src.name)
		report.RowsRead += read
		orders = append(orders, parsed...)
	}

	report.RowsKept = len(orders)
	if len(orders) == 0 {
		return nil, report, ErrNoValidRows
	}
	return orders, report, nil
}

// ParseSalesCSV parses one sales CSV. Rows with an empty field, a
// non-numeric quantity or price, or an unparseable date are dropped; this
// also removes header lines repeated inside the data. It returns the kept
// orders and the number of data rows read.
func ParseSalesCSV(ctx context.Context, r io.Reader) ([]models.Order, int, error) {
	reader := newCSVReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, 0, ErrEmptyFile
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header, salesColumns)
	if err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	read, err := readBatches(ctx, reader, func(batch [][]string) error {
		parsed, err := parseOrderBatch(ctx, batch, idx)
		if err != nil {
			return err
		}
		orders = append(orders, parsed...)
		return nil
	})
	if err != nil {
		return nil, read, err
	}
	return orders, read, nil
}

// parseOrderBatch parses a batch concurrently and keeps input order.
func parseOrderBatch(ctx context.Context, batch [][]string, idx map[string]int) ([]models.Order, error) {
	type parsedOrder struct {
		order models.Order
		valid bool
	}
	results := make([]parsedOrder, len(batch))

	var g errgroup.Group
	g.SetLimit(maxWorkers)

	for i, record := range batch {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			order, err := parseOrder(record, idx)
			if err != nil {
				return nil // skip invalid rows
			}
			results[i] = parsedOrder{order: order, valid: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(batch))
	for _, p := range results {
		if p.valid {
			out = append(out, p.order)
		}
	}
	return out, nil
}

func parseOrder(record []string, idx map[string]int) (models.Order, error) {
	values := make(map[string]string, len(salesColumns))
	for _, col := range salesColumns {
		v := field(record, idx[col])
		if v == "" {
			return models.Order{}, fmt.Errorf("empty %s", col)
		}
		values[col] = v
	}

	quantity, err := strconv.Atoi(values[colQuantity])
	if err != nil {
		return models.Order{}, err
	}
	price, err := strconv.ParseFloat(values[colPrice], 64)
	if err != nil {
		return models.Order{}, err
	}
	sales := float64(quantity) * price
	if math.IsNaN(sales) || math.IsInf(sales, 0) {
		return models.Order{}, fmt.Errorf("non-finite %s %q", colPrice, values[colPrice])
	}
	date, err := time.Parse(orderDateLayout, values[colDate])
	if err != nil {
		return models.Order{}, err
	}

	return models.Order{
		OrderID:         values[colOrderID],
		Product:         values[colProduct],
		QuantityOrdered: quantity,
		PriceEach:       price,
		OrderDate:       date,
		PurchaseAddress: values[colAddress],
		Sales:           sales,
	}, nil
}
