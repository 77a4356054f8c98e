package ingest

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"sales-dashboard/internal/models"
)

const (
	colTransactionID = "transaction_id"
	colCreatedAt     = "created_at"
	colAmount        = "amount"
	colOperation     = "operation_origin"
	colStatus        = "statut"
	colCountry       = "country"
	colProvider      = "provider_name"
)

var paymentColumns = []string{colTransactionID, colCreatedAt, colAmount, colOperation, colStatus, colCountry, colProvider}

// Encoding looks up a supported text encoding by name. Revenue-assurance
// exports default to ISO-8859-1.
func Encoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// LoadPaymentsFile reads a revenue-assurance export from disk.
func LoadPaymentsFile(ctx context.Context, path string, enc encoding.Encoding) ([]models.Payment, Report, error) {
	f, size, err := openFile(path)
	if err != nil {
		return nil, Report{}, err
	}
	defer f.Close()
	return LoadPayments(ctx, path, f, size, enc)
}

// LoadPayments reads a .csv (or .zip of .csv) of payments. Duplicate
// transaction IDs keep their first occurrence across all files.
func LoadPayments(ctx context.Context, name string, r io.ReaderAt, size int64, enc encoding.Encoding) ([]models.Payment, Report, error) {
	srcs, err := sources(name, r, size)
	if err != nil {
		return nil, Report{}, err
	}

	var (
		payments []models.Payment
		report   Report
	)
	for _, src := range srcs {
		rc, err := src.open()
		if err != nil {
			return nil, report, fmt.Errorf("open %s: %w", src.name, err)
		}
		parsed, read, err := ParsePaymentsCSV(ctx, rc, enc)
		rc.Close()
		if err != nil {
			return nil, report, fmt.Errorf("parse %s: %w", src.name, err)
		}
		report.Files = append(report.Files, src.name)
		report.RowsRead += read
		payments = append(payments, parsed...)
	}

	payments = dedupePayments(payments)
	report.RowsKept = len(payments)
	if len(payments) == 0 {
		return nil, report, ErrNoValidRows
	}
	return payments, report, nil
}

// ParsePaymentsCSV decodes r with enc and parses the payments it contains,
// dropping repeated transaction IDs. A non-numeric amount is kept as a
// missing amount rather than dropping the row.
func ParsePaymentsCSV(ctx context.Context, r io.Reader, enc encoding.Encoding) ([]models.Payment, int, error) {
	if enc == nil {
		enc = charmap.ISO8859_1
	}
	reader := newCSVReader(enc.NewDecoder().Reader(r))

	header, err := reader.Read()
	if err == io.EOF {
		return nil, 0, ErrEmptyFile
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header, paymentColumns)
	if err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	read, err := readBatches(ctx, reader, func(batch [][]string) error {
		for _, record := range batch {
			payments = append(payments, parsePayment(record, idx))
		}
		return nil
	})
	if err != nil {
		return nil, read, err
	}
	return dedupePayments(payments), read, nil
}

func parsePayment(record []string, idx map[string]int) models.Payment {
	created := field(record, idx[colCreatedAt])
	date, _, _ := strings.Cut(created, " ")

	p := models.Payment{
		TransactionID:   field(record, idx[colTransactionID]),
		CreatedAt:       created,
		Date:            date,
		OperationOrigin: field(record, idx[colOperation]),
		Status:          field(record, idx[colStatus]),
		Country:         field(record, idx[colCountry]),
		Provider:        field(record, idx[colProvider]),
	}
	if amount, err := strconv.ParseFloat(field(record, idx[colAmount]), 64); err == nil && !math.IsNaN(amount) && !math.IsInf(amount, 0) {
		p.Amount = amount
		p.HasAmount = true
	}
	return p
}

func dedupePayments(payments []models.Payment) []models.Payment {
	seen := make(map[string]struct{}, len(payments))
	out := payments[:0]
	for _, p := range payments {
		if _, dup := seen[p.TransactionID]; dup {
			continue
		}
		seen[p.TransactionID] = struct{}{}
		out = append(out, p)
	}
	return out
}
