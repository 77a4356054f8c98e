// Command segment clusters the customers of a sales export from the terminal
// and prints the segment summary and per-customer assignments.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/segmentation"
	"sales-dashboard/internal/services"
)

type options struct {
	file      string
	mode      string
	k         int
	minK      int
	maxK      int
	seed      int64
	restarts  int
	zero      string
	customers bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	def := segmentation.DefaultOptions()

	var o options
	fs := flag.NewFlagSet("segment", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.file, "file", "", "sales CSV or zip of CSVs (required)")
	fs.StringVar(&o.mode, "mode", "auto", "auto or manual")
	fs.IntVar(&o.k, "k", 3, "cluster count in manual mode")
	fs.IntVar(&o.minK, "min-k", segmentation.MinClusters, "smallest k tried in auto mode")
	fs.IntVar(&o.maxK, "max-k", segmentation.MaxClusters, "largest k tried in auto mode")
	fs.Int64Var(&o.seed, "seed", def.Seed, "random seed")
	fs.IntVar(&o.restarts, "restarts", def.Restarts, "k-means restarts")
	fs.StringVar(&o.zero, "zero", "zero", "zero-variance policy: zero or fail")
	fs.BoolVar(&o.customers, "customers", false, "also print every customer's assignment")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.file == "" {
		return o, errors.New("-file is required")
	}
	return o, nil
}

func (o options) segmentationMode() (segmentation.Mode, error) {
	switch o.mode {
	case "auto", "automatic":
		return segmentation.Automatic(o.minK, o.maxK), nil
	case "manual":
		return segmentation.Manual(o.k), nil
	default:
		return segmentation.Mode{}, fmt.Errorf("unknown mode %q, want auto or manual", o.mode)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	mode, err := o.segmentationMode()
	if err != nil {
		return err
	}
	policy, err := segmentation.ParseZeroVariancePolicy(o.zero)
	if err != nil {
		return err
	}

	opts := segmentation.DefaultOptions()
	opts.Seed = o.seed
	opts.Restarts = o.restarts
	opts.ZeroVariance = policy

	sales := services.NewSales(opts)
	summary, err := sales.LoadFromFile(ctx, o.file)
	if err != nil {
		return fmt.Errorf("load %s: %w", o.file, err)
	}
	color.New(color.FgCyan).Fprintf(stdout, "Loaded %d of %d rows from %s\n", summary.RowsKept, summary.RowsRead, summary.Name)

	seg, err := sales.Segment(ctx, services.SalesFilter{}, mode)
	if err != nil {
		return err
	}

	printSegmentation(stdout, seg, o.customers)
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	return table
}

func printSegmentation(w io.Writer, seg *models.Segmentation, withCustomers bool) {
	color.New(color.FgGreen, color.Bold).Fprintf(w, "\n%s mode, k = %d\n", seg.Mode, seg.K)
	fmt.Fprintf(w, "Explained variance: PC1 %.1f%%, PC2 %.1f%%\n", seg.Explained[0]*100, seg.Explained[1]*100)

	if len(seg.Scores) > 0 {
		color.New(color.FgYellow).Fprintln(w, "\nSilhouette scores")
		table := newTable(w)
		table.SetHeader([]string{"k", "Score"})
		for k := segmentation.MinClusters; k <= segmentation.MaxClusters; k++ {
			score, ok := seg.Scores[k]
			if !ok {
				continue
			}
			row := []string{strconv.Itoa(k), fmt.Sprintf("%.4f", score)}
			if k == seg.K {
				row[0] += " *"
			}
			table.Append(row)
		}
		table.Render()
	}

	color.New(color.FgYellow).Fprintln(w, "\nSegments")
	table := newTable(w)
	table.SetHeader([]string{"Cluster", "Customers", "Sales", "Share", "Top products"})
	for _, s := range seg.Segments {
		top := ""
		for i, p := range s.TopProducts {
			if i > 0 {
				top += ", "
			}
			top += fmt.Sprintf("%s (%d)", p.Product, p.Quantity)
		}
		table.Append([]string{
			strconv.Itoa(s.Cluster),
			strconv.Itoa(s.Customers),
			fmt.Sprintf("%.2f", s.Sales),
			fmt.Sprintf("%.1f%%", s.SalesShare),
			top,
		})
	}
	table.Render()

	if !withCustomers {
		return
	}

	color.New(color.FgYellow).Fprintln(w, "\nCustomers")
	table = newTable(w)
	table.SetHeader([]string{"Customer", "Cluster", "Sales", "Orders", "Quantity", "PC1", "PC2"})
	for _, c := range seg.Customers {
		table.Append([]string{
			c.Customer,
			strconv.Itoa(c.Cluster),
			fmt.Sprintf("%.2f", c.Sales),
			strconv.Itoa(c.Orders),
			strconv.Itoa(c.Quantity),
			fmt.Sprintf("%.3f", c.PCA1),
			fmt.Sprintf("%.3f", c.PCA2),
		})
	}
	table.Render()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
