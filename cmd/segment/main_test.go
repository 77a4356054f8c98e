package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

const salesCSV = `Order ID,Product,Quantity Ordered,Price Each,Order Date,Purchase Address
1,USB-C Charging Cable,1,11.95,01/03/19 10:00,"1 a St, Dallas, TX 75001"
2,USB-C Charging Cable,2,11.95,01/04/19 10:00,"2 b St, Dallas, TX 75001"
3,Wired Headphones,1,11.99,02/04/19 10:00,"3 c St, Dallas, TX 75001"
4,Macbook Pro Laptop,3,1700,03/04/19 10:00,"4 x St, Boston, MA 02215"
5,ThinkPad Laptop,3,999.99,03/05/19 10:00,"5 y St, Boston, MA 02215"
6,Macbook Pro Laptop,3,1700,04/05/19 10:00,"6 z St, Boston, MA 02215"
`

func writeSales(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(salesCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	color.NoColor = true
	file := writeSales(t)

	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name:     "manual",
			args:     []string{"-file", file, "-mode", "manual", "-k", "2"},
			contains: []string{"Loaded 6 of 6 rows", "manual mode, k = 2", "CLUSTER", "Macbook Pro Laptop (6)"},
		},
		{
			name:     "automatic",
			args:     []string{"-file", file, "-max-k", "4"},
			contains: []string{"automatic mode", "Silhouette scores", "SCORE"},
		},
		{
			name:     "customers",
			args:     []string{"-file", file, "-mode", "manual", "-k", "2", "-customers"},
			contains: []string{"4 x St, Boston, MA 02215", "PC1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(context.Background(), tt.args, &stdout, &stderr); err != nil {
				t.Fatalf("run() failed: %v (stderr %s)", err, stderr.String())
			}
			out := stdout.String()
			for _, content := range tt.contains {
				if !strings.Contains(out, content) {
					t.Errorf("output should contain %q:\n%s", content, out)
				}
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	file := writeSales(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file flag", nil, "-file is required"},
		{"bad mode", []string{"-file", file, "-mode", "fuzzy"}, "unknown mode"},
		{"k out of range", []string{"-file", file, "-mode", "manual", "-k", "11"}, "out of range"},
		{"too few customers", []string{"-file", file, "-mode", "manual", "-k", "7"}, "insufficient data"},
		{"bad policy", []string{"-file", file, "-zero", "maybe"}, "maybe"},
		{"missing input", []string{"-file", filepath.Join(t.TempDir(), "nope.csv")}, "load"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}
