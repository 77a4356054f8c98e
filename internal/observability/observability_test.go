package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"sales-dashboard/internal/config"
)

func TestNewLoggerTo(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.LoggerConfig
		isJSON bool
	}{
		{"json", config.LoggerConfig{Level: "info", Format: "json"}, true},
		{"text", config.LoggerConfig{Level: "info", Format: "text"}, false},
		{"unknown format falls back to json", config.LoggerConfig{Level: "info", Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewLoggerTo(&buf, tt.cfg).Info("hello", "k", "v")

			var decoded map[string]any
			isJSON := json.Unmarshal(buf.Bytes(), &decoded) == nil
			if isJSON != tt.isJSON {
				t.Errorf("json output = %v, want %v: %s", isJSON, tt.isJSON, buf.String())
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestID(t *testing.T) {
	id := NewRequestID()
	if len(id) != 36 {
		t.Errorf("NewRequestID() = %q, want a uuid", id)
	}

	ctx := WithRequestID(context.Background(), id)
	if got := GetRequestID(ctx); got != id {
		t.Errorf("GetRequestID() = %q, want %q", got, id)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q", got)
	}
}

func TestSpans(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	ctx := WithRequestID(context.Background(), "req-9")
	ctx, parent := StartSpan(ctx, "GET /api/sales/segments")
	_, child := StartSpan(ctx, "sales.segment")

	if child.TraceID != parent.TraceID || child.ParentID != parent.SpanID {
		t.Errorf("child span not linked to parent: %+v", child)
	}

	child.SetTag("k", "3")
	child.SetError(errors.New("insufficient data"))
	child.Finish()
	parent.Finish()

	if child.Status != SpanStatusError || child.Duration == nil {
		t.Errorf("unexpected child span: %+v", child)
	}

	out := buf.String()
	for _, content := range []string{"operation=sales.segment", "tag.k=3", "request_id=req-9", `error="insufficient data"`} {
		if !strings.Contains(out, content) {
			t.Errorf("span log should contain %q: %s", content, out)
		}
	}
}
