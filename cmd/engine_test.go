package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/quote-engine/internal/quote"
)

const testCatalog = `Service Name,Unit Price,Unit,Keywords,Description
Service Call,89.00,Visit,,Diagnostic visit
Furnace Installation,2500.00,Each,,High-efficiency furnace
AC Repair,150.00,Visit,cooling fix,
`

func testEngine(t *testing.T, logger *zap.Logger) *engine {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.csv")
	if err := os.WriteFile(path, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	config := &Config{
		Catalog:        path,
		TaxRate:        0.10,
		MatchThreshold: 60,
		OutputDir:      filepath.Join(dir, "output"),
		MetricsFile:    filepath.Join(dir, "quote-engine.prom"),
		AI:             &AIConfig{Gemini: &GeminiConfig{}},
		Inbox:          &InboxConfig{},
	}

	return newEngine(context.Background(), config, logger, false)
}

func TestHandleRequestItemsFile(t *testing.T) {
	t.Parallel()

	e := testEngine(t, zap.NewNop())

	err := e.handleRequest(context.Background(), "order.json",
		[]byte(`{"customer_name": "John Smith", "items": [{"service_requested": "new furnace installed", "quantity": 1}, {"service_requested": "AC repair needed", "quantity": 2}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(e.config.OutputDir, "QT-*.json"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one saved quote, got %v (%v)", files, err)
	}

	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}

	var saved struct {
		Customer string `json:"customer_name"`
		Quote    struct {
			Total     json.Number `json:"total"`
			LineItems []struct {
				ServiceName string `json:"service_name"`
			} `json:"line_items"`
		} `json:"quote"`
	}
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("invalid quote file: %v", err)
	}

	if saved.Customer != "John Smith" {
		t.Fatalf("unexpected customer: %q", saved.Customer)
	}
	if saved.Quote.Total.String() != "3080.00" {
		t.Fatalf("unexpected total: %s", saved.Quote.Total)
	}
	if len(saved.Quote.LineItems) != 2 || saved.Quote.LineItems[1].ServiceName != "AC Repair" {
		t.Fatalf("unexpected line items: %+v", saved.Quote.LineItems)
	}

	metrics, err := os.ReadFile(e.config.MetricsFile)
	if err != nil {
		t.Fatalf("expected metrics textfile: %v", err)
	}
	if !strings.Contains(string(metrics), "quote_engine_quotes_total 1") {
		t.Fatalf("unexpected metrics:\n%s", metrics)
	}
}

func TestHandleRequestEmailWithoutExtractor(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	e := testEngine(t, zap.New(core))

	if err := e.handleRequest(context.Background(), "mail.txt", []byte("Hi, my furnace is broken. Bob")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if logs.FilterMessageSnippet("default intent").Len() != 1 {
		t.Fatalf("expected a fallback warning, got %v", logs.All())
	}

	files, _ := filepath.Glob(filepath.Join(e.config.OutputDir, "*.json"))
	if len(files) != 1 {
		t.Fatalf("expected one saved quote, got %v", files)
	}

	data, _ := os.ReadFile(files[0])
	if !strings.Contains(string(data), `"service_name": "Service Call"`) || !strings.Contains(string(data), `"total": 97.90`) {
		t.Fatalf("expected default service call quote, got:\n%s", data)
	}
}

func TestHandleRequestRejectsBrokenItems(t *testing.T) {
	t.Parallel()

	e := testEngine(t, zap.NewNop())

	if err := e.handleRequest(context.Background(), "broken.json", []byte("{nope")); err == nil {
		t.Fatal("expected error for broken items file")
	}
}

func TestWriteResultKeepsEarlierQuotes(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	now := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	q := &quote.Quote{}

	first, err := writeResult(dir, quote.NewResult("A", q, now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := writeResult(dir, quote.NewResult("B", q, now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filepath.Base(first) != "QT-20250102-150405.json" {
		t.Fatalf("unexpected first path: %s", first)
	}
	if first == second || !strings.HasPrefix(filepath.Base(second), "QT-20250102-150405-") {
		t.Fatalf("unexpected second path: %s", second)
	}
}

func TestServiceNamesAreUnique(t *testing.T) {
	t.Parallel()

	e := testEngine(t, zap.NewNop())
	names := serviceNames(e.catalog)

	if strings.Join(names, ",") != "Service Call,Furnace Installation,AC Repair" {
		t.Fatalf("unexpected names: %v", names)
	}
}
