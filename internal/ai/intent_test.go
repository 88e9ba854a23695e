package ai

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/quote-engine/internal/quote"
)

func TestParseIntent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		customer string
		items    []quote.RequestedItem
		warnings int
	}{
		{
			name:     "multi item",
			input:    `{"customer_name": "John Smith", "items": [{"service_requested": "Furnace Installation", "quantity": 1}, {"service_requested": "AC Repair", "quantity": "2"}]}`,
			customer: "John Smith",
			items: []quote.RequestedItem{
				{ServiceText: "Furnace Installation", Quantity: 1},
				{ServiceText: "AC Repair", Quantity: 2},
			},
		},
		{
			name:     "single item",
			input:    `{"customer_name": "Jane", "service_requested": "Thermostat Installation", "quantity": 3}`,
			customer: "Jane",
			items:    []quote.RequestedItem{{ServiceText: "Thermostat Installation", Quantity: 3}},
		},
		{
			name:     "bare array with defaults",
			input:    `[{"service_requested": " Duct Cleaning "}, {"service_requested": ""}]`,
			customer: quote.DefaultCustomerName,
			items:    []quote.RequestedItem{{ServiceText: "Duct Cleaning", Quantity: 1}},
		},
		{
			name:     "fractional and unreadable quantities stay per item",
			input:    `{"customer_name": "Ann", "items": [{"service_requested": "AC Repair", "quantity": 2.7}, {"service_requested": "Duct Cleaning", "quantity": "2.5"}, {"service_requested": "Thermostat", "quantity": "two"}, {"service_requested": "Service Call", "quantity": -1}, {"service_requested": "Filter", "quantity": 0.5}]}`,
			customer: "Ann",
			items: []quote.RequestedItem{
				{ServiceText: "AC Repair", Quantity: 3},
				{ServiceText: "Duct Cleaning", Quantity: 3},
				{ServiceText: "Thermostat", Quantity: 0},
				{ServiceText: "Service Call", Quantity: -1},
				{ServiceText: "Filter", Quantity: 1},
			},
			warnings: 4,
		},
		{
			name:     "null customer",
			input:    `{"customer_name": null, "items": []}`,
			customer: quote.DefaultCustomerName,
			items:    []quote.RequestedItem{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, observed := observer.New(zapcore.WarnLevel)
			intent, err := ParseIntent([]byte(tt.input), zap.New(core))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if observed.Len() != tt.warnings {
				t.Fatalf("expected %d warnings, got %v", tt.warnings, observed.All())
			}

			if intent.CustomerName != tt.customer {
				t.Fatalf("expected customer %q, got %q", tt.customer, intent.CustomerName)
			}

			if len(intent.Items) != len(tt.items) {
				t.Fatalf("expected %d items, got %+v", len(tt.items), intent.Items)
			}
			for i, item := range tt.items {
				if intent.Items[i] != item {
					t.Fatalf("item %d: expected %+v, got %+v", i, item, intent.Items[i])
				}
			}
		})
	}
}

func TestParseIntentErrors(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		`not json`,
		`"just a string"`,
		`{"items": "AC Repair"}`,
	} {
		if _, err := ParseIntent([]byte(input), nil); err == nil {
			t.Fatalf("expected error for %s", input)
		}
	}
}

type stubExtractor struct {
	intent *Intent
	err    error
}

func (s *stubExtractor) Extract(context.Context, string) (*Intent, error) {
	return s.intent, s.err
}

func TestExtractOrDefault(t *testing.T) {
	t.Parallel()

	good := &Intent{CustomerName: "John", Items: []quote.RequestedItem{{ServiceText: "AC Repair", Quantity: 1}}}

	tests := []struct {
		name      string
		extractor Extractor
		fallback  bool
	}{
		{name: "success", extractor: &stubExtractor{intent: good}, fallback: false},
		{name: "error", extractor: &stubExtractor{err: errors.New("boom")}, fallback: true},
		{name: "no items", extractor: &stubExtractor{intent: &Intent{CustomerName: "John"}}, fallback: true},
		{name: "nil extractor", extractor: nil, fallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, observed := observer.New(zapcore.WarnLevel)
			intent, fallback := ExtractOrDefault(context.Background(), tt.extractor, "email", zap.New(core))

			if fallback != tt.fallback {
				t.Fatalf("expected fallback=%v, got %v", tt.fallback, fallback)
			}

			if !tt.fallback {
				if intent != good {
					t.Fatalf("expected extractor intent to be returned")
				}
				return
			}

			if intent.CustomerName != quote.DefaultCustomerName {
				t.Fatalf("unexpected default customer: %q", intent.CustomerName)
			}
			if len(intent.Items) != 1 || intent.Items[0].ServiceText != FallbackService || intent.Items[0].Quantity != 1 {
				t.Fatalf("unexpected default items: %+v", intent.Items)
			}
			if observed.Len() != 1 {
				t.Fatalf("expected one warning, got %d", observed.Len())
			}
		})
	}
}
