// Package ai defines the intent extraction contract: free-text customer
// requests in, customer name and requested services out.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/quote-engine/internal/quote"
)

// FallbackService is requested when nothing usable could be extracted.
const FallbackService = "Service Call"

var ErrNoItems = errors.New("no requested services found")

// Intent is what the customer asked for.
type Intent struct {
	CustomerName string                `json:"customer_name"`
	Items        []quote.RequestedItem `json:"items"`
}

// Extractor turns an unstructured request into an Intent.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Intent, error)
}

// DefaultIntent is used whenever extraction fails.
func DefaultIntent() *Intent {
	return &Intent{
		CustomerName: quote.DefaultCustomerName,
		Items:        []quote.RequestedItem{{ServiceText: FallbackService, Quantity: 1}},
	}
}

// ExtractOrDefault never fails: any extraction error is logged and replaced
// by DefaultIntent. fallback reports whether that happened.
func ExtractOrDefault(ctx context.Context, extractor Extractor, text string, logger *zap.Logger) (intent *Intent, fallback bool) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if extractor == nil {
		logger.Warn("intent extractor is not configured, using default intent")
		return DefaultIntent(), true
	}

	intent, err := extractor.Extract(ctx, text)
	if err == nil && intent != nil && len(intent.Items) > 0 {
		return intent, false
	}

	if err == nil {
		err = ErrNoItems
	}

	logger.Warn("intent extraction failed, using default intent",
		zap.Error(err),
		zap.String("customer", quote.DefaultCustomerName),
		zap.String("service", FallbackService),
	)

	return DefaultIntent(), true
}

type rawIntent struct {
	CustomerName     string    `mapstructure:"customer_name"`
	ServiceRequested string    `mapstructure:"service_requested"`
	Quantity         any       `mapstructure:"quantity"`
	Items            []rawItem `mapstructure:"items"`
}

// Quantity is left untyped so that one bad value only affects its own item.
type rawItem struct {
	ServiceRequested string `mapstructure:"service_requested"`
	Quantity         any    `mapstructure:"quantity"`
}

// ParseIntent decodes an intent document. Three shapes are accepted:
//
//	{"customer_name": "...", "items": [{"service_requested": "...", "quantity": 1}]}
//	{"customer_name": "...", "service_requested": "...", "quantity": 1}
//	[{"service_requested": "...", "quantity": 1}]
//
// Quantities may be numbers or numeric strings; a missing quantity means 1.
// Fractional quantities are rounded to the nearest unit and unreadable ones
// become 0, both with a warning, so the calculator clamps them. Items without
// service text are dropped.
func ParseIntent(data []byte, logger *zap.Logger) (*Intent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse intent: %w", err)
	}

	var raw rawIntent
	switch v := payload.(type) {
	case []any:
		if err := decode(v, &raw.Items); err != nil {
			return nil, err
		}
	case map[string]any:
		if err := decode(v, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("parse intent: unexpected %T payload", payload)
	}

	if len(raw.Items) == 0 && strings.TrimSpace(raw.ServiceRequested) != "" {
		raw.Items = []rawItem{{ServiceRequested: raw.ServiceRequested, Quantity: raw.Quantity}}
	}

	intent := &Intent{
		CustomerName: strings.TrimSpace(raw.CustomerName),
		Items:        make([]quote.RequestedItem, 0, len(raw.Items)),
	}
	if intent.CustomerName == "" {
		intent.CustomerName = quote.DefaultCustomerName
	}

	for _, item := range raw.Items {
		text := strings.TrimSpace(item.ServiceRequested)
		if text == "" {
			continue
		}
		quantity, err := parseQuantity(item.Quantity)
		if err != nil {
			logger.Warn("unusable quantity, leaving it to the calculator",
				zap.String("service", text),
				zap.Any("quantity", item.Quantity),
				zap.Error(err),
			)
		} else if isFraction(item.Quantity) {
			logger.Warn("fractional quantity rounded",
				zap.String("service", text),
				zap.Any("quantity", item.Quantity),
				zap.Int("rounded", quantity),
			)
		}
		intent.Items = append(intent.Items, quote.RequestedItem{ServiceText: text, Quantity: quantity})
	}

	return intent, nil
}

// parseQuantity accepts numbers and numeric strings. A missing value means 1.
// Fractions are rounded half away from zero.
func parseQuantity(v any) (int, error) {
	f, err := quantityValue(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("quantity %v is out of range", v)
	}
	return int(math.Round(f)), nil
}

func quantityValue(v any) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 1, nil
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 1, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("quantity %q is not a number", val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("quantity of type %T is not a number", v)
	}
}

func isFraction(v any) bool {
	f, err := quantityValue(v)
	return err == nil && f != math.Trunc(f)
}

func decode(input any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode intent: %w", err)
	}
	return nil
}
