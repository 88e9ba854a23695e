package quote

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	DefaultCustomerName = "Customer"
	NotFoundDescription = "Service not found in pricing database"
)

// DefaultTaxRate is 10%.
var DefaultTaxRate = decimal.RequireFromString("0.10")

// RequestedItem is one service asked for by the customer.
type RequestedItem struct {
	ServiceText string `json:"service_requested" mapstructure:"service_requested"`
	Quantity    int    `json:"quantity" mapstructure:"quantity"`
}

// LineItem is one priced row of a quote.
type LineItem struct {
	ServiceName string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Unit        string
	LineTotal   decimal.Decimal
	MatchScore  int
	Matched     bool
}

// Quote aggregates line items. Monetary fields are rounded to cents.
type Quote struct {
	LineItems []LineItem
	Subtotal  decimal.Decimal
	TaxRate   decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
}

// Unmatched returns the line items that were not found in the catalog.
func (q *Quote) Unmatched() []LineItem {
	var out []LineItem
	for _, item := range q.LineItems {
		if !item.Matched {
			out = append(out, item)
		}
	}
	return out
}

type lineItemJSON struct {
	ServiceName string          `json:"service_name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   json.RawMessage `json:"unit_price"`
	Unit        string          `json:"unit"`
	LineTotal   json.RawMessage `json:"line_total"`
	MatchScore  int             `json:"match_score"`
}

type quoteJSON struct {
	LineItems []lineItemJSON  `json:"line_items"`
	Subtotal  json.RawMessage `json:"subtotal"`
	Tax       json.RawMessage `json:"tax"`
	TaxRate   json.RawMessage `json:"tax_rate"`
	Total     json.RawMessage `json:"total"`
}

// MarshalJSON renders amounts as JSON numbers with two decimals.
func (q Quote) MarshalJSON() ([]byte, error) {
	out := quoteJSON{
		LineItems: make([]lineItemJSON, 0, len(q.LineItems)),
		Subtotal:  money(q.Subtotal),
		Tax:       money(q.Tax),
		TaxRate:   json.RawMessage(q.TaxRate.String()),
		Total:     money(q.Total),
	}

	for _, item := range q.LineItems {
		out.LineItems = append(out.LineItems, lineItemJSON{
			ServiceName: item.ServiceName,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   money(item.UnitPrice),
			Unit:        item.Unit,
			LineTotal:   money(item.LineTotal),
			MatchScore:  item.MatchScore,
		})
	}

	return json.Marshal(out)
}

func money(d decimal.Decimal) json.RawMessage {
	return json.RawMessage(d.StringFixed(2))
}

// roundCents rounds half away from zero, which is half-up for the
// non-negative amounts a quote carries.
func roundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
