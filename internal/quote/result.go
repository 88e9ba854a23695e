package quote

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const numberLayout = "20060102-150405"

// Result is a quote prepared for one customer request.
type Result struct {
	Number       string    `json:"quote_number"`
	RequestID    string    `json:"request_id"`
	CustomerName string    `json:"customer_name"`
	CreatedAt    time.Time `json:"created_at"`
	Quote        *Quote    `json:"quote"`
}

// NewResult stamps q with a quote number derived from now and a fresh request id.
func NewResult(customer string, q *Quote, now time.Time) *Result {
	customer = strings.TrimSpace(customer)
	if customer == "" {
		customer = DefaultCustomerName
	}

	return &Result{
		Number:       Number(now),
		RequestID:    uuid.NewString(),
		CustomerName: customer,
		CreatedAt:    now.UTC(),
		Quote:        q,
	}
}

// Number formats a quote number such as QT-20250102-150405.
func Number(t time.Time) string {
	return "QT-" + t.Format(numberLayout)
}

// Summary renders a short plain-text overview of the quote.
func (r *Result) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Quote %s for %s\n", r.Number, r.CustomerName)
	for _, item := range r.Quote.LineItems {
		fmt.Fprintf(&b, "  - %s (Qty: %d) - $%s\n", item.ServiceName, item.Quantity, item.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "Subtotal: $%s\n", r.Quote.Subtotal.StringFixed(2))
	fmt.Fprintf(&b, "Tax (%s%%): $%s\n", r.Quote.TaxRate.Shift(2).String(), r.Quote.Tax.StringFixed(2))
	fmt.Fprintf(&b, "Total: $%s\n", r.Quote.Total.StringFixed(2))

	return b.String()
}
