package quote

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spigell/quote-engine/internal/catalog"
	"github.com/spigell/quote-engine/internal/matching"
)

// Observer is notified about every line item produced by a Calculator.
type Observer interface {
	ObserveLineItem(item LineItem)
}

// Calculator prices requested items against a catalog.
// It does not mutate shared state, so one Calculator may serve concurrent calls.
type Calculator struct {
	matcher  *matching.Matcher
	taxRate  decimal.Decimal
	logger   *zap.Logger
	observer Observer
}

type Option func(*Calculator)

// WithTaxRate overrides DefaultTaxRate. Negative rates are ignored.
func WithTaxRate(rate decimal.Decimal) Option {
	return func(c *Calculator) {
		if !rate.IsNegative() {
			c.taxRate = rate
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Calculator) {
		c.observer = o
	}
}

func NewCalculator(matcher *matching.Matcher, opts ...Option) *Calculator {
	c := &Calculator{
		matcher: matcher,
		taxRate: DefaultTaxRate,
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Calculator) TaxRate() decimal.Decimal {
	return c.taxRate
}

// Calculate builds a quote in the order items were requested.
// Items with empty text are skipped. Items without a catalog match are
// priced at zero and never cause an error.
func (c *Calculator) Calculate(items []RequestedItem) *Quote {
	q := &Quote{
		LineItems: make([]LineItem, 0, len(items)),
		TaxRate:   c.taxRate,
	}

	subtotal := decimal.Zero
	for i, item := range items {
		text := strings.TrimSpace(item.ServiceText)
		if text == "" {
			c.logger.Debug("skipping requested item without service text", zap.Int("position", i))
			continue
		}

		quantity := item.Quantity
		if quantity < 1 {
			c.logger.Warn("quantity clamped to 1",
				zap.String("service", text),
				zap.Int("requested_quantity", item.Quantity),
			)
			quantity = 1
		}

		line := c.lineItem(text, quantity)
		q.LineItems = append(q.LineItems, line)
		subtotal = subtotal.Add(line.LineTotal)

		if c.observer != nil {
			c.observer.ObserveLineItem(line)
		}
	}

	q.Subtotal = roundCents(subtotal)
	q.Tax = roundCents(q.Subtotal.Mul(c.taxRate))
	q.Total = roundCents(q.Subtotal.Add(q.Tax))

	return q
}

func (c *Calculator) lineItem(text string, quantity int) LineItem {
	match, ok := c.matcher.Match(text)
	if !ok {
		c.logger.Warn("could not match service",
			zap.String("service", text),
			zap.Int("threshold", c.matcher.Threshold()),
		)

		return LineItem{
			ServiceName: text,
			Description: NotFoundDescription,
			Quantity:    quantity,
			UnitPrice:   decimal.Zero,
			Unit:        catalog.DefaultUnit,
			LineTotal:   decimal.Zero,
		}
	}

	entry := match.Entry

	c.logger.Debug("service matched",
		zap.String("service", text),
		zap.String("matched", entry.Name),
		zap.Int("score", match.Score),
	)

	return LineItem{
		ServiceName: entry.Name,
		Description: entry.Description,
		Quantity:    quantity,
		UnitPrice:   entry.UnitPrice,
		Unit:        entry.Unit,
		LineTotal:   roundCents(entry.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))),
		MatchScore:  match.Score,
		Matched:     true,
	}
}
