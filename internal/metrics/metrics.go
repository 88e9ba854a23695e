// Package metrics records quoting activity with prometheus collectors.
// The CLI has no HTTP listener, so metrics are exported as a node_exporter
// textfile after each processed request and inbox poll.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spigell/quote-engine/internal/catalog"
	"github.com/spigell/quote-engine/internal/quote"
)

const namespace = "quote_engine"

const (
	ResultMatched   = "matched"
	ResultUnmatched = "unmatched"
	ResultProcessed = "processed"
	ResultFailed    = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	LineItems       *prometheus.CounterVec
	MatchScore      prometheus.Histogram
	Quotes          prometheus.Counter
	QuoteTotal      prometheus.Histogram
	IntentFallbacks prometheus.Counter
	CatalogEntries  *prometheus.GaugeVec
	InboxLastPoll   prometheus.Gauge
	InboxFiles      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		LineItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "line_items_total",
				Help:      "Total number of quoted line items by match result",
			},
			[]string{"result"},
		),
		MatchScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "match_score",
				Help:      "Similarity score of matched line items",
				Buckets:   prometheus.LinearBuckets(60, 10, 5),
			},
		),
		Quotes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quotes_total",
				Help:      "Total number of produced quotes",
			},
		),
		QuoteTotal: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "quote_total_amount",
				Help:      "Quote totals including tax",
				Buckets:   prometheus.ExponentialBuckets(100, 4, 6),
			},
		),
		IntentFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intent_fallbacks_total",
				Help:      "Requests where intent extraction fell back to the default intent",
			},
		),
		CatalogEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_entries",
				Help:      "Loaded catalog entries by state",
			},
			[]string{"state"},
		),
		InboxLastPoll: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inbox_last_poll_timestamp_seconds",
				Help:      "Unix time of the last finished inbox poll",
			},
		),
		InboxFiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inbox_files_total",
				Help:      "Inbox request files by handling result",
			},
			[]string{"result"},
		),
	}
}

// ObserveLineItem implements quote.Observer.
func (m *Metrics) ObserveLineItem(item quote.LineItem) {
	if !item.Matched {
		m.LineItems.WithLabelValues(ResultUnmatched).Inc()
		return
	}

	m.LineItems.WithLabelValues(ResultMatched).Inc()
	m.MatchScore.Observe(float64(item.MatchScore))
}

func (m *Metrics) ObserveQuote(q *quote.Quote) {
	m.Quotes.Inc()
	m.QuoteTotal.Observe(q.Total.InexactFloat64())
}

func (m *Metrics) ObserveCatalog(c *catalog.Catalog) {
	m.CatalogEntries.WithLabelValues("matchable").Set(float64(c.Len() - c.Invalid()))
	m.CatalogEntries.WithLabelValues("excluded").Set(float64(c.Invalid()))
}

// ObservePoll implements inbox.Observer.
func (m *Metrics) ObservePoll(at time.Time, processed, failed int) {
	m.InboxLastPoll.Set(float64(at.Unix()))
	m.InboxFiles.WithLabelValues(ResultProcessed).Add(float64(processed))
	m.InboxFiles.WithLabelValues(ResultFailed).Add(float64(failed))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile dumps the current values in the text exposition format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
