package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type catalogReportRow struct {
	Row       int    `json:"row"`
	Service   string `json:"service"`
	UnitPrice string `json:"unit_price"`
	Unit      string `json:"unit"`
	Keywords  string `json:"keywords,omitempty"`
	Excluded  string `json:"excluded,omitempty"`
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Validate the pricing catalog and print its entries",
	Run: func(_ *cobra.Command, _ []string) {
		runCatalog()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog() {
	config, logger := setup()
	e := newEngine(context.Background(), config, logger, false)

	entries := e.catalog.Entries()
	report := make([]catalogReportRow, 0, len(entries))
	for _, entry := range entries {
		row := catalogReportRow{
			Row:      entry.Row,
			Service:  entry.Name,
			Unit:     entry.Unit,
			Keywords: entry.Keywords,
			Excluded: entry.Problem,
		}
		if entry.Valid() {
			row.UnitPrice = entry.UnitPrice.StringFixed(2)
		}
		report = append(report, row)
	}

	pretty, _ := json.MarshalIndent(report, "", "  ")
	logger.Info(string(pretty),
		zap.String("path", e.catalog.Path()),
		zap.Int("entries", e.catalog.Len()),
		zap.Int("excluded", e.catalog.Invalid()),
	)
}
