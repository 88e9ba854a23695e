package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var matchCmd = &cobra.Command{
	Use:   "match <service text>",
	Short: "Show which catalog entry a service request matches",
	Args:  cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runMatch(strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func runMatch(query string) {
	config, logger := setup()
	e := newEngine(context.Background(), config, logger, false)

	best, ok := e.matcher.Best(query)
	if !ok {
		logger.Warn("no match", zap.String("query", query), zap.String("reason", "catalog has no matchable entries"))
		return
	}

	fields := []zap.Field{
		zap.String("query", query),
		zap.String("service", best.Entry.Name),
		zap.Int("row", best.Entry.Row),
		zap.Int("score", best.Score),
		zap.Int("threshold", e.matcher.Threshold()),
	}

	if best.Score < e.matcher.Threshold() {
		logger.Warn("best candidate is below the threshold", fields...)
		return
	}

	logger.Info("matched", append(fields,
		zap.String("unit_price", best.Entry.UnitPrice.StringFixed(2)),
		zap.String("unit", best.Entry.Unit),
	)...)
}
