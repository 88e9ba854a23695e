package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/quote-engine/internal/ai"
	"github.com/spigell/quote-engine/internal/inbox"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll an inbox directory and quote every new request file",
	Long: "Files ending in .json are read as items documents, " +
		"anything else is treated as a customer email.",
	Run: func(_ *cobra.Command, _ []string) {
		runWatch()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("inbox", "", "directory with incoming request files")
	watchCmd.Flags().Duration("interval", 0, "poll interval")
	watchCmd.Flags().Duration("settle", 0, "how long a request file must stay unchanged before it is read")

	viper.BindPFlag("inbox.dir", watchCmd.Flags().Lookup("inbox"))
	viper.BindPFlag("inbox.interval", watchCmd.Flags().Lookup("interval"))
	viper.BindPFlag("inbox.settle", watchCmd.Flags().Lookup("settle"))
}

func runWatch() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, logger := setup()
	e := newEngine(ctx, config, logger, true)

	watcher, err := inbox.New(config.Inbox.Dir, config.Inbox.Interval, e.handleRequest, logger,
		inbox.WithSettleDelay(config.Inbox.Settle),
		inbox.WithObserver(pollObserver{e: e}),
	)
	if err != nil {
		logger.Fatal("preparing inbox", zap.Error(err))
	}

	if err := watcher.Run(ctx); err != nil {
		logger.Fatal("watching inbox", zap.Error(err))
	}
}

// handleRequest quotes one inbox file and saves the result.
func (e *engine) handleRequest(ctx context.Context, name string, data []byte) error {
	var intent *ai.Intent
	if strings.EqualFold(filepath.Ext(name), ".json") {
		var err error
		if intent, err = e.fromItems(data); err != nil {
			return err
		}
	} else {
		intent = e.fromEmail(ctx, string(data))
	}

	result, log := e.price(name, intent)
	_, err := e.save(result, log)
	return err
}

// pollObserver exports watcher activity after every poll, including polls
// where every request failed.
type pollObserver struct {
	e *engine
}

func (o pollObserver) ObservePoll(at time.Time, processed, failed int) {
	o.e.metrics.ObservePoll(at, processed, failed)

	if processed > 0 || failed > 0 {
		o.e.logger.Info("inbox poll finished", zap.Int("processed", processed), zap.Int("failed", failed))
	}

	if err := o.e.metrics.WriteTextfile(o.e.config.MetricsFile); err != nil {
		o.e.logger.Warn("writing metrics textfile", zap.Error(err), zap.String("path", o.e.config.MetricsFile))
	}
}
