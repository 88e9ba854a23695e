package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type savedQuote struct {
	File      string    `json:"file"`
	Number    string    `json:"quote_number"`
	Customer  string    `json:"customer_name"`
	CreatedAt time.Time `json:"created_at"`
	LineItems int       `json:"line_items"`
	Total     string    `json:"total"`
}

var quotesCmd = &cobra.Command{
	Use:   "quotes",
	Short: "List quotes saved in the output directory",
	Run: func(_ *cobra.Command, _ []string) {
		runQuotes()
	},
}

func init() {
	rootCmd.AddCommand(quotesCmd)
}

func runQuotes() {
	config, logger := setup()

	quotes, skipped, err := listQuotes(config.OutputDir)
	if err != nil {
		logger.Fatal("listing quotes", zap.Error(err), zap.String("output_dir", config.OutputDir))
	}

	for _, name := range skipped {
		logger.Warn("skipping unreadable quote file", zap.String("file", name))
	}

	pretty, _ := json.MarshalIndent(quotes, "", "  ")
	logger.Info(string(pretty),
		zap.String("output_dir", config.OutputDir),
		zap.Int("quotes", len(quotes)),
	)
}

// listQuotes reads the saved quote files in dir, newest first. Files that do
// not hold a quote are returned in skipped. A missing dir means no quotes.
func listQuotes(dir string) (quotes []savedQuote, skipped []string, err error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, nil, err
	}

	quotes = make([]savedQuote, 0, len(paths))
	for _, path := range paths {
		q, err := readSavedQuote(path)
		if err != nil {
			skipped = append(skipped, filepath.Base(path))
			continue
		}
		quotes = append(quotes, q)
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].CreatedAt.After(quotes[j].CreatedAt)
	})

	return quotes, skipped, nil
}

func readSavedQuote(path string) (savedQuote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return savedQuote{}, err
	}

	var raw struct {
		Number    string    `json:"quote_number"`
		Customer  string    `json:"customer_name"`
		CreatedAt time.Time `json:"created_at"`
		Quote     *struct {
			LineItems []json.RawMessage `json:"line_items"`
			Total     json.Number       `json:"total"`
		} `json:"quote"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return savedQuote{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if strings.TrimSpace(raw.Number) == "" || raw.Quote == nil {
		return savedQuote{}, errors.New("not a quote file")
	}

	return savedQuote{
		File:      filepath.Base(path),
		Number:    raw.Number,
		Customer:  raw.Customer,
		CreatedAt: raw.CreatedAt,
		LineItems: len(raw.Quote.LineItems),
		Total:     raw.Quote.Total.String(),
	}, nil
}
