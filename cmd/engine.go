package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/quote-engine/internal/ai"
	"github.com/spigell/quote-engine/internal/ai/gemini"
	"github.com/spigell/quote-engine/internal/catalog"
	"github.com/spigell/quote-engine/internal/logger"
	"github.com/spigell/quote-engine/internal/matching"
	"github.com/spigell/quote-engine/internal/metrics"
	"github.com/spigell/quote-engine/internal/quote"
	"github.com/spigell/quote-engine/internal/secrets"
)

const sampleEmail = `Hi, I need a new furnace installed at my home.
The old one broke down and it's getting cold.
Please send me a quote.

Thanks,
John Smith`

// engine holds everything needed to turn one request into a saved quote.
type engine struct {
	config     *Config
	logger     *zap.Logger
	catalog    *catalog.Catalog
	matcher    *matching.Matcher
	calculator *quote.Calculator
	metrics    *metrics.Metrics
	extractor  ai.Extractor
}

// setup creates the logger and reads the config. Both failures are fatal.
func setup() (*Config, *zap.Logger) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return config, logger
}

// newEngine loads the catalog and wires the calculator. The intent extractor
// is only built when withAI is set; failing to build it is not fatal.
func newEngine(ctx context.Context, config *Config, log *zap.Logger, withAI bool) *engine {
	c, err := catalog.Load(config.Catalog, log)
	if err != nil {
		log.Fatal("loading catalog", zap.Error(err), zap.String("hint", "set 'catalog' in the config file or pass --catalog"))
	}

	m := metrics.New()
	m.ObserveCatalog(c)

	if c.Len() > 0 && len(c.Matchable()) == 0 {
		log.Warn("catalog has no matchable entries, every service will be unmatched")
	}

	taxRate := decimal.NewFromFloat(config.TaxRate)
	if taxRate.IsNegative() {
		log.Warn("negative tax rate ignored", zap.String("tax_rate", taxRate.String()))
		taxRate = quote.DefaultTaxRate
	}

	matcher := matching.New(c, config.MatchThreshold)
	calculator := quote.NewCalculator(matcher,
		quote.WithTaxRate(taxRate),
		quote.WithLogger(log),
		quote.WithObserver(m),
	)

	e := &engine{
		config:     config,
		logger:     log,
		catalog:    c,
		matcher:    matcher,
		calculator: calculator,
		metrics:    m,
	}

	if withAI {
		extractor, err := newExtractor(ctx, config.AI, serviceNames(c), log)
		if err != nil {
			log.Warn("skipping AI intent extraction", zap.Error(err))
		} else {
			e.extractor = extractor
		}
	}

	return e
}

func newExtractor(ctx context.Context, cfg *AIConfig, services []string, log *zap.Logger) (ai.Extractor, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("ai is disabled in the config")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (or set ai.gemini.api-key-file)", err)
	}

	aiLogger := logger.WithAI(log, "gemini", cfg.Gemini.Model).With(
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, aiLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewExtractor(generator, aiLogger, cfg.Gemini.MaxLogLength, services), nil
}

func serviceNames(c *catalog.Catalog) []string {
	entries := c.Matchable()
	names := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if seen[entry.Name] {
			continue
		}
		seen[entry.Name] = true
		names = append(names, entry.Name)
	}
	return names
}

// fromEmail extracts the intent from free text, falling back to the default intent.
func (e *engine) fromEmail(ctx context.Context, text string) *ai.Intent {
	intent, fallback := ai.ExtractOrDefault(ctx, e.extractor, text, e.logger)
	if fallback {
		e.metrics.IntentFallbacks.Inc()
	}
	return intent
}

// fromItems decodes an items document.
func (e *engine) fromItems(data []byte) (*ai.Intent, error) {
	intent, err := ai.ParseIntent(data, e.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing items: %w", err)
	}
	return intent, nil
}

// price quotes intent and logs the summary.
func (e *engine) price(source string, intent *ai.Intent) (*quote.Result, *zap.Logger) {
	q := e.calculator.Calculate(intent.Items)
	result := quote.NewResult(intent.CustomerName, q, time.Now())
	e.metrics.ObserveQuote(q)

	log := logger.WithRequest(e.logger, source, result.Number, result.RequestID, result.CustomerName)

	if unmatched := q.Unmatched(); len(unmatched) > 0 {
		names := make([]string, 0, len(unmatched))
		for _, item := range unmatched {
			names = append(names, item.ServiceName)
		}
		log.Warn("quote contains unmatched services", zap.Strings("services", names))
	}

	log.Info(result.Summary(),
		zap.Int("line_items", len(q.LineItems)),
		zap.String("total", q.Total.StringFixed(2)),
	)

	return result, log
}

// save writes result as indented JSON into the output directory and refreshes
// the metrics textfile. It returns the written path.
func (e *engine) save(result *quote.Result, log *zap.Logger) (string, error) {
	path, err := writeResult(e.config.OutputDir, result)
	if err != nil {
		return "", err
	}

	log.Info("quote saved", zap.String("filename", path))

	if err := e.metrics.WriteTextfile(e.config.MetricsFile); err != nil {
		log.Warn("writing metrics textfile", zap.Error(err), zap.String("path", e.config.MetricsFile))
	}

	return path, nil
}

func writeResult(dir string, result *quote.Result) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal quote: %w", err)
	}

	// Quote numbers have second resolution, so keep earlier files from the same second.
	path := filepath.Join(dir, result.Number+".json")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		path = filepath.Join(dir, result.Number+"-"+result.RequestID[:8]+".json")
		file, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("create quote file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return "", fmt.Errorf("write quote file: %w", err)
	}

	return path, nil
}
