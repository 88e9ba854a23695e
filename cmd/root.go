package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/quote-engine/internal/matching"
)

const (
	app       = "quote-engine"
	envPrefix = "QUOTE_ENGINE"
)

type Config struct {
	Catalog        string       `mapstructure:"catalog"`
	TaxRate        float64      `mapstructure:"tax-rate"`
	MatchThreshold int          `mapstructure:"match-threshold"`
	OutputDir      string       `mapstructure:"output-dir"`
	MetricsFile    string       `mapstructure:"metrics-file"`
	AI             *AIConfig    `mapstructure:"ai"`
	Inbox          *InboxConfig `mapstructure:"inbox"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type InboxConfig struct {
	Dir      string        `mapstructure:"dir"`
	Interval time.Duration `mapstructure:"interval"`
	Settle   time.Duration `mapstructure:"settle"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "quote-engine turns customer service requests into priced quotes",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	setDefaults()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is quote-engine.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("catalog", "c", "", "path to the pricing catalog CSV")
	rootCmd.PersistentFlags().Int("threshold", matching.DefaultThreshold, "minimum similarity score (0-100) for a catalog match")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))
	viper.BindPFlag("match-threshold", rootCmd.PersistentFlags().Lookup("threshold"))
}

func setDefaults() {
	viper.SetDefault("catalog", "data/pricing.csv")
	viper.SetDefault("tax-rate", 0.10)
	viper.SetDefault("match-threshold", matching.DefaultThreshold)
	viper.SetDefault("output-dir", "output")
	viper.SetDefault("metrics-file", "")
	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.api-key-file", "")
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 200)
	viper.SetDefault("inbox.dir", "inbox")
	viper.SetDefault("inbox.interval", "60s")
	viper.SetDefault("inbox.settle", "5s")
}

func initConfig() {
	// A missing .env is fine, the variables may come from the environment.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults are enough to run without a config file, but a broken one is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Inbox == nil {
		config.Inbox = &InboxConfig{}
	}

	return config, nil
}
