package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/quote-engine/internal/ai"
	"github.com/spigell/quote-engine/internal/quote"
)

const (
	PromptSave        = "Save quote"
	PromptShowJSON    = "Show JSON"
	PromptShowSummary = "Show summary"
	PromptExit        = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptSave, PromptShowSummary, PromptShowJSON, PromptExit},
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Build a quote from an items file, an email or the built-in sample",
	Run: func(cmd *cobra.Command, _ []string) {
		runQuote(cmd)
	},
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringP("items", "i", "", "JSON file with customer_name and items")
	quoteCmd.Flags().StringP("email", "e", "", "text file with a customer request, '-' reads stdin")
	quoteCmd.Flags().Bool("sample", false, "use the built-in sample email")
	quoteCmd.Flags().BoolP("auto-approve", "y", false, "save the quote without asking")
	quoteCmd.Flags().Float64("tax-rate", 0.10, "tax rate applied to the subtotal")
	quoteCmd.Flags().StringP("output-dir", "o", "", "directory for saved quotes")

	viper.BindPFlag("tax-rate", quoteCmd.Flags().Lookup("tax-rate"))
	viper.BindPFlag("output-dir", quoteCmd.Flags().Lookup("output-dir"))
}

func runQuote(cmd *cobra.Command) {
	ctx := context.Background()

	config, logger := setup()

	itemsFile, _ := cmd.Flags().GetString("items")
	emailFile, _ := cmd.Flags().GetString("email")
	sample, _ := cmd.Flags().GetBool("sample")

	if itemsFile == "" && emailFile == "" && !sample {
		logger.Fatal("nothing to quote", zap.String("hint", "pass --items, --email or --sample"))
	}

	e := newEngine(ctx, config, logger, itemsFile == "")

	source, intent, err := readIntent(ctx, e, itemsFile, emailFile, sample)
	if err != nil {
		logger.Fatal("reading request", zap.Error(err))
	}

	result, log := e.price(source, intent)

	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	action := PromptSave
	for {
		if !autoApprove {
			_, action, err = prompt.Run()
			if err != nil {
				log.Fatal("exiting", zap.Error(err))
			}
		}

		if err := handleAction(action, e, result, log); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			log.Fatal("exiting", zap.Error(err))
		}
	}
}

func readIntent(ctx context.Context, e *engine, itemsFile, emailFile string, sample bool) (string, *ai.Intent, error) {
	switch {
	case itemsFile != "":
		data, err := os.ReadFile(itemsFile)
		if err != nil {
			return "", nil, err
		}
		intent, err := e.fromItems(data)
		return itemsFile, intent, err
	case emailFile != "":
		text, err := readText(emailFile, os.Stdin)
		if err != nil {
			return "", nil, err
		}
		return emailFile, e.fromEmail(ctx, text), nil
	default:
		return "sample", e.fromEmail(ctx, sampleEmail), nil
	}
}

func readText(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)

	if path == "-" {
		data, err = io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
	} else if data, err = os.ReadFile(path); err != nil {
		return "", err
	}

	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("request %q is empty", path)
	}
	return string(data), nil
}

func handleAction(action string, e *engine, result *quote.Result, log *zap.Logger) error {
	switch action {
	case PromptSave:
		if _, err := e.save(result, log); err != nil {
			return fmt.Errorf("saving quote: %w", err)
		}
		return errExit
	case PromptShowSummary:
		fmt.Print(result.Summary())
		return nil
	case PromptShowJSON:
		pretty, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
		return nil
	case PromptExit:
		log.Info("exiting", zap.String("reason", "quote was not saved"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}
