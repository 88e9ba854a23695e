package gemini

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/quote-engine/internal/ai"
	"github.com/spigell/quote-engine/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Extractor implements ai.Extractor on top of a Gemini generator.
type Extractor struct {
	generator contentGenerator
	system    string
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Extractor = (*Extractor)(nil)

// NewExtractor builds an extractor whose instructions list services so the
// model can reuse catalog wording.
func NewExtractor(generator contentGenerator, logger *zap.Logger, maxLogLength int, services []string) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		generator: generator,
		system:    buildPrompt(services),
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (e *Extractor) Extract(ctx context.Context, text string) (*ai.Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("request text is empty")
	}

	e.logger.Debug("gemini extract intent request",
		zap.String("model", e.generator.Model()),
		zap.Int("request_length", utf8.RuneCountInString(text)),
		zap.String("request_preview", utils.TruncateForLog(text, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, e.system, text)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("gemini extract intent response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	intent, err := ai.ParseIntent([]byte(extractJSON(raw)), e.logger)
	if err != nil {
		return nil, err
	}
	if len(intent.Items) == 0 {
		return nil, ai.ErrNoItems
	}

	return intent, nil
}

// System returns the instructions sent with every request.
func (e *Extractor) System() string {
	return e.system
}

func buildPrompt(services []string) string {
	var list strings.Builder
	for _, name := range services {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		list.WriteString("- ")
		list.WriteString(name)
		list.WriteString("\n")
	}

	names := strings.TrimSpace(list.String())
	if names == "" {
		names = "- none provided"
	}

	return strings.ReplaceAll(promptTemplate, "{{SERVICES}}", names)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
