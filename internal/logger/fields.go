package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldProvider    = "ai_provider"
	FieldModel       = "ai_model"
	FieldQuoteNumber = "quote_number"
	FieldRequestID   = "request_id"
	FieldCustomer    = "customer"
	FieldSource      = "source"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger, falling back to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// WithAI tags logger with the intent extraction provider and model.
func WithAI(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)...)
}

// WithRequest tags logger with the identifiers of one processed request.
// source is the file or input the request came from.
func WithRequest(logger *zap.Logger, source, quoteNumber, requestID, customer string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldSource, Value: source},
		StringField{Key: FieldQuoteNumber, Value: quoteNumber},
		StringField{Key: FieldRequestID, Value: requestID},
		StringField{Key: FieldCustomer, Value: customer},
	)...)
}
