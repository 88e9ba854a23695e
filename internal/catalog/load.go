package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrEmptySource    = errors.New("catalog source is empty")
	ErrMissingColumns = errors.New("missing required columns")
)

// LoadError is returned when the catalog cannot be used at all.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading catalog %q: %s", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads a CSV price catalog. Rows with an unusable price are kept
// but excluded from matching, and a warning is logged for each of them.
func Load(path string, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer file.Close()

	c, err := Read(file, logger.With(zap.String("catalog", path)))
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	c.path = path

	logger.Info("catalog loaded",
		zap.String("path", path),
		zap.Int("entries", c.Len()),
		zap.Int("excluded", c.Invalid()),
	)

	return c, nil
}

// Read parses catalog rows from r. The first record must be the header.
func Read(r io.Reader, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := indexColumns(header)

	var missing []string
	for _, required := range []string{ColumnName, ColumnPrice} {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var entries []Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if blank(record) {
			continue
		}

		entry := Entry{
			Name:        field(record, columns, ColumnName),
			Keywords:    field(record, columns, ColumnKeywords),
			Description: field(record, columns, ColumnDescription),
			Unit:        field(record, columns, ColumnUnit),
			Row:         line,
		}

		raw := field(record, columns, ColumnPrice)
		entry.UnitPrice, entry.Problem = parsePrice(raw)

		if entry.Problem == "" && entry.Name == "" {
			entry.Problem = ProblemMissingName
		}

		if entry.Problem != "" {
			logger.Warn("catalog row excluded from matching",
				zap.Int("row", line),
				zap.String("service", entry.Name),
				zap.String("unit_price", raw),
				zap.String("reason", entry.Problem),
			)
		}

		entries = append(entries, entry)
	}

	return New(entries), nil
}

func parsePrice(raw string) (decimal.Decimal, string) {
	if raw == "" {
		return decimal.Zero, ProblemMissingPrice
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ProblemInvalidPrice
	}

	if price.IsNegative() {
		return price, ProblemNegativePrice
	}

	return price, ""
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}
	return columns
}

func field(record []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
