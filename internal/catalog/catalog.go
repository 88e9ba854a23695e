package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ColumnName        = "Service Name"
	ColumnPrice       = "Unit Price"
	ColumnKeywords    = "Keywords"
	ColumnDescription = "Description"
	ColumnUnit        = "Unit"

	DefaultUnit = "Each"
)

const (
	ProblemMissingName   = "missing service name"
	ProblemMissingPrice  = "missing unit price"
	ProblemInvalidPrice  = "unit price is not a number"
	ProblemNegativePrice = "unit price is negative"
)

// Entry is a single row of the price catalog.
type Entry struct {
	Name        string
	Keywords    string
	UnitPrice   decimal.Decimal
	Unit        string
	Description string
	// Problem explains why the row is excluded from matching.
	// Empty for rows that participate in matching.
	Problem string
	// Row is the 1-based line of the source file, 0 for entries built in code.
	Row int
}

func (e Entry) Valid() bool {
	return e.Problem == ""
}

// SearchText is the text the matcher scores a query against.
func (e Entry) SearchText() string {
	keywords := strings.TrimSpace(e.Keywords)
	if keywords == "" {
		return e.Name
	}
	return e.Name + " " + keywords
}

// Catalog is an ordered, read-only table of entries.
// It is safe for concurrent use since nothing mutates it after construction.
type Catalog struct {
	path      string
	entries   []Entry
	matchable []int
}

// New builds a catalog from entries in the given order.
// Entries with an empty name or a negative price get a Problem and are not matchable.
func New(entries []Entry) *Catalog {
	c := &Catalog{entries: make([]Entry, len(entries))}
	copy(c.entries, entries)

	for i := range c.entries {
		e := &c.entries[i]
		if strings.TrimSpace(e.Unit) == "" {
			e.Unit = DefaultUnit
		}
		if e.Problem == "" {
			switch {
			case strings.TrimSpace(e.Name) == "":
				e.Problem = ProblemMissingName
			case e.UnitPrice.IsNegative():
				e.Problem = ProblemNegativePrice
			}
		}
		if e.Valid() {
			c.matchable = append(c.matchable, i)
		}
	}

	return c
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

func (c *Catalog) Path() string {
	return c.path
}

// At returns the entry at position i in catalog order.
func (c *Catalog) At(i int) Entry {
	return c.entries[i]
}

// Entries returns a copy of every entry, including invalid ones.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Matchable returns a copy of the valid entries in catalog order.
func (c *Catalog) Matchable() []Entry {
	out := make([]Entry, 0, len(c.matchable))
	for _, i := range c.matchable {
		out = append(out, c.entries[i])
	}
	return out
}

// MatchableIndexes returns catalog positions of valid entries in order.
func (c *Catalog) MatchableIndexes() []int {
	out := make([]int, len(c.matchable))
	copy(out, c.matchable)
	return out
}

// Invalid reports how many rows are excluded from matching.
func (c *Catalog) Invalid() int {
	return len(c.entries) - len(c.matchable)
}
