package months

import (
	"fmt"

	"treblereport/domain/dataset"
	"treblereport/internal"
	"treblereport/internal/errors"
)

var logger = internal.DefaultLogger.With("MonthResolver")

// Config selects the date column(s) and parse mode for a table
type Config struct {
	DateColumn     string
	FallbackColumn string
	Mode           dataset.ParseMode
	Options        Options
}

// Canonicalize resolves a month key for every row of t and returns the resolved subset.
// Unresolved rows are dropped and counted in Invalid. Cells are never rewritten.
// An empty result is not an error here; callers decide how to report it.
func Canonicalize(t *dataset.Table, cfg Config) (*dataset.CanonicalTable, error) {
	if t == nil {
		return nil, errors.InvalidInput("no table loaded")
	}
	primary, ok := t.Column(cfg.DateColumn)
	if !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("date column %q not found", cfg.DateColumn))
	}

	var fallback []string
	if cfg.FallbackColumn != "" {
		fallback, ok = t.Column(cfg.FallbackColumn)
		if !ok {
			return nil, errors.InvalidInput(fmt.Sprintf("fallback date column %q not found", cfg.FallbackColumn))
		}
	}

	resolver, err := NewResolver(cfg.Mode, cfg.Options)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	results, invalid := resolver.Resolve(primary, fallback)

	out := &dataset.CanonicalTable{
		Headers: t.Headers,
		Rows:    make([]dataset.CanonicalRow, 0, len(results)-invalid),
		Invalid: invalid,
	}
	for i, res := range results {
		if !res.OK {
			continue
		}
		out.Rows = append(out.Rows, dataset.CanonicalRow{
			Row:      t.Rows[i],
			MonthKey: res.Key,
			Year:     res.Year,
			MonthNum: res.Month,
			Resolved: true,
		})
	}

	logger.Debug("%s on %q: %d/%d rows resolved, %d invalid",
		resolver.Mode(), cfg.DateColumn, len(out.Rows), len(results), invalid)
	return out, nil
}

