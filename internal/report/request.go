package report

import (
	"fmt"

	"treblereport/domain/dataset"
	"treblereport/internal/errors"
	"treblereport/internal/months"
)

// Request is the user-facing report selection as sent by the HTTP surfaces and built by
// the CLI. Rules may be given structurally or as "count:<col>=<v>|<v>" / "sum:<col>" specs.
type Request struct {
	DateColumn       string              `json:"date_column" binding:"required"`
	FallbackColumn   string              `json:"fallback_date_column"`
	ParseMode        string              `json:"parse_mode"`
	RegexPattern     string              `json:"regex_pattern"`
	StrictMonthRange bool                `json:"strict_month_range"`
	Year             int                 `json:"year" binding:"min=0"`
	Month            int                 `json:"month" binding:"min=0,max=12"`
	Columns          []string            `json:"columns_to_summarize"`
	UniqueKeyColumn  string              `json:"unique_key_column"`
	Rules            *dataset.RuleSet    `json:"kpi_rules"`
	RuleSpecs        map[string]string   `json:"kpi_rule_specs"`
	Filters          map[string][]string `json:"filters"`
	Locale           string              `json:"locale"`
}

// Defaults fill in what a Request leaves empty
type Defaults struct {
	ParseMode       dataset.ParseModeKind
	UniqueKeyColumn string
	Locale          string
}

// Config validates the request and resolves it into a pipeline Config. Problems are
// INVALID_INPUT errors.
func (r Request) Config(d Defaults) (Config, error) {
	if r.DateColumn == "" {
		return Config{}, errors.InvalidInput("date_column is required")
	}
	if r.Month != 0 && (r.Month < 1 || r.Month > 12) {
		return Config{}, errors.InvalidInput(fmt.Sprintf("month %d out of range", r.Month))
	}

	modeName := r.ParseMode
	if modeName == "" {
		modeName = string(d.ParseMode)
	}
	mode, err := dataset.ParseParseMode(modeName, r.RegexPattern)
	if err != nil {
		return Config{}, errors.WithCode(errors.CodeInvalidInput, err)
	}
	if _, err := months.NewResolver(mode, months.Options{}); err != nil {
		return Config{}, errors.WithCode(errors.CodeInvalidInput, err)
	}

	rules := dataset.RuleSet{}
	if r.Rules != nil {
		rules = *r.Rules
	}
	for name, spec := range r.RuleSpecs {
		rule, err := dataset.ParseRuleSpec(spec)
		if err != nil {
			return Config{}, errors.WithCode(errors.CodeInvalidInput, err)
		}
		switch name {
		case "envios":
			rules.Envios = rule
		case "entregas":
			rules.Entregas = rule
		case "clics":
			rules.Clics = rule
		case "avance":
			rules.Avance = rule
		default:
			return Config{}, errors.InvalidInput(fmt.Sprintf("unknown KPI %q; expected envios, entregas, clics or avance", name))
		}
	}

	uniqueKey := r.UniqueKeyColumn
	if uniqueKey == "" {
		uniqueKey = d.UniqueKeyColumn
	}

	return Config{
		Months: months.Config{
			DateColumn:     r.DateColumn,
			FallbackColumn: r.FallbackColumn,
			Mode:           mode,
			Options:        months.Options{StrictMonthRange: r.StrictMonthRange},
		},
		Year:            r.Year,
		Month:           r.Month,
		SummaryColumns:  r.Columns,
		UniqueKeyColumn: uniqueKey,
		Rules:           rules,
		Filters:         r.Filters,
	}, nil
}

// LocaleOr returns the request locale or the fallback
func (r Request) LocaleOr(fallback string) string {
	if r.Locale != "" {
		return r.Locale
	}
	return fallback
}
