// Package report assembles the monthly dashboard: month summary, trends and the KPI table.
package report

import (
	"fmt"

	"treblereport/domain/dataset"
	"treblereport/internal"
	"treblereport/internal/aggregate"
	"treblereport/internal/errors"
	"treblereport/internal/kpi"
	"treblereport/internal/months"
)

var logger = internal.DefaultLogger.With("Report")

// DefaultUniqueKeyColumn identifies a subscriber in messaging-platform exports
const DefaultUniqueKeyColumn = "Celular"

// Config is the full, explicit user selection for one report run
type Config struct {
	Months months.Config
	// Year and Month select the summarized month; zero picks the latest available.
	Year  int
	Month int
	// SummaryColumns defaults to DefaultSummaryColumns when nil.
	SummaryColumns  []string
	UniqueKeyColumn string
	Rules           dataset.RuleSet
	Filters         map[string][]string
}

// Result is everything the dashboard and the exports need
type Result struct {
	SelectedMonth string `json:"selected_month"`
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	MonthLabel    string `json:"month_label"`
	Years         []int  `json:"years"`
	MonthsOfYear  []int  `json:"months_of_year"`

	ValidRows   int `json:"valid_rows"`
	InvalidRows int `json:"invalid_rows"`

	// Month summary
	TotalRows     int                      `json:"total_rows"`
	UniqueKeys    *int                     `json:"unique_keys,omitempty"`
	UniqueKeyName string                   `json:"unique_key_column,omitempty"`
	Frequencies   []dataset.FrequencyTable `json:"frequencies"`

	// Trends across every month
	MonthlyTotals []dataset.MonthCount `json:"monthly_totals"`
	MonthlyUnique []dataset.MonthCount `json:"monthly_unique,omitempty"`
	Pivots        []dataset.PivotTable `json:"pivots"`

	KPIs           []dataset.MonthlyKPIRecord `json:"kpis"`
	KPISummary     []kpi.Summary              `json:"kpi_summary"`
	SuggestedRules dataset.RuleSet            `json:"suggested_rules"`

	Table     *dataset.CanonicalTable `json:"-"`
	MonthRows *dataset.CanonicalTable `json:"-"`
}

// Build runs the pipeline over an immutable table: resolve months, filter, summarize the
// selected month, compute trends and the monthly KPI table. It fails only for configuration
// problems and for a table with no resolvable month; bad cells are excluded and counted.
func Build(t *dataset.Table, cfg Config) (*Result, error) {
	ct, err := months.Canonicalize(t, cfg.Months)
	if err != nil {
		return nil, err
	}
	if ct.Len() == 0 {
		return nil, errors.EmptyAfterFilter(cfg.Months.DateColumn, cfg.Months.Mode.String())
	}

	filtered := aggregate.FilterByValues(ct, cfg.Filters)
	if filtered.Len() == 0 {
		return nil, errors.New(errors.CodeEmptyAfterFilter, "no rows match the selected filters")
	}

	year, month, err := selectMonth(filtered, cfg.Year, cfg.Month)
	if err != nil {
		return nil, err
	}
	key := months.Key(year, month)
	monthRows := filtered.Month(key)

	res := &Result{
		SelectedMonth: key,
		Year:          year,
		Month:         month,
		MonthLabel:    months.MonthLabel(month),
		Years:         months.Years(filtered),
		MonthsOfYear:  months.MonthsOfYear(filtered, year),
		ValidRows:     filtered.Len(),
		InvalidRows:   ct.Invalid,
		TotalRows:     monthRows.Len(),
		Frequencies:   []dataset.FrequencyTable{},
		Pivots:        []dataset.PivotTable{},
		Table:         filtered,
		MonthRows:     monthRows,
	}

	keyColumn := cfg.UniqueKeyColumn
	if keyColumn == "" {
		keyColumn = DefaultUniqueKeyColumn
	}
	if n, ok := aggregate.UniqueCount(monthRows, keyColumn); ok {
		res.UniqueKeys = &n
		res.UniqueKeyName = keyColumn
	}

	columns := cfg.SummaryColumns
	if columns == nil {
		columns = DefaultSummaryColumns(t.Headers)
	}
	for _, c := range columns {
		if !filtered.HasColumn(c) {
			continue
		}
		res.Frequencies = append(res.Frequencies, aggregate.CountByValue(monthRows, c))
		res.Pivots = append(res.Pivots, aggregate.Pivot(filtered, c))
	}

	res.MonthlyTotals = aggregate.MonthlyTotals(filtered)
	if series, ok := aggregate.MonthlyUnique(filtered, keyColumn); ok {
		res.MonthlyUnique = series
	}

	res.KPIs = BuildKPIs(filtered, cfg.Rules)
	res.KPISummary = kpi.Summarize(res.KPIs)
	res.SuggestedRules = kpi.Suggest(ct)

	logger.Info("%s: %d rows in month, %d valid overall, %d excluded, %d KPI months",
		key, res.TotalRows, res.ValidRows, res.InvalidRows, len(res.KPIs))
	return res, nil
}

// BuildKPIs evaluates the rule set per month (ascending), derives the two ratios and flags
// each column's trend against the immediately preceding month in the table.
func BuildKPIs(t *dataset.CanonicalTable, rules dataset.RuleSet) []dataset.MonthlyKPIRecord {
	keys := t.MonthKeys()
	records := make([]dataset.MonthlyKPIRecord, 0, len(keys))
	for i, key := range keys {
		rows := t.Month(key)
		rec := dataset.MonthlyKPIRecord{
			Month:    key,
			Envios:   kpi.ApplyRule(rows, rules.Envios),
			Entregas: kpi.ApplyRule(rows, rules.Entregas),
			Clics:    kpi.ApplyRule(rows, rules.Clics),
			Avance:   kpi.ApplyRule(rows, rules.Avance),
		}
		rec.PasoPerfilamiento = kpi.Ratio(rec.Avance, rec.Clics)
		rec.EntregasVsAvance = kpi.Ratio(rec.Avance, rec.Entregas)

		if i > 0 {
			prev := records[i-1]
			rec.Trends = dataset.KPITrends{
				Envios:            kpi.Trend(rec.Envios, prev.Envios),
				Entregas:          kpi.Trend(rec.Entregas, prev.Entregas),
				Clics:             kpi.Trend(rec.Clics, prev.Clics),
				Avance:            kpi.Trend(rec.Avance, prev.Avance),
				PasoPerfilamiento: kpi.Trend(rec.PasoPerfilamiento, prev.PasoPerfilamiento),
				EntregasVsAvance:  kpi.Trend(rec.EntregasVsAvance, prev.EntregasVsAvance),
			}
		}
		records = append(records, rec)
	}
	return records
}

func selectMonth(t *dataset.CanonicalTable, year, month int) (int, int, error) {
	if year == 0 {
		y, m, ok := months.DefaultSelection(t)
		if !ok {
			return 0, 0, errors.New(errors.CodeEmptyAfterFilter, "no months available")
		}
		if month == 0 {
			return y, m, nil
		}
		year = y
	}
	available := months.MonthsOfYear(t, year)
	if len(available) == 0 {
		return 0, 0, errors.InvalidInput(fmt.Sprintf("year %d has no rows", year))
	}
	if month == 0 {
		return year, available[len(available)-1], nil
	}
	for _, m := range available {
		if m == month {
			return year, month, nil
		}
	}
	return 0, 0, errors.InvalidInput(fmt.Sprintf("month %s has no rows", months.Key(year, month)))
}

// defaultSummaryColumns are the breakdowns pre-selected when the export carries them
var defaultSummaryColumns = []string{
	"Estado del despliegue",
	"Estado de la conversación",
	"Estado de la sesión",
	"deployment_squad",
	"hubspot_firstname",
	"hubspot_mensaje_2",
	"hubspot_treble_avances_emp_0",
	"hubspot_transferir_asesor",
}

// DefaultSummaryColumns returns the well-known breakdown columns present in headers
func DefaultSummaryColumns(headers []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	out := []string{}
	for _, c := range defaultSummaryColumns {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}
