// Package kpi evaluates user-defined KPI rules over row groups, derives ratios and
// month-over-month trend flags.
package kpi

import (
	"github.com/montanaflynn/stats"

	"treblereport/domain/dataset"
	"treblereport/internal/textnorm"
)

// ApplyRule evaluates rule over the resolved rows of t.
//
// CountByValue is Unknown when the column is absent or no accepted value is given; otherwise
// it counts rows whose value matches an accepted value ignoring case, accents, surrounding
// whitespace and Latin-1 mojibake.
//
// SumNumeric is Unknown when the column is absent; non-numeric and missing cells add 0, so
// a column with no numbers sums to 0 rather than Unknown.
func ApplyRule(t *dataset.CanonicalTable, rule dataset.KPIRule) dataset.Value {
	if !rule.Configured() || !t.HasColumn(rule.Column) {
		return dataset.Unknown()
	}
	switch rule.Kind {
	case dataset.RuleCountByValue:
		return countMatching(t, rule)
	case dataset.RuleSumNumeric:
		return sumNumeric(t, rule.Column)
	default:
		return dataset.Unknown()
	}
}

func countMatching(t *dataset.CanonicalTable, rule dataset.KPIRule) dataset.Value {
	accepted := make(map[string]struct{}, len(rule.AcceptedValues))
	for _, v := range rule.AcceptedValues {
		if key := textnorm.MatchKey(v); key != "" {
			accepted[key] = struct{}{}
		}
	}
	if len(accepted) == 0 {
		return dataset.Unknown()
	}

	count := 0
	for _, r := range t.Rows {
		cell := r.Row[rule.Column]
		if !r.Resolved || cell.Missing {
			continue
		}
		if _, ok := accepted[textnorm.MatchKey(cell.Text)]; ok {
			count++
		}
	}
	return dataset.Known(float64(count))
}

func sumNumeric(t *dataset.CanonicalTable, column string) dataset.Value {
	values := make(stats.Float64Data, 0, len(t.Rows))
	for _, r := range t.Rows {
		if !r.Resolved {
			continue
		}
		v, ok := ParseNumber(r.Row[column].Raw())
		if !ok {
			v = 0
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return dataset.Known(0)
	}
	sum, err := stats.Sum(values)
	if err != nil {
		return dataset.Known(0)
	}
	return dataset.Known(sum)
}

// Ratio returns numerator/denominator*100, or Unknown when either side is unknown or the
// denominator is zero.
func Ratio(numerator, denominator dataset.Value) dataset.Value {
	if !numerator.Valid || !denominator.Valid || denominator.V == 0 {
		return dataset.Unknown()
	}
	return dataset.Known(numerator.V / denominator.V * 100)
}

// Trend compares a value with the immediately preceding month's value
func Trend(current, previous dataset.Value) dataset.Trend {
	switch {
	case !current.Valid || !previous.Valid:
		return dataset.TrendUnknown
	case current.V == previous.V:
		return dataset.TrendFlat
	case current.V > previous.V:
		return dataset.TrendUp
	default:
		return dataset.TrendDown
	}
}
