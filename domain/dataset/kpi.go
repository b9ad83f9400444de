package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Value is a KPI number that may be unknown (rule unconfigured or not applicable)
type Value struct {
	V     float64
	Valid bool
}

// Known wraps a defined number
func Known(v float64) Value {
	return Value{V: v, Valid: true}
}

// Unknown returns the undefined value
func Unknown() Value {
	return Value{}
}

// Float returns the number, or NaN when unknown
func (v Value) Float() float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.V
}

// MarshalJSON encodes unknown values as null
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid || math.IsNaN(v.V) || math.IsInf(v.V, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

// UnmarshalJSON decodes null as unknown
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Unknown()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Known(f)
	return nil
}

// RuleKind discriminates KPIRule variants
type RuleKind string

const (
	RuleCountByValue RuleKind = "count_by_value"
	RuleSumNumeric   RuleKind = "sum_numeric"
)

// KPIRule defines how one KPI is computed over a group of rows.
// A zero KPIRule is unconfigured and always evaluates to Unknown.
type KPIRule struct {
	Kind           RuleKind `json:"kind,omitempty"`
	Column         string   `json:"column,omitempty"`
	AcceptedValues []string `json:"accepted_values,omitempty"`
}

// CountByValue builds a categorical-match counting rule
func CountByValue(column string, accepted ...string) KPIRule {
	return KPIRule{Kind: RuleCountByValue, Column: column, AcceptedValues: accepted}
}

// SumNumeric builds a numeric sum rule
func SumNumeric(column string) KPIRule {
	return KPIRule{Kind: RuleSumNumeric, Column: column}
}

// Configured reports whether the rule has a kind and target column
func (r KPIRule) Configured() bool {
	return r.Kind != "" && r.Column != ""
}

// ParseRuleSpec parses the compact rule syntax used by the CLI:
//
//	count:<column>=<value>|<value>...
//	sum:<column>
//
// An empty spec yields an unconfigured rule.
func ParseRuleSpec(spec string) (KPIRule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return KPIRule{}, nil
	}
	kind, rest, ok := strings.Cut(spec, ":")
	if !ok {
		return KPIRule{}, fmt.Errorf("rule %q: expected <kind>:<column>", spec)
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "count":
		column, values, ok := strings.Cut(rest, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return KPIRule{}, fmt.Errorf("rule %q: expected count:<column>=<values>", spec)
		}
		var accepted []string
		for _, v := range strings.Split(values, "|") {
			if v = strings.TrimSpace(v); v != "" {
				accepted = append(accepted, v)
			}
		}
		return CountByValue(strings.TrimSpace(column), accepted...), nil
	case "sum":
		if strings.TrimSpace(rest) == "" {
			return KPIRule{}, fmt.Errorf("rule %q: missing column", spec)
		}
		return SumNumeric(strings.TrimSpace(rest)), nil
	default:
		return KPIRule{}, fmt.Errorf("rule %q: unknown kind %q", spec, kind)
	}
}

// RuleSet holds the four named KPI slots. The names are labels only.
type RuleSet struct {
	Envios   KPIRule `json:"envios"`
	Entregas KPIRule `json:"entregas"`
	Clics    KPIRule `json:"clics"`
	Avance   KPIRule `json:"avance"`
}

// Trend is the direction of a metric relative to the preceding month
type Trend int

const (
	TrendUnknown Trend = iota
	TrendUp
	TrendDown
	TrendFlat
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	case TrendFlat:
		return "flat"
	default:
		return "unknown"
	}
}

// Glyph returns the arrow shown next to display values; unknown renders blank
func (t Trend) Glyph() string {
	switch t {
	case TrendUp:
		return "▲"
	case TrendDown:
		return "▼"
	case TrendFlat:
		return "▬"
	default:
		return ""
	}
}

// MarshalJSON encodes the trend by name
func (t Trend) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// KPITrends holds one trend flag per KPI column
type KPITrends struct {
	Envios            Trend `json:"envios"`
	Entregas          Trend `json:"entregas"`
	Clics             Trend `json:"clics"`
	Avance            Trend `json:"avance"`
	PasoPerfilamiento Trend `json:"paso_perfilamiento"`
	EntregasVsAvance  Trend `json:"entregas_vs_avance"`
}

// MonthlyKPIRecord is one row of the monthly KPI table
type MonthlyKPIRecord struct {
	Month             string    `json:"month"`
	Envios            Value     `json:"envios"`
	Entregas          Value     `json:"entregas"`
	Clics             Value     `json:"clics"`
	Avance            Value     `json:"avance"`
	PasoPerfilamiento Value     `json:"paso_perfilamiento"`
	EntregasVsAvance  Value     `json:"entregas_vs_avance"`
	Trends            KPITrends `json:"trends"`
}

// KPINames lists the KPI columns in table order
var KPINames = []string{"envios", "entregas", "clics", "avance", "paso_perfilamiento", "entregas_vs_avance"}

// Metric returns a KPI column value by name
func (r MonthlyKPIRecord) Metric(name string) Value {
	switch name {
	case "envios":
		return r.Envios
	case "entregas":
		return r.Entregas
	case "clics":
		return r.Clics
	case "avance":
		return r.Avance
	case "paso_perfilamiento":
		return r.PasoPerfilamiento
	case "entregas_vs_avance":
		return r.EntregasVsAvance
	default:
		return Unknown()
	}
}
