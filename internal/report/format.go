package report

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"treblereport/domain/dataset"
)

// DefaultLocale matches the Spanish-speaking audience of the dashboard
const DefaultLocale = "es-CO"

// Formatter renders human-facing numbers with locale thousands/decimal separators.
// Raw exports never go through it.
type Formatter struct {
	printer *message.Printer
	tag     language.Tag
}

// NewFormatter builds a formatter for a BCP 47 tag; unparsable tags fall back to DefaultLocale
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	return &Formatter{printer: message.NewPrinter(tag), tag: tag}
}

// Locale returns the tag in use
func (f *Formatter) Locale() string {
	return f.tag.String()
}

// Int formats a count with grouping separators
func (f *Formatter) Int(n int) string {
	return f.printer.Sprintf("%d", n)
}

// Number formats a KPI value; whole numbers print without decimals, unknown prints blank
func (f *Formatter) Number(v dataset.Value) string {
	if !v.Valid || math.IsNaN(v.V) || math.IsInf(v.V, 0) {
		return ""
	}
	if v.V == math.Trunc(v.V) && math.Abs(v.V) < 1e15 {
		return f.printer.Sprintf("%d", int64(v.V))
	}
	return f.printer.Sprintf("%.2f", v.V)
}

// Percent formats a ratio already expressed in percent, one decimal; unknown prints blank
func (f *Formatter) Percent(v dataset.Value) string {
	if !v.Valid || math.IsNaN(v.V) || math.IsInf(v.V, 0) {
		return ""
	}
	return f.printer.Sprintf("%.1f%%", v.V)
}

// DisplayRow is a KPI table row ready for a human: formatted values with trend glyphs
type DisplayRow struct {
	Month             string `json:"month"`
	Envios            string `json:"envios"`
	Entregas          string `json:"entregas"`
	Clics             string `json:"clics"`
	Avance            string `json:"avance"`
	PasoPerfilamiento string `json:"paso_perfilamiento"`
	EntregasVsAvance  string `json:"entregas_vs_avance"`
}

// DisplayHeaders are the column titles of the display KPI table
var DisplayHeaders = []string{"Mes", "Envíos", "Entregas", "Clics", "Avance", "% Paso perfilamiento", "% Entregas vs avance"}

// Cells returns the row in DisplayHeaders order
func (r DisplayRow) Cells() []string {
	return []string{r.Month, r.Envios, r.Entregas, r.Clics, r.Avance, r.PasoPerfilamiento, r.EntregasVsAvance}
}

// DisplayKPIs formats the KPI table. A glyph is appended only to defined values with a
// known trend.
func (f *Formatter) DisplayKPIs(records []dataset.MonthlyKPIRecord) []DisplayRow {
	rows := make([]DisplayRow, len(records))
	for i, rec := range records {
		rows[i] = DisplayRow{
			Month:             rec.Month,
			Envios:            withGlyph(f.Number(rec.Envios), rec.Trends.Envios),
			Entregas:          withGlyph(f.Number(rec.Entregas), rec.Trends.Entregas),
			Clics:             withGlyph(f.Number(rec.Clics), rec.Trends.Clics),
			Avance:            withGlyph(f.Number(rec.Avance), rec.Trends.Avance),
			PasoPerfilamiento: withGlyph(f.Percent(rec.PasoPerfilamiento), rec.Trends.PasoPerfilamiento),
			EntregasVsAvance:  withGlyph(f.Percent(rec.EntregasVsAvance), rec.Trends.EntregasVsAvance),
		}
	}
	return rows
}

func withGlyph(value string, t dataset.Trend) string {
	if value == "" || t.Glyph() == "" {
		return value
	}
	return value + " " + t.Glyph()
}
