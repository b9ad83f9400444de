package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown renders the month summary, counts, monthly totals and KPI table as a
// human-facing markdown document.
func Markdown(res *Result, f *Formatter) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Resumen mensual %s\n\n", res.SelectedMonth)
	fmt.Fprintf(&b, "- Registros (filas) en el mes: **%s**\n", f.Int(res.TotalRows))
	if res.UniqueKeys != nil {
		fmt.Fprintf(&b, "- %s únicos en el mes: **%s**\n", res.UniqueKeyName, f.Int(*res.UniqueKeys))
	}
	fmt.Fprintf(&b, "- Filas con fecha válida: %s\n", f.Int(res.ValidRows))
	if res.InvalidRows > 0 {
		fmt.Fprintf(&b, "- Filas excluidas por fecha inválida: %s\n", f.Int(res.InvalidRows))
	}
	b.WriteString("\n")

	for _, ft := range res.Frequencies {
		fmt.Fprintf(&b, "## %s\n\n", ft.Column)
		writeTable(&b, []string{ft.Column, "conteo"}, func(emit func(...string)) {
			for _, e := range ft.Entries {
				emit(e.Value, f.Int(e.Count))
			}
		})
	}

	b.WriteString("## Registros por mes\n\n")
	uniqueByMonth := make(map[string]int, len(res.MonthlyUnique))
	for _, mc := range res.MonthlyUnique {
		uniqueByMonth[mc.Month] = mc.Count
	}
	headers := []string{"Mes", "Registros"}
	if res.MonthlyUnique != nil {
		headers = append(headers, res.UniqueKeyName+" únicos")
	}
	writeTable(&b, headers, func(emit func(...string)) {
		for _, mc := range res.MonthlyTotals {
			if res.MonthlyUnique != nil {
				emit(mc.Month, f.Int(mc.Count), f.Int(uniqueByMonth[mc.Month]))
			} else {
				emit(mc.Month, f.Int(mc.Count))
			}
		}
	})

	b.WriteString("## KPIs por mes\n\n")
	writeTable(&b, DisplayHeaders, func(emit func(...string)) {
		for _, row := range f.DisplayKPIs(res.KPIs) {
			emit(row.Cells()...)
		}
	})
	return b.String()
}

// HTML renders Markdown as a complete HTML page
func HTML(res *Result, f *Formatter) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "Resumen " + res.SelectedMonth,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(Markdown(res, f)), p, renderer)
}

func writeTable(b *strings.Builder, headers []string, rows func(emit func(...string))) {
	writeRow(b, headers)
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(b, sep)
	rows(func(cells ...string) { writeRow(b, cells) })
	b.WriteString("\n")
}

func writeRow(b *strings.Builder, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	b.WriteString("| " + strings.Join(escaped, " | ") + " |\n")
}
