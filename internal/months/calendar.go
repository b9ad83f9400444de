package months

import (
	"fmt"
	"sort"

	"treblereport/domain/dataset"
)

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthName returns the Spanish name of month m, or "" outside 1-12
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return monthNames[m-1]
}

// MonthLabel formats a month for pickers: "03 - Marzo". Out-of-range months keep the number only.
func MonthLabel(m int) string {
	if name := MonthName(m); name != "" {
		return fmt.Sprintf("%02d - %s", m, name)
	}
	return fmt.Sprintf("%02d", m)
}

// Key joins a year and month into a month key
func Key(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// Years returns the distinct years present, newest first
func Years(t *dataset.CanonicalTable) []int {
	seen := make(map[int]bool)
	var years []int
	for _, r := range t.Rows {
		if r.Resolved && !seen[r.Year] {
			seen[r.Year] = true
			years = append(years, r.Year)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// MonthsOfYear returns the distinct months present in year, ascending
func MonthsOfYear(t *dataset.CanonicalTable, year int) []int {
	seen := make(map[int]bool)
	var months []int
	for _, r := range t.Rows {
		if r.Resolved && r.Year == year && !seen[r.MonthNum] {
			seen[r.MonthNum] = true
			months = append(months, r.MonthNum)
		}
	}
	sort.Ints(months)
	return months
}

// DefaultSelection picks the latest year and, within it, the latest month.
// ok is false for an empty table.
func DefaultSelection(t *dataset.CanonicalTable) (year, month int, ok bool) {
	years := Years(t)
	if len(years) == 0 {
		return 0, 0, false
	}
	months := MonthsOfYear(t, years[0])
	return years[0], months[len(months)-1], true
}

// dateColumnCandidates are the usual date headers of messaging-platform exports
var dateColumnCandidates = []string{
	"Fecha del despliegue", "fecha_del_despliegue", "fecha", "Fecha", "created_at",
	"timestamp", "última actividad", "ultima actividad", "ultima_actividad", "updated_at",
}

// SuggestDateColumns returns the headers that look like date columns, in header order.
// When none match, every header is returned.
func SuggestDateColumns(headers []string) []string {
	known := make(map[string]bool, len(dateColumnCandidates))
	for _, c := range dateColumnCandidates {
		known[c] = true
	}
	var out []string
	for _, h := range headers {
		if known[h] {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), headers...)
	}
	return out
}
