// Package aggregate builds frequency tables, unique counts and month × category pivots over
// canonical tables. Only rows with a resolved month key are ever counted.
package aggregate

import (
	"sort"

	"treblereport/domain/dataset"
)

// CountByValue counts rows per display value of column (missing -> "No data"), ordered by
// count descending with ties kept in first-seen order. An absent column yields an empty table.
func CountByValue(t *dataset.CanonicalTable, column string) dataset.FrequencyTable {
	ft := dataset.FrequencyTable{Column: column, Entries: []dataset.FrequencyEntry{}}
	if !t.HasColumn(column) {
		return ft
	}

	index := make(map[string]int)
	for _, r := range t.Rows {
		if !r.Resolved {
			continue
		}
		v := r.Row[column].Display()
		if i, ok := index[v]; ok {
			ft.Entries[i].Count++
			continue
		}
		index[v] = len(ft.Entries)
		ft.Entries = append(ft.Entries, dataset.FrequencyEntry{Value: v, Count: 1})
	}

	sort.SliceStable(ft.Entries, func(i, j int) bool {
		return ft.Entries[i].Count > ft.Entries[j].Count
	})
	return ft
}

// UniqueCount counts distinct non-missing values of keyColumn. ok is false when the column
// does not exist, which is distinct from a count of zero.
func UniqueCount(t *dataset.CanonicalTable, keyColumn string) (count int, ok bool) {
	if !t.HasColumn(keyColumn) {
		return 0, false
	}
	seen := make(map[string]struct{})
	for _, r := range t.Rows {
		if !r.Resolved {
			continue
		}
		if cell := r.Row[keyColumn]; !cell.Missing {
			seen[cell.Text] = struct{}{}
		}
	}
	return len(seen), true
}

// MonthlyTotals counts rows per month key, ascending by key
func MonthlyTotals(t *dataset.CanonicalTable) []dataset.MonthCount {
	counts := make(map[string]int)
	for _, r := range t.Rows {
		if r.Resolved {
			counts[r.MonthKey]++
		}
	}
	out := make([]dataset.MonthCount, 0, len(counts))
	for _, month := range t.MonthKeys() {
		out = append(out, dataset.MonthCount{Month: month, Count: counts[month]})
	}
	return out
}

// MonthlyUnique counts distinct non-missing keyColumn values per month, ascending by key.
// Months where every key is missing report 0. ok is false when the column is absent.
func MonthlyUnique(t *dataset.CanonicalTable, keyColumn string) (series []dataset.MonthCount, ok bool) {
	if !t.HasColumn(keyColumn) {
		return nil, false
	}
	seen := make(map[string]map[string]struct{})
	for _, r := range t.Rows {
		if !r.Resolved {
			continue
		}
		if seen[r.MonthKey] == nil {
			seen[r.MonthKey] = make(map[string]struct{})
		}
		if cell := r.Row[keyColumn]; !cell.Missing {
			seen[r.MonthKey][cell.Text] = struct{}{}
		}
	}
	series = make([]dataset.MonthCount, 0, len(seen))
	for _, month := range t.MonthKeys() {
		series = append(series, dataset.MonthCount{Month: month, Count: len(seen[month])})
	}
	return series, true
}

// Pivot cross-tabulates months against the display values of categoryColumn. Every month in
// the table is a row, every category present is a column (sorted), missing pairs are 0.
// An absent column yields a pivot with months but no categories.
func Pivot(t *dataset.CanonicalTable, categoryColumn string) dataset.PivotTable {
	p := dataset.PivotTable{
		Column:     categoryColumn,
		Months:     t.MonthKeys(),
		Categories: []string{},
		Counts:     make(map[string]map[string]int),
	}
	for _, month := range p.Months {
		p.Counts[month] = make(map[string]int)
	}
	if !t.HasColumn(categoryColumn) {
		return p
	}

	seen := make(map[string]bool)
	for _, r := range t.Rows {
		if !r.Resolved {
			continue
		}
		v := r.Row[categoryColumn].Display()
		if !seen[v] {
			seen[v] = true
			p.Categories = append(p.Categories, v)
		}
		p.Counts[r.MonthKey][v]++
	}
	sort.Strings(p.Categories)
	for _, month := range p.Months {
		for _, c := range p.Categories {
			if _, ok := p.Counts[month][c]; !ok {
				p.Counts[month][c] = 0
			}
		}
	}
	return p
}

// FilterByValues keeps rows whose display value is among the selected values for every
// filtered column. Columns absent from the table and empty selections are ignored.
func FilterByValues(t *dataset.CanonicalTable, filters map[string][]string) *dataset.CanonicalTable {
	active := make(map[string]map[string]bool)
	for column, values := range filters {
		if len(values) == 0 || !t.HasColumn(column) {
			continue
		}
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[v] = true
		}
		active[column] = set
	}

	out := t.Subset(func(r dataset.CanonicalRow) bool {
		for column, set := range active {
			if !set[r.Row[column].Display()] {
				return false
			}
		}
		return true
	})
	out.Invalid = t.Invalid
	return out
}

// DistinctValues lists the display values of column in sorted order, for filter pickers
func DistinctValues(t *dataset.CanonicalTable, column string) []string {
	if !t.HasColumn(column) {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Rows {
		v := r.Row[column].Display()
		if r.Resolved && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
