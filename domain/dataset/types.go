package dataset

import (
	"sort"
)

// NoDataLabel is the display value used for missing cells in frequency tables and pivots.
const NoDataLabel = "No data"

// Cell is a single raw table value. Missing cells are represented explicitly, never omitted.
type Cell struct {
	Text    string `json:"text"`
	Missing bool   `json:"missing,omitempty"`
}

// naTokens are the literal cell texts read as missing, matching the usual spreadsheet and
// dataframe NA spellings. Whitespace-only text is a value.
var naTokens = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true, "-1.#QNAN": true,
	"-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true, "<NA>": true, "N/A": true,
	"NA": true, "NULL": true, "NaN": true, "None": true, "n/a": true, "nan": true, "null": true,
}

// TextCell builds a cell from raw text. Empty text and NA tokens are missing; the text is
// kept so exports reproduce it.
func TextCell(s string) Cell {
	if naTokens[s] {
		return Cell{Text: s, Missing: true}
	}
	return Cell{Text: s}
}

// MissingCell returns an explicit missing cell
func MissingCell() Cell {
	return Cell{Missing: true}
}

// Display returns the string-cast form of the cell, with missing mapped to NoDataLabel
func (c Cell) Display() string {
	if c.Missing {
		return NoDataLabel
	}
	return c.Text
}

// Raw returns the literal text of the cell as loaded, including whitespace-only text
func (c Cell) Raw() string {
	return c.Text
}

// Row maps column name to cell. Every row of a Table carries every header.
type Row map[string]Cell

// Table is the raw tabular input as decoded from an upload. It is immutable once loaded.
type Table struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// HasColumn reports whether the column is part of the table's header set
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// Column returns the raw text of a column, in row order. ok is false if the column is absent.
func (t *Table) Column(name string) (values []string, ok bool) {
	if !t.HasColumn(name) {
		return nil, false
	}
	values = make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[name].Raw()
	}
	return values, true
}

// CanonicalRow is a raw row augmented with its derived month partition
type CanonicalRow struct {
	Row      Row    `json:"row"`
	MonthKey string `json:"month_key,omitempty"`
	Year     int    `json:"year,omitempty"`
	MonthNum int    `json:"month_num,omitempty"`
	Resolved bool   `json:"resolved"`
}

// CanonicalTable holds the rows that survived month resolution. Rows is the valid subset only;
// Invalid counts the rows that were excluded.
type CanonicalTable struct {
	Headers []string       `json:"headers"`
	Rows    []CanonicalRow `json:"rows"`
	Invalid int            `json:"invalid"`
}

// HasColumn reports whether the column is part of the header set
func (t *CanonicalTable) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// Len returns the number of resolved rows
func (t *CanonicalTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Subset returns a new table sharing headers and holding only rows accepted by keep.
// Unresolved rows are never included.
func (t *CanonicalTable) Subset(keep func(CanonicalRow) bool) *CanonicalTable {
	out := &CanonicalTable{Headers: t.Headers}
	for _, r := range t.Rows {
		if r.Resolved && keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Month returns the rows whose month key equals key
func (t *CanonicalTable) Month(key string) *CanonicalTable {
	return t.Subset(func(r CanonicalRow) bool { return r.MonthKey == key })
}

// MonthKeys returns the distinct month keys present, ascending
func (t *CanonicalTable) MonthKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, r := range t.Rows {
		if !r.Resolved || seen[r.MonthKey] {
			continue
		}
		seen[r.MonthKey] = true
		keys = append(keys, r.MonthKey)
	}
	sort.Strings(keys)
	return keys
}

// FrequencyEntry is one value of a frequency table
type FrequencyEntry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FrequencyTable counts rows per display value of one column, count descending,
// ties in first-seen order.
type FrequencyTable struct {
	Column  string           `json:"column"`
	Entries []FrequencyEntry `json:"entries"`
}

// MonthCount is one bucket of a month-ordered series
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// PivotTable is a month × category cross-tabulation
type PivotTable struct {
	Column     string                    `json:"column"`
	Months     []string                  `json:"months"`
	Categories []string                  `json:"categories"`
	Counts     map[string]map[string]int `json:"counts"`
}

// Count returns the cell value for (month, category), 0 when absent
func (p PivotTable) Count(month, category string) int {
	if byCat, ok := p.Counts[month]; ok {
		return byCat[category]
	}
	return 0
}
