package excel

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"treblereport/domain/dataset"
	"treblereport/internal"
	"treblereport/internal/report"
)

var exportLogger = internal.DefaultLogger.With("Exporter")

const maxSheetName = 31

// Export file names for a month key
func MonthCSVName(month string) string  { return "treble_mes_" + month + ".csv" }
func CountsZipName(month string) string { return "conteos_" + month + ".zip" }
func WorkbookName(month string) string  { return "resumen_" + month + ".xlsx" }
func ReportHTMLName(month string) string {
	return "resumen_" + month + ".html"
}

// FrequencyCSVName is the zip entry / download name of one column's counts
func FrequencyCSVName(column string) string {
	return "conteo_" + safeFileName(column) + ".csv"
}

// WriteMonthCSV writes the rows with their literal cell text under the original headers,
// separated by delim (comma when zero). Reading the output back with the same delimiter
// reproduces every cell.
func WriteMonthCSV(w io.Writer, t *dataset.CanonicalTable, delim rune) error {
	cw := csv.NewWriter(w)
	if delim != 0 {
		cw.Comma = delim
	}
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	record := make([]string, len(t.Headers))
	for _, r := range t.Rows {
		for i, h := range t.Headers {
			record[i] = r.Row[h].Raw()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFrequencyCSV writes one frequency table as "<column>,conteo"
func WriteFrequencyCSV(w io.Writer, ft dataset.FrequencyTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ft.Column, "conteo"}); err != nil {
		return err
	}
	for _, e := range ft.Entries {
		if err := cw.Write([]string{e.Value, fmt.Sprint(e.Count)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFrequencyZIP bundles every frequency table as its own CSV entry
func WriteFrequencyZIP(w io.Writer, tables []dataset.FrequencyTable) error {
	zw := zip.NewWriter(w)
	used := make(map[string]bool, len(tables))
	for _, ft := range tables {
		name := FrequencyCSVName(ft.Column)
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("conteo_%s_%d.csv", safeFileName(ft.Column), n)
		}
		used[name] = true

		entry, err := zw.Create(name)
		if err != nil {
			return err
		}
		if err := WriteFrequencyCSV(entry, ft); err != nil {
			return err
		}
	}
	return zw.Close()
}

// WriteWorkbook writes the combined workbook: the month rows, one sheet per frequency
// table, the raw KPI table and the display KPI table.
func WriteWorkbook(w io.Writer, res *report.Result, fmtr *report.Formatter) error {
	f := excelize.NewFile()
	defer f.Close()

	names := newSheetNamer()
	first := names.next("registros_mes")
	if err := f.SetSheetName("Sheet1", first); err != nil {
		return err
	}
	monthRows := [][]interface{}{toRow(res.MonthRows.Headers)}
	for _, r := range res.MonthRows.Rows {
		row := make([]interface{}, len(res.MonthRows.Headers))
		for i, h := range res.MonthRows.Headers {
			row[i] = r.Row[h].Raw()
		}
		monthRows = append(monthRows, row)
	}
	if err := writeSheet(f, first, monthRows); err != nil {
		return err
	}

	for _, ft := range res.Frequencies {
		rows := [][]interface{}{{ft.Column, "conteo"}}
		for _, e := range ft.Entries {
			rows = append(rows, []interface{}{e.Value, e.Count})
		}
		if err := addSheet(f, names.next("conteo_"+ft.Column), rows); err != nil {
			return err
		}
	}

	raw := [][]interface{}{toRow(append([]string{"Mes"}, dataset.KPINames...))}
	for _, rec := range res.KPIs {
		row := []interface{}{rec.Month}
		for _, name := range dataset.KPINames {
			if v := rec.Metric(name); v.Valid {
				row = append(row, v.V)
			} else {
				row = append(row, nil)
			}
		}
		raw = append(raw, row)
	}
	if err := addSheet(f, names.next("kpis"), raw); err != nil {
		return err
	}

	display := [][]interface{}{toRow(report.DisplayHeaders)}
	for _, dr := range fmtr.DisplayKPIs(res.KPIs) {
		display = append(display, toRow(dr.Cells()))
	}
	if err := addSheet(f, names.next("kpis_display"), display); err != nil {
		return err
	}

	return f.Write(w)
}

// WriteBundle writes the month CSV, the counts ZIP, the workbook and the HTML summary into
// dir concurrently and returns the written paths.
func WriteBundle(ctx context.Context, dir string, res *report.Result, fmtr *report.Formatter, delim rune) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	jobs := []struct {
		name  string
		write func(io.Writer) error
	}{
		{MonthCSVName(res.SelectedMonth), func(w io.Writer) error { return WriteMonthCSV(w, res.MonthRows, delim) }},
		{CountsZipName(res.SelectedMonth), func(w io.Writer) error { return WriteFrequencyZIP(w, res.Frequencies) }},
		{WorkbookName(res.SelectedMonth), func(w io.Writer) error { return WriteWorkbook(w, res, fmtr) }},
		{ReportHTMLName(res.SelectedMonth), func(w io.Writer) error {
			_, err := w.Write(report.HTML(res, fmtr))
			return err
		}},
	}

	paths := make([]string, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		paths[i] = filepath.Join(dir, job.name)
		path, write := paths[i], job.write
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return writeFile(path, write)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	exportLogger.Info("wrote %d files for %s to %s", len(paths), res.SelectedMonth, dir)
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(out); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return out.Close()
}

func addSheet(f *excelize.File, name string, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	return writeSheet(f, name, rows)
}

func writeSheet(f *excelize.File, name string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// sheetNamer produces valid, unique worksheet names
type sheetNamer struct {
	used map[string]bool
}

func newSheetNamer() *sheetNamer {
	return &sheetNamer{used: make(map[string]bool)}
}

// next strips characters Excel rejects, truncates to 31 characters and appends a numeric
// suffix when the (case-insensitive) name is taken.
func (s *sheetNamer) next(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, "'")
	if name == "" {
		name = "hoja"
	}

	candidate := truncateRunes(name, maxSheetName)
	for n := 2; s.used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf("_%d", n)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	s.used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func safeFileName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) || r < 32 {
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return "columna"
	}
	return s
}
