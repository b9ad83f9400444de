package excel

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"treblereport/domain/dataset"
	"treblereport/internal"
	"treblereport/internal/errors"
	"treblereport/internal/textnorm"
)

var readLogger = internal.DefaultLogger.With("DataReader")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DataReader decodes CSV and XLSX uploads into tables
type DataReader struct {
	opts LoadOptions
}

// NewDataReader creates a reader for the given decode options
func NewDataReader(opts LoadOptions) *DataReader {
	if opts.Encoding == "" {
		opts.Encoding = EncodingUTF8
	}
	return &DataReader{opts: opts}
}

// ReadFile reads a file from disk. The file name in the options is replaced by path.
func ReadFile(path string, opts LoadOptions) (*dataset.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.LoadFailed(err)
	}
	opts.FileName = filepath.Base(path)
	return NewDataReader(opts).ReadBytes(data)
}

// ReadBytes decodes raw upload content. Any decode problem is a LOAD_FAILED error; no
// partial table is ever returned.
func (r *DataReader) ReadBytes(data []byte) (*dataset.Table, error) {
	start := time.Now()
	var (
		t   *dataset.Table
		err error
	)
	if r.isWorkbook(data) {
		t, err = r.readExcelData(data)
	} else {
		t, err = r.readCSVData(data)
	}
	if err != nil {
		readLogger.Warn("failed to read %s: %v", r.opts.FileName, err)
		return nil, errors.LoadFailed(err)
	}
	if r.opts.FixMojibake {
		t = textnorm.FixTable(t)
	}
	readLogger.Info("%s processed in %.2fms (%d columns, %d rows)",
		r.opts.FileName, float64(time.Since(start).Nanoseconds())/1e6, len(t.Headers), len(t.Rows))
	return t, nil
}

// Sheets lists the sheet names of a workbook upload
func Sheets(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.LoadFailed(err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func (r *DataReader) isWorkbook(data []byte) bool {
	switch strings.ToLower(filepath.Ext(r.opts.FileName)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return true
	case ".csv", ".txt", ".tsv":
		return false
	}
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

func (r *DataReader) readExcelData(data []byte) (*dataset.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	dates, err := normalizeDateCells(f, sheet, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	readLogger.Debug("sheet %q read (%d rows, %d date cells)", sheet, len(rows), dates)
	return processRows(rows)
}

// isoCellLayout is how typed date cells are emitted, so every parse mode sees an
// unambiguous value regardless of the workbook number format.
const isoCellLayout = "2006-01-02 15:04:05"

// normalizeDateCells rewrites numeric cells carrying a date number format as isoCellLayout
// text. Formatted values such as mm-dd-yy would otherwise be read day-first.
func normalizeDateCells(f *excelize.File, sheet string, rows [][]string) (int, error) {
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, err
	}
	use1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		use1904 = *props.Date1904
	}

	dateStyles := map[int]bool{}
	converted := 0
	for i := 0; i < len(raw) && i < len(rows); i++ {
		for j, value := range raw[i] {
			if value == "" || j >= len(rows[i]) {
				continue
			}
			serial, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return converted, err
			}
			styleID, err := f.GetCellStyle(sheet, cell)
			if err != nil {
				return converted, err
			}
			isDate, seen := dateStyles[styleID]
			if !seen {
				isDate = isDateStyle(f, styleID)
				dateStyles[styleID] = isDate
			}
			if !isDate {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, use1904)
			if err != nil {
				continue
			}
			rows[i][j] = t.Format(isoCellLayout)
			converted++
		}
	}
	return converted, nil
}

// builtInDateFormats are the built-in number format ids that render dates or times,
// including the locale-specific ids 27-36 and 50-58.
var builtInDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

func isDateStyle(f *excelize.File, styleID int) bool {
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return builtInDateFormats[style.NumFmt]
}

// isDateFormatCode reports whether a custom format code has date or time tokens outside
// quoted literals, escaped or padding characters and bracketed sections such as colors or
// locales. Bracketed [h], [mm] and [ss] are elapsed-time tokens.
func isDateFormatCode(code string) bool {
	section, _, _ := strings.Cut(code, ";")
	var (
		inQuote, skip bool
		bracket       *strings.Builder
	)
	for _, c := range strings.ToLower(section) {
		switch {
		case skip:
			skip = false
		case inQuote:
			inQuote = c != '"'
		case bracket != nil:
			if c != ']' {
				bracket.WriteRune(c)
				continue
			}
			if elapsedToken(bracket.String()) {
				return true
			}
			bracket = nil
		case c == '\\' || c == '_' || c == '*':
			skip = true
		case c == '"':
			inQuote = true
		case c == '[':
			bracket = &strings.Builder{}
		case c == 'y' || c == 'd' || c == 'm' || c == 'h' || c == 's':
			return true
		}
	}
	return false
}

func elapsedToken(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c != rune(s[0]) {
			return false
		}
	}
	return s[0] == 'h' || s[0] == 'm' || s[0] == 's'
}

func (r *DataReader) readCSVData(data []byte) (*dataset.Table, error) {
	text, err := decode(data, r.opts.Encoding)
	if err != nil {
		return nil, err
	}

	delim := r.opts.Delimiter
	if delim == 0 {
		delim = SniffDelimiter(text)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return processRows(rows)
}

// decode converts raw bytes to UTF-8 text under the selected encoding
func decode(data []byte, enc Encoding) (string, error) {
	switch enc {
	case EncodingUTF8, "":
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", fmt.Errorf("content is not valid utf-8; try latin-1 or cp1252")
		}
		return string(data), nil
	case EncodingLatin1:
		return transformString(data, charmap.ISO8859_1.NewDecoder())
	case EncodingCP1252:
		return transformString(data, charmap.Windows1252.NewDecoder())
	case EncodingUTF16:
		return transformString(data, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}
}

func transformString(data []byte, t transform.Transformer) (string, error) {
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), t))
	if err != nil {
		return "", fmt.Errorf("failed to decode content: %w", err)
	}
	return string(out), nil
}

// SniffDelimiter picks the separator from the first lines of delimited text: the candidate
// with the highest count that is identical across sampled lines wins, then the highest
// count on the header line, then comma.
func SniffDelimiter(text string) rune {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() && len(lines) < 10 {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, sc.Text())
		}
	}
	if len(lines) == 0 {
		return ','
	}

	best, bestCount := rune(0), 0
	for _, d := range Delimiters {
		n := countOutsideQuotes(lines[0], d)
		if n == 0 {
			continue
		}
		consistent := true
		for _, l := range lines[1:] {
			if countOutsideQuotes(l, d) != n {
				consistent = false
				break
			}
		}
		if consistent && n > bestCount {
			best, bestCount = d, n
		}
	}
	if best != 0 {
		return best
	}

	for _, d := range Delimiters {
		if n := countOutsideQuotes(lines[0], d); n > bestCount {
			best, bestCount = d, n
		}
	}
	if best != 0 {
		return best
	}
	return ','
}

func countOutsideQuotes(line string, d rune) int {
	n, quoted := 0, false
	for _, c := range line {
		switch {
		case c == '"':
			quoted = !quoted
		case c == d && !quoted:
			n++
		}
	}
	return n
}

// processRows turns raw string rows into a Table: the first non-empty row is the header,
// blank cells are missing, short rows are padded, fully blank rows are skipped.
func processRows(rows [][]string) (*dataset.Table, error) {
	for len(rows) > 0 && blankRow(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file has no header row")
	}

	headers := uniqueHeaders(rows[0])
	t := &dataset.Table{Headers: headers, Rows: make([]dataset.Row, 0, len(rows)-1)}
	for _, raw := range rows[1:] {
		if blankRow(raw) {
			continue
		}
		row := make(dataset.Row, len(headers))
		for j, h := range headers {
			if j < len(raw) {
				row[h] = dataset.TextCell(raw[j])
			} else {
				row[h] = dataset.MissingCell()
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// uniqueHeaders trims header names, names blank ones by position and suffixes repeats
// with ".1", ".2", ...
func uniqueHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s.%d", h, n)
		}
		used[name] = true
		headers[i] = name
	}
	return headers
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
