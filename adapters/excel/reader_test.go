package excel

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"treblereport/domain/dataset"
	"treblereport/internal/errors"
	"treblereport/internal/months"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3\n", ','},
		{"semicolon with decimal commas", "a;b;c\n1,5;2;3\n4;5,5;6\n", ';'},
		{"tab", "a\tb\n1\t2\n", '\t'},
		{"pipe", "a|b|c\n1|2|3\n", '|'},
		{"quoted comma ignored", "\"x,y\";b\n1;2\n", ';'},
		{"single column", "a\n1\n", ','},
		{"empty", "", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SniffDelimiter(tt.text))
		})
	}
}

func TestReadCSV(t *testing.T) {
	data := []byte("\xEF\xBB\xBF Celular ;Fecha;Estado;Estado\n300;01/03/2024;Enviado;x\n\n301;;  ;y\n302;02/03/2024\n")

	tbl, err := NewDataReader(LoadOptions{FileName: "export.csv"}).ReadBytes(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Celular", "Fecha", "Estado", "Estado.1"}, tbl.Headers)
	require.Len(t, tbl.Rows, 3, "blank line skipped")

	assert.Equal(t, dataset.TextCell("Enviado"), tbl.Rows[0]["Estado"])
	assert.True(t, tbl.Rows[1]["Fecha"].Missing)
	assert.True(t, tbl.Rows[1]["Estado"].Missing, "whitespace-only is missing")
	assert.True(t, tbl.Rows[2]["Estado.1"].Missing, "short rows are padded")
}

func TestReadCSVEncodings(t *testing.T) {
	latin1, err := charmap.ISO8859_1.NewEncoder().String("Estado de la conversación\nAbierta\n")
	require.NoError(t, err)

	_, err = NewDataReader(LoadOptions{FileName: "a.csv"}).ReadBytes([]byte(latin1))
	require.Error(t, err, "latin-1 bytes are not valid utf-8")
	assert.Equal(t, errors.CodeLoadFailed, errors.GetCode(err))

	tbl, err := NewDataReader(LoadOptions{FileName: "a.csv", Encoding: EncodingLatin1}).ReadBytes([]byte(latin1))
	require.NoError(t, err)
	assert.Equal(t, []string{"Estado de la conversación"}, tbl.Headers)

	utf16 := []byte{0xFF, 0xFE, 'a', 0, ',', 0, 'b', 0, '\n', 0, '1', 0, ',', 0, '2', 0}
	tbl, err = NewDataReader(LoadOptions{FileName: "a.csv", Encoding: EncodingUTF16}).ReadBytes(utf16)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Headers)
	assert.Equal(t, "2", tbl.Rows[0]["b"].Text)
}

func TestReadCSVFixMojibake(t *testing.T) {
	data := []byte("Estado de la conversaciÃ³n\nAbierta\n")
	tbl, err := NewDataReader(LoadOptions{FileName: "a.csv", FixMojibake: true}).ReadBytes(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Estado de la conversación"}, tbl.Headers)
	assert.Equal(t, "Abierta", tbl.Rows[0]["Estado de la conversación"].Text)
}

func TestReadEmptyFileFails(t *testing.T) {
	_, err := NewDataReader(LoadOptions{FileName: "a.csv"}).ReadBytes([]byte("\n\n"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeLoadFailed))
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Celular", "Fecha"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"300", "2024-03-01"}))
	_, err := f.NewSheet("Otra")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Otra", "A1", &[]interface{}{"x"}))
	require.NoError(t, f.SetSheetRow("Otra", "A2", &[]interface{}{"1"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadWorkbook(t *testing.T) {
	data := workbook(t)

	tbl, err := NewDataReader(LoadOptions{FileName: "export.xlsx"}).ReadBytes(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Celular", "Fecha"}, tbl.Headers)
	assert.Equal(t, "2024-03-01", tbl.Rows[0]["Fecha"].Text)

	tbl, err = NewDataReader(LoadOptions{Sheet: "Otra"}).ReadBytes(data)
	require.NoError(t, err, "format detected from content")
	assert.Equal(t, []string{"x"}, tbl.Headers)

	_, err = NewDataReader(LoadOptions{FileName: "export.xlsx", Sheet: "Nope"}).ReadBytes(data)
	assert.True(t, errors.HasCode(err, errors.CodeLoadFailed))

	sheets, err := Sheets(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Otra"}, sheets)
}

func typedDateWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Fecha del despliegue", "Clics"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), 1234}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{time.Date(2024, 4, 2, 10, 30, 0, 0, time.UTC), 7}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]interface{}{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 2.5}))

	// A custom day-first format and a grouped number format.
	custom := "dd/mm/yyyy"
	dayFirst, err := f.NewStyle(&excelize.Style{CustomNumFmt: &custom})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Sheet1", "A5", 45366)) // 2024-03-15
	require.NoError(t, f.SetCellStyle("Sheet1", "A5", "A5", dayFirst))
	thousands, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Sheet1", "B5", 45366))
	require.NoError(t, f.SetCellStyle("Sheet1", "B5", "B5", thousands))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadWorkbookTypedDates(t *testing.T) {
	tbl, err := NewDataReader(LoadOptions{FileName: "export.xlsx"}).ReadBytes(typedDateWorkbook(t))
	require.NoError(t, err)

	col, ok := tbl.Column("Fecha del despliegue")
	require.True(t, ok)
	assert.Equal(t, []string{
		"2024-03-05 00:00:00",
		"2024-04-02 10:30:00",
		"2024-05-01 00:00:00",
		"2024-03-15 00:00:00",
	}, col)
	assert.Equal(t, "1234", tbl.Rows[0]["Clics"].Text, "numbers are not dates")
	assert.Equal(t, "45,366", tbl.Rows[3]["Clics"].Text, "grouped number keeps its format")

	want := []string{"2024-03", "2024-04", "2024-05", "2024-03"}
	for _, kind := range []dataset.ParseModeKind{
		dataset.ModeAutoInfer, dataset.ModeDayFirst, dataset.ModeMonthFirst,
		dataset.ModeISOStrict, dataset.ModeSliceFirst7,
	} {
		ct, err := months.Canonicalize(tbl, months.Config{
			DateColumn: "Fecha del despliegue",
			Mode:       dataset.ParseMode{Kind: kind},
		})
		require.NoError(t, err, kind)
		assert.Zero(t, ct.Invalid, kind)
		got := make([]string, len(ct.Rows))
		for i, r := range ct.Rows {
			got[i] = r.MonthKey
		}
		assert.Equal(t, want, got, kind)
	}
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"dd/mm/yyyy", true},
		{"yyyy-mm-dd hh:mm", true},
		{"[$-409]mmmm d, yyyy", true},
		{"[h]:mm:ss", true},
		{"mmm-yy;@", true},
		{"#,##0", false},
		{"0.00%", false},
		{"[Magenta]#,##0;[White]-#,##0", false},
		{`#,##0 "días"`, false},
		{`_(* #,##0_);_(* \(#,##0\)`, false},
		{"General", false},
		{"@", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isDateFormatCode(tt.code), tt.code)
	}
}

func TestParseEncodingAndDelimiter(t *testing.T) {
	enc, err := ParseEncoding("Windows-1252")
	require.NoError(t, err)
	assert.Equal(t, EncodingCP1252, enc)
	_, err = ParseEncoding("ebcdic")
	assert.Error(t, err)

	d, err := ParseDelimiter("tab")
	require.NoError(t, err)
	assert.Equal(t, '\t', d)
	d, err = ParseDelimiter("")
	require.NoError(t, err)
	assert.Zero(t, d)
	_, err = ParseDelimiter("::")
	assert.Error(t, err)
}
