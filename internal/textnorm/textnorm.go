// Package textnorm repairs double-encoded text and folds strings for fuzzy matching.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"treblereport/domain/dataset"
)

// narrowEncodings are tried in order when undoing a UTF-8 -> 8-bit mis-decode
var narrowEncodings = []encoding.Encoding{
	charmap.ISO8859_1,
	charmap.Windows1252,
}

// FixMojibake reverses text that was UTF-8 encoded and then decoded as Latin-1/Windows-1252,
// e.g. "ConversaciÃ³n" -> "Conversación". It never fails: if the string cannot be
// re-encoded into a narrow charset, or the bytes are not valid UTF-8, the input is returned.
func FixMojibake(text string) string {
	if isASCII(text) {
		return text
	}
	for _, enc := range narrowEncodings {
		raw, err := enc.NewEncoder().String(text)
		if err != nil {
			continue
		}
		if !utf8.ValidString(raw) {
			continue
		}
		return raw
	}
	return text
}

// NormalizeForMatch case-folds, trims and strips diacritics so that "Enviado", " ENVIADO "
// and "envíado" compare equal. Only used for rule matching, never for display.
func NormalizeForMatch(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}
	return cases.Fold().String(strings.TrimSpace(stripped))
}

// MatchKey is NormalizeForMatch applied after mojibake repair
func MatchKey(text string) string {
	return NormalizeForMatch(FixMojibake(text))
}

// FixTable returns a copy of t with mojibake repaired in headers and every text cell.
// The input table is not modified.
func FixTable(t *dataset.Table) *dataset.Table {
	if t == nil {
		return nil
	}
	headers := make([]string, len(t.Headers))
	rename := make(map[string]string, len(t.Headers))
	for i, h := range t.Headers {
		headers[i] = FixMojibake(h)
		rename[h] = headers[i]
	}

	rows := make([]dataset.Row, len(t.Rows))
	for i, row := range t.Rows {
		fixed := make(dataset.Row, len(row))
		for col, cell := range row {
			if !cell.Missing {
				cell.Text = FixMojibake(cell.Text)
			}
			name, ok := rename[col]
			if !ok {
				name = FixMojibake(col)
			}
			fixed[name] = cell
		}
		rows[i] = fixed
	}
	return &dataset.Table{Headers: headers, Rows: rows}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
