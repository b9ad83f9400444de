package excel

import (
	"fmt"
	"strings"
)

// Encoding names the character sets an upload may be decoded with
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "latin-1"
	EncodingCP1252 Encoding = "cp1252"
	EncodingUTF16  Encoding = "utf-16"
)

// ParseEncoding accepts the common spellings of the supported encodings
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return EncodingUTF8, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1, nil
	case "cp1252", "windows-1252":
		return EncodingCP1252, nil
	case "utf-16", "utf16":
		return EncodingUTF16, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", name)
	}
}

// Delimiters are the separators tried when sniffing a delimited text file
var Delimiters = []rune{',', ';', '\t', '|'}

// LoadOptions controls how an upload is decoded into a table
type LoadOptions struct {
	// FileName is used only to pick the format from its extension.
	FileName string `json:"file_name"`
	// Delimiter is sniffed when zero. Ignored for workbooks.
	Delimiter rune     `json:"delimiter,omitempty"`
	Encoding  Encoding `json:"encoding,omitempty"`
	// Sheet defaults to the first sheet of a workbook.
	Sheet       string `json:"sheet,omitempty"`
	FixMojibake bool   `json:"fix_mojibake"`
}

// CacheKey identifies the decode options for memoization alongside the content hash
func (o LoadOptions) CacheKey() string {
	return fmt.Sprintf("%s|%q|%s|%s|%t", strings.ToLower(o.FileName), o.Delimiter, o.Encoding, o.Sheet, o.FixMojibake)
}

// ParseDelimiter maps a user-supplied delimiter ("", ",", ";", "\t", "tab", "|") to a rune;
// zero means sniff.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "", "auto":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	for _, d := range Delimiters {
		if s == string(d) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unsupported delimiter %q", s)
}
