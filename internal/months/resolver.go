// Package months turns raw date-like columns into canonical YYYY-MM partition keys.
package months

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"treblereport/domain/dataset"
)

// Options tunes resolver leniency
type Options struct {
	// StrictMonthRange rejects slice7 keys whose month is outside 1-12 (e.g. "2024-13").
	// Off by default: slice7 takes the first seven characters verbatim.
	StrictMonthRange bool
}

// Result is the outcome of resolving one cell
type Result struct {
	Key   string
	Year  int
	Month int
	OK    bool
}

func none() Result { return Result{} }

// keyResult builds a Result by slicing the key, the same way for every mode
func keyResult(key string) Result {
	year, _ := strconv.Atoi(key[0:4])
	month, _ := strconv.Atoi(key[5:7])
	return Result{Key: key, Year: year, Month: month, OK: true}
}

func ymdResult(year, month int) Result {
	return keyResult(fmt.Sprintf("%04d-%02d", year, month))
}

type dayOrder int

const (
	dayFirst dayOrder = iota
	monthFirst
)

var (
	reYMD        = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})(?:[ T].*)?$`)
	reYM         = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})$`)
	reCompactYMD = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	reAmbiguous  = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{4}|\d{2})(?:[ T,].*)?$`)
	reSerial     = regexp.MustCompile(`^\d{5}(?:\.\d+)?$`)
	reISOStrict  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
	reSlice7     = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// textLayouts are tried for dates carrying month names, after Spanish names are mapped to English
var textLayouts = []string{
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	time.ANSIC,
	"2 Jan 2006",
	"2-Jan-2006",
	"2-Jan-06",
	"2 January 2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
	"Jan 2006",
	"January 2006",
	"2 Jan 2006 15:04",
	"2 Jan 2006 15:04:05",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006 3:04 PM",
}

var spanishMonths = map[string]string{
	"enero": "January", "ene": "Jan",
	"febrero": "February", "feb": "Feb",
	"marzo": "March", "mar": "Mar",
	"abril": "April", "abr": "Apr",
	"mayo": "May", "may": "May",
	"junio": "June", "jun": "Jun",
	"julio": "July", "jul": "Jul",
	"agosto": "August", "ago": "Aug",
	"septiembre": "September", "setiembre": "September", "sep": "Sep", "sept": "Sep", "set": "Sep",
	"octubre": "October", "oct": "Oct",
	"noviembre": "November", "nov": "Nov",
	"diciembre": "December", "dic": "Dec",
}

// Resolver resolves cells under one parse mode. Build it once per column.
type Resolver struct {
	mode dataset.ParseMode
	opts Options
	re   *regexp.Regexp
}

// NewResolver validates the mode. RegexExtract patterns must compile and carry exactly two
// capture groups (year, month).
func NewResolver(mode dataset.ParseMode, opts Options) (*Resolver, error) {
	if mode.Kind == "" {
		mode.Kind = dataset.ModeAutoInfer
	}
	r := &Resolver{mode: mode, opts: opts}
	switch mode.Kind {
	case dataset.ModeAutoInfer, dataset.ModeDayFirst, dataset.ModeMonthFirst,
		dataset.ModeISOStrict, dataset.ModeSliceFirst7:
	case dataset.ModeRegexExtract:
		re, err := regexp.Compile(mode.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid month pattern: %w", err)
		}
		if re.NumSubexp() != 2 {
			return nil, fmt.Errorf("month pattern must have exactly two capture groups (year, month), got %d", re.NumSubexp())
		}
		r.re = re
	default:
		return nil, fmt.Errorf("unknown parse mode %q", mode.Kind)
	}
	return r, nil
}

// Mode returns the parse mode the resolver was built with
func (r *Resolver) Mode() dataset.ParseMode {
	return r.mode
}

// Resolve maps every row of column to a month key. When a primary value fails and fallback
// is non-nil, the fallback value of the same row is tried under the same mode. The primary
// always wins when it resolves. invalid counts rows where both failed.
func (r *Resolver) Resolve(column, fallback []string) (results []Result, invalid int) {
	order := dayFirst
	switch r.mode.Kind {
	case dataset.ModeMonthFirst:
		order = monthFirst
	case dataset.ModeAutoInfer:
		order = inferOrder(column, fallback)
	}

	results = make([]Result, len(column))
	for i, raw := range column {
		res := r.resolve(raw, order)
		if !res.OK && fallback != nil && i < len(fallback) {
			res = r.resolve(fallback[i], order)
		}
		if !res.OK {
			invalid++
		}
		results[i] = res
	}
	return results, invalid
}

// ResolveOne resolves a single value. AutoInfer assumes day-first for ambiguous values.
func (r *Resolver) ResolveOne(raw string) Result {
	order := dayFirst
	if r.mode.Kind == dataset.ModeMonthFirst {
		order = monthFirst
	}
	return r.resolve(raw, order)
}

func (r *Resolver) resolve(raw string, order dayOrder) Result {
	switch r.mode.Kind {
	case dataset.ModeISOStrict:
		return resolveISOStrict(raw)
	case dataset.ModeSliceFirst7:
		return resolveSlice7(raw, r.opts.StrictMonthRange)
	case dataset.ModeRegexExtract:
		return resolveRegex(r.re, raw)
	default:
		return resolveDate(raw, order, r.mode.Kind == dataset.ModeAutoInfer)
	}
}

// ResolveMonths is the one-shot form of NewResolver + Resolve
func ResolveMonths(column, fallback []string, mode dataset.ParseMode, opts Options) ([]Result, int, error) {
	r, err := NewResolver(mode, opts)
	if err != nil {
		return nil, 0, err
	}
	results, invalid := r.Resolve(column, fallback)
	return results, invalid, nil
}

func resolveISOStrict(raw string) Result {
	if !reISOStrict.MatchString(raw) {
		return none()
	}
	t, err := time.Parse("2006-01-02 15:04:05", raw)
	if err != nil {
		return none()
	}
	return ymdResult(t.Year(), int(t.Month()))
}

func resolveSlice7(raw string, strictRange bool) Result {
	s := strings.TrimSpace(raw)
	runes := []rune(s)
	if len(runes) < 7 {
		return none()
	}
	key := string(runes[:7])
	if !reSlice7.MatchString(key) {
		return none()
	}
	res := keyResult(key)
	if strictRange && (res.Month < 1 || res.Month > 12) {
		return none()
	}
	return res
}

func resolveRegex(re *regexp.Regexp, raw string) Result {
	m := re.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return none()
	}
	year, err := strconv.Atoi(strings.TrimSpace(m[1]))
	if err != nil {
		return none()
	}
	if len(strings.TrimSpace(m[1])) <= 2 {
		year = expandYear(year)
	}
	month, err := strconv.Atoi(strings.TrimSpace(m[2]))
	if err != nil {
		return none()
	}
	if !validYearMonth(year, month) {
		return none()
	}
	return ymdResult(year, month)
}

func resolveDate(raw string, order dayOrder, allowSerial bool) Result {
	s := strings.TrimSpace(raw)
	if s == "" {
		return none()
	}

	if m := reYMD.FindStringSubmatch(s); m != nil {
		return fromParts(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := reYM.FindStringSubmatch(s); m != nil {
		return fromParts(atoi(m[1]), atoi(m[2]), 1)
	}
	if m := reCompactYMD.FindStringSubmatch(s); m != nil {
		return fromParts(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := reAmbiguous.FindStringSubmatch(s); m != nil {
		a, b := atoi(m[1]), atoi(m[2])
		year := atoi(m[3])
		if len(m[3]) == 2 {
			year = expandYear(year)
		}
		day, month := a, b
		if order == monthFirst {
			day, month = b, a
		}
		if res := fromParts(year, month, day); res.OK {
			return res
		}
		// Preference, not a constraint: 13/01 under month-first still parses.
		return fromParts(year, day, month)
	}
	if allowSerial && reSerial.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				return ymdResult(t.Year(), int(t.Month()))
			}
		}
		return none()
	}

	text := englishMonthNames(s)
	for _, layout := range textLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return ymdResult(t.Year(), int(t.Month()))
		}
	}
	return none()
}

// inferOrder votes on day/month order from unambiguous values (a component above 12).
// Ties, including no evidence, resolve to day-first.
func inferOrder(columns ...[]string) dayOrder {
	dayVotes, monthVotes := 0, 0
	for _, col := range columns {
		for _, raw := range col {
			m := reAmbiguous.FindStringSubmatch(strings.TrimSpace(raw))
			if m == nil {
				continue
			}
			a, b := atoi(m[1]), atoi(m[2])
			switch {
			case a > 12 && b <= 12:
				dayVotes++
			case b > 12 && a <= 12:
				monthVotes++
			}
		}
	}
	if monthVotes > dayVotes {
		return monthFirst
	}
	return dayFirst
}

func fromParts(year, month, day int) Result {
	if !validYearMonth(year, month) || day < 1 {
		return none()
	}
	if day > time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day() {
		return none()
	}
	return ymdResult(year, month)
}

func validYearMonth(year, month int) bool {
	return year >= 1 && year <= 9999 && month >= 1 && month <= 12
}

// expandYear maps two-digit years the way time.Parse does for "06": 69-99 -> 19xx, else 20xx
func expandYear(yy int) int {
	if yy >= 69 {
		return 1900 + yy
	}
	return 2000 + yy
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// englishMonthNames rewrites Spanish month names so time.Parse can read them,
// and drops the "de" connectors of "15 de marzo de 2024".
func englishMonthNames(s string) string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		lower := strings.ToLower(f)
		if lower == "de" || lower == "del" {
			continue
		}
		parts := strings.Split(f, "-")
		for i, p := range parts {
			trimmed := strings.TrimRight(strings.ToLower(p), ".,")
			if en, ok := spanishMonths[trimmed]; ok {
				suffix := p[len(strings.TrimRight(p, ".,")):]
				parts[i] = en + strings.ReplaceAll(suffix, ".", "")
			}
		}
		out = append(out, strings.Join(parts, "-"))
	}
	return strings.Join(out, " ")
}
