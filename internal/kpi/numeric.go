package kpi

import (
	"math"
	"strconv"
	"strings"
)

var currencySymbols = []string{"$", "€", "£", "¥", "USD", "EUR", "GBP", "COP", "MXN"}

// ParseNumber coerces a cell to a number. It accepts parentheses for negatives, currency
// symbols, percent signs and both 1,234.56 and 1.234,56 separator styles.
func ParseNumber(s string) (float64, bool) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
		negative = true
	}
	for _, symbol := range currencySymbols {
		clean = strings.ReplaceAll(clean, symbol, "")
	}
	clean = strings.TrimSpace(strings.ReplaceAll(clean, "%", ""))

	hasComma := strings.Contains(clean, ",")
	hasPeriod := strings.Contains(clean, ".")
	hasSpace := strings.Contains(clean, " ")

	switch {
	case hasComma && (hasPeriod || hasSpace):
		commaIdx := strings.LastIndex(clean, ",")
		periodIdx := strings.LastIndex(clean, ".")
		if commaIdx > periodIdx {
			// 1.234,56 or 1 234,56
			clean = strings.NewReplacer(".", "", " ", "").Replace(clean)
			clean = strings.ReplaceAll(clean, ",", ".")
		} else {
			clean = strings.NewReplacer(",", "", " ", "").Replace(clean)
		}
	case hasComma:
		if grouped(clean, ",") {
			clean = strings.ReplaceAll(clean, ",", "")
		} else {
			clean = strings.ReplaceAll(clean, ",", ".")
		}
	case hasPeriod:
		// 1.234.567 and 1.234 are es-CO grouping; 2.5 and 0.125 stay decimals
		if grouped(clean, ".") {
			clean = strings.ReplaceAll(clean, ".", "")
		}
		clean = strings.ReplaceAll(clean, " ", "")
	default:
		clean = strings.ReplaceAll(clean, " ", "")
	}

	if negative {
		clean = "-" + clean
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// grouped reports whether sep is a thousands separator in s: it repeats, or it occurs once
// between a 1-3 digit lead without a leading zero and exactly three digits.
func grouped(s, sep string) bool {
	if strings.Count(s, sep) > 1 {
		return true
	}
	lead, after, _ := strings.Cut(strings.TrimPrefix(s, "-"), sep)
	return len(after) == 3 && isDigits(after) &&
		len(lead) >= 1 && len(lead) <= 3 && isDigits(lead) && lead[0] != '0'
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
