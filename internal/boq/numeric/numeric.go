// Package numeric classifies and parses the handful of cell shapes a BoQ
// sheet actually contains: plain integers and decimals, currency amounts,
// percentages, dimensioned units, and dates. The sheet classifier's numeric
// ratio, the header locator's data-pattern detector, and the validator's
// data-type checks all share this single pass instead of re-deriving their
// own regexes.
package numeric

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind is the closed set of cell shapes this package recognizes.
type Kind string

const (
	KindInteger         Kind = "integer"
	KindDecimal         Kind = "decimal"
	KindCurrency        Kind = "currency"
	KindPercentage      Kind = "percentage"
	KindDimensionedUnit Kind = "dimensioned_unit"
	KindDate            Kind = "date"
	KindText            Kind = "text"
	KindBlank           Kind = "blank"
)

// CurrencySymbols are the symbols the pipeline recognizes, matching
// config.Vocabulary.CurrencySymbols.
var CurrencySymbols = []string{"$", "€", "£", "¥", "₹"}

var (
	integerRe    = regexp.MustCompile(`^-?\d+$`)
	decimalRe    = regexp.MustCompile(`^-?\d[\d.,]*$`)
	percentRe    = regexp.MustCompile(`^-?\d[\d.,]*\s*%$`)
	dimensionRe  = regexp.MustCompile(`^-?\d[\d.,]*\s*(m2|m²|m3|m³|sq\.?m|sqm|cu\.?m|cum|kg|ton(ne)?|l|ltr|gal|pcs?|nos?|units?|lm|rm|each|m)$`)
	dateSlashRe  = regexp.MustCompile(`^\d{1,4}[/\-.]\d{1,2}[/\-.]\d{1,4}$`)
)

// Classify reports the Kind of a single trimmed cell value.
func Classify(raw string) Kind {
	s := strings.TrimSpace(raw)
	if s == "" {
		return KindBlank
	}

	lower := strings.ToLower(s)
	if percentRe.MatchString(lower) {
		return KindPercentage
	}
	if dateSlashRe.MatchString(s) {
		return KindDate
	}
	if dimensionRe.MatchString(lower) {
		return KindDimensionedUnit
	}
	if hasCurrencySymbol(s) {
		return KindCurrency
	}
	if integerRe.MatchString(s) {
		return KindInteger
	}
	if decimalRe.MatchString(stripGrouping(s)) {
		return KindDecimal
	}
	return KindText
}

// IsNumeric reports whether kind counts toward the sheet classifier's
// numeric-cell ratio (spec §4.1: decimal, integer, currency, percentage,
// dimensioned unit, or date).
func IsNumeric(k Kind) bool {
	switch k {
	case KindDecimal, KindInteger, KindCurrency, KindPercentage, KindDimensionedUnit, KindDate:
		return true
	default:
		return false
	}
}

func hasCurrencySymbol(s string) bool {
	for _, sym := range CurrencySymbols {
		if strings.Contains(s, sym) {
			return true
		}
	}
	return false
}

// stripGrouping returns s unchanged: decimalRe already accepts both
// "1,234.56" and "1.234,56", so no separator needs removing before matching.
func stripGrouping(s string) string {
	return s
}

// AmountFormatHint returns >0 when val looks European (comma decimal,
// "1.234,56"), <0 when it looks American ("1,234.56"), or 0 when
// ambiguous — grounded on the same comma/dot-position heuristic a bank
// statement sniffer uses to probe a file's regional dialect.
func AmountFormatHint(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, val)
	cleaned = strings.TrimPrefix(cleaned, "-")
	if cleaned == "" {
		return 0
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			return 1
		}
		return -1
	case hasComma && !hasDot:
		idx := strings.LastIndex(cleaned, ",")
		if len(cleaned[idx+1:]) <= 2 {
			return 1
		}
		return 0
	case hasDot && !hasComma:
		idx := strings.LastIndex(cleaned, ".")
		if len(cleaned[idx+1:]) <= 2 {
			return -1
		}
		return 0
	}
	return 0
}

// IsDayFirst reports whether a slash/dash/dot-delimited date's leading
// component must be a day (value > 12), the same disambiguation a date
// dialect prober uses before committing to DD/MM vs MM/DD.
func IsDayFirst(dateVal string) bool {
	parts := strings.FieldsFunc(dateVal, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) < 2 {
		return false
	}
	day := 0
	for _, c := range strings.TrimSpace(parts[0]) {
		if c >= '0' && c <= '9' {
			day = day*10 + int(c-'0')
		} else {
			break
		}
	}
	return day > 12 && day <= 31
}

// ParseDecimal parses a numeric cell into a decimal.Decimal, stripping
// currency symbols and resolving grouping per european. It is the shared
// entry point behind both the Money currency parser and the validator's
// plain-quantity parser.
func ParseDecimal(raw string, european bool) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	for _, sym := range CurrencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSuffix(s, "%")

	if european {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	return decimal.NewFromString(s)
}

// ParseDecimalAuto parses without a known dialect, inferring it per-value
// via AmountFormatHint. Use ParseDecimal with a sheet-wide dialect instead
// when one has already been established (e.g. via a prior Classify pass
// over the column), since a single ambiguous cell ("1.234") can't tell
// european from thousands-grouped American on its own.
func ParseDecimalAuto(raw string) (decimal.Decimal, error) {
	return ParseDecimal(raw, AmountFormatHint(raw) > 0)
}

// ExtractUnit returns the recognized unit token trailing a dimensioned
// value, e.g. "120.5 m2" -> "m2", or "" if none is present.
func ExtractUnit(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	m := dimensionRe.FindStringSubmatch(lower)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsInt reports whether s parses cleanly as a base-10 integer, used by row
// classification's code-column heuristics.
func IsInt(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}
