// Package normalizer handles the text, money and date conventions found in studio spreadsheet exports.
// Every function here is total: bad input yields an empty or invalid value, never a panic or error.
package normalizer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	nonWordPattern    = regexp.MustCompile(`[^a-z0-9_]`)
	underscoreRuns    = regexp.MustCompile(`_+`)

	// 1.234,56 style: dot grouping followed by a comma decimal part
	euGroupedPattern = regexp.MustCompile(`[0-9]\.[0-9]{3},[0-9]+$`)
	euCommaTail      = regexp.MustCompile(`,[0-9]{1,3}$`)
	// a lone comma with one or two decimals, e.g. 12,5 or 1200,50
	euLoneCommaTail = regexp.MustCompile(`^-?[0-9]+,[0-9]{1,2}$`)
	moneyStrip      = regexp.MustCompile(`[^0-9,.\-]`)

	timePattern   = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	serialPattern = regexp.MustCompile(`^\d{5}(\.\d+)?$`)
)

// primaryDateFormats are tried strictly and in order before the generic fallbacks.
var primaryDateFormats = []string{
	"DD/MM/YYYY HH:mm:ss",
	"DD/MM/YYYY HH:mm",
	"DD/MM/YYYY",
	"YYYY-MM-DD HH:mm:ss",
	"YYYY-MM-DD HH:mm",
	"YYYY-MM-DD",
	"DD-MM-YYYY",
}

// fallbackLayouts mirror what a generic date parser accepts. Slash dates here are month-first.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"1/2/06",
	"01-02-06 15:04",
	"01-02-06",
	"1-2-2006",
	"2006/1/2 15:04:05",
	"2006/1/2",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"2-Jan-06",
	"Mon Jan 2 2006",
}

var dateFormatReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MM", "01",
	"DD", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

// convertDateFormat converts user-friendly format strings to Go layouts, e.g. "DD-MM-YYYY" -> "02-01-2006".
func convertDateFormat(format string) string {
	return dateFormatReplacer.Replace(format)
}

// Stringify renders a raw cell value the way it would appear as text.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case decimal.Decimal:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// StripDiacritics removes combining marks: "Método" -> "Metodo".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// NormalizeText trims, collapses internal whitespace, strips diacritics and lower-cases.
// nil becomes the empty string.
func NormalizeText(v any) string {
	s := strings.TrimSpace(Stringify(v))
	if s == "" {
		return ""
	}
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.ToLower(StripDiacritics(s))
}

// SnakeCase turns a header label into a comparable token: "Método de pago" -> "metodo_de_pago".
func SnakeCase(label string) string {
	s := strings.ToLower(StripDiacritics(label))
	s = whitespacePattern.ReplaceAllString(s, "_")
	s = nonWordPattern.ReplaceAllString(s, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// PickText trims a value and returns nil when nothing is left.
func PickText(v any) *string {
	s := strings.TrimSpace(Stringify(v))
	if s == "" {
		return nil
	}
	return &s
}

// PickNormalized is PickText over NormalizeText.
func PickNormalized(v any) *string {
	s := NormalizeText(v)
	if s == "" {
		return nil
	}
	return &s
}

// ParseMoney parses amounts written either as 1,234.56 or 1.234,56.
//
// European formatting is assumed when the value ends in a dot-grouped comma decimal (1.234,56), when it
// carries both separators and ends in a comma followed by 1-3 digits, or when its only separator is a
// single comma followed by one or two digits (12,50). Anything else keeps the dot as decimal separator
// and drops commas, so an ambiguous 1,200 reads as twelve hundred.
func ParseMoney(v any) decimal.NullDecimal {
	switch t := v.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.Decimal:
		return decimal.NewNullDecimal(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(decimal.NewFromFloat(t))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(t)))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(t))
	}

	s := strings.TrimSpace(Stringify(v))
	if s == "" {
		return decimal.NullDecimal{}
	}

	european := euGroupedPattern.MatchString(s) ||
		(strings.Contains(s, ".") && strings.Contains(s, ",") && euCommaTail.MatchString(s))

	cleaned := moneyStrip.ReplaceAllString(s, "")
	if !european && !strings.Contains(cleaned, ".") && euLoneCommaTail.MatchString(cleaned) {
		european = true
	}

	if european {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParseDateLike accepts a time.Time, an Excel serial number or text and returns false when nothing fits.
// Text is interpreted as UTC wall-clock time.
func ParseDateLike(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case float64:
		return fromExcelSerial(t)
	case int:
		return fromExcelSerial(float64(t))
	case int64:
		return fromExcelSerial(float64(t))
	}

	s := strings.TrimSpace(Stringify(v))
	if s == "" {
		return time.Time{}, false
	}
	s = whitespacePattern.ReplaceAllString(s, " ")

	for _, format := range primaryDateFormats {
		if t, err := time.ParseInLocation(convertDateFormat(format), s, time.UTC); err == nil {
			return t, true
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}

	if serialPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromExcelSerial(f)
		}
	}

	return time.Time{}, false
}

func fromExcelSerial(serial float64) (time.Time, bool) {
	if serial <= 0 || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// CombineDateAndTime merges a date with a separate HH:mm[:ss] value. When the time does not match the
// strict pattern the concatenation "date time" is tried; failing that, the date alone is returned.
func CombineDateAndTime(date, clock any) (time.Time, bool) {
	d, ok := ParseDateLike(date)
	if !ok {
		return time.Time{}, false
	}

	switch c := clock.(type) {
	case time.Time:
		if c.IsZero() {
			return d, true
		}
		return atClock(d, c.Hour(), c.Minute(), c.Second()), true
	case float64:
		// Excel stores a bare time as a fraction of a day
		if c >= 0 && c < 1 {
			secs := int(math.Round(c * 86400))
			return atClock(d, min(23, secs/3600), (secs%3600)/60, secs%60), true
		}
	}

	t := strings.TrimSpace(Stringify(clock))
	if t == "" {
		return d, true
	}

	if hh, mm, ss, ok := splitClock(t); ok {
		return atClock(d, hh, mm, ss), true
	}

	if dt, ok := ParseDateLike(Stringify(date) + " " + t); ok {
		return dt, true
	}
	return d, true
}

// ParseTimeLike returns a strict H:MM[:SS] value as HH:MM:SS.
func ParseTimeLike(v any) *string {
	hh, mm, ss, ok := splitClock(strings.TrimSpace(Stringify(v)))
	if !ok {
		return nil
	}
	s := fmt.Sprintf("%02d:%02d:%02d", hh, mm, ss)
	return &s
}

func splitClock(s string) (int, int, int, bool) {
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, 0, false
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	ss := 0
	if m[3] != "" {
		ss, _ = strconv.Atoi(m[3])
	}
	return min(23, hh), min(59, mm), min(59, ss), true
}

func atClock(d time.Time, hh, mm, ss int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hh, mm, ss, 0, d.Location())
}

// DateOnly truncates a timestamp to midnight of the same calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ParseBoolLike understands the usual yes/no spellings, Spanish included.
func ParseBoolLike(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	s := NormalizeText(v)
	var b bool
	switch s {
	case "true", "t", "1", "si", "y", "yes", "on":
		b = true
	case "false", "f", "0", "no", "off", "n":
		b = false
	default:
		return nil
	}
	return &b
}

// OnlyDigits keeps the digits of a value, nil when there are none.
func OnlyDigits(v any) *string {
	var b strings.Builder
	for _, r := range Stringify(v) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	s := b.String()
	return &s
}
