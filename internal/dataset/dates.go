package dataset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const isoLayout = "2006-01-02"

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsValidDate reports whether s is a YYYY-MM-DD string naming a real calendar date.
func IsValidDate(s string) bool {
	if !isoDate.MatchString(s) {
		return false
	}
	_, err := time.Parse(isoLayout, s)
	return err == nil
}

// ParseDate returns the calendar date of a valid YYYY-MM-DD string.
func ParseDate(s string) (time.Time, bool) {
	if !IsValidDate(s) {
		return time.Time{}, false
	}
	t, _ := time.Parse(isoLayout, s)
	return t, true
}

var months = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6,
	"julio": 7, "agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10, "noviembre": 11, "diciembre": 12,
	"ene": 1, "feb": 2, "mar": 3, "abr": 4, "may": 5, "jun": 6,
	"jul": 7, "ago": 8, "sep": 9, "sept": 9, "oct": 10, "nov": 11, "dic": 12,
	"january": 1, "february": 2, "march": 3, "april": 4, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "apr": 4, "aug": 8, "dec": 12,
}

var (
	dayMonthYear    = regexp.MustCompile(`^(\d{1,2})\s*[/.-]\s*(\d{1,2})\s*[/.-]\s*(\d{4})$`)
	yearMonthDay    = regexp.MustCompile(`^(\d{4})[/.-](\d{1,2})[/.-](\d{1,2})$`)
	dayMonthShortYr = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})[/.-](\d{2})$`)
	dayDeMonthDeYr  = regexp.MustCompile(`^(\d{1,2})\s+de\s+([a-z]+)\.?\s+(?:de|del)\s+(\d{4})$`)
	monthDayYear    = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2}),?\s*(\d{4})$`)
	dayMonthNameYr  = regexp.MustCompile(`^(\d{1,2})\s+([a-z]+)\.?\s+(\d{4})$`)
	dateTimeSuffix  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[ T]\d{1,2}:\d{2}(?::\d{2})?$`)
)

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeDate rewrites the date formats found in the activity sheet into YYYY-MM-DD. It
// returns "" when s is empty or cannot be read as a real calendar date.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if isoDate.MatchString(s) {
		if IsValidDate(s) {
			return s
		}
		return ""
	}

	folded, _, err := transform.String(foldAccents, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	folded = strings.Join(strings.Fields(folded), " ")

	if m := dateTimeSuffix.FindStringSubmatch(folded); m != nil {
		return validISO(m[1])
	}
	if m := yearMonthDay.FindStringSubmatch(folded); m != nil {
		return build(m[1], m[2], m[3])
	}
	if m := dayMonthYear.FindStringSubmatch(folded); m != nil {
		return build(m[3], m[2], m[1])
	}
	if m := dayMonthShortYr.FindStringSubmatch(folded); m != nil {
		return build(expandYear(m[3]), m[2], m[1])
	}
	if m := dayDeMonthDeYr.FindStringSubmatch(folded); m != nil {
		return buildNamed(m[3], m[2], m[1])
	}
	if m := monthDayYear.FindStringSubmatch(folded); m != nil {
		return buildNamed(m[3], m[1], m[2])
	}
	if m := dayMonthNameYr.FindStringSubmatch(folded); m != nil {
		return buildNamed(m[3], m[2], m[1])
	}
	return ""
}

// expandYear maps two-digit years: below 50 is 20xx, otherwise 19xx.
func expandYear(yy string) string {
	n, _ := strconv.Atoi(yy)
	if n < 50 {
		return fmt.Sprintf("20%02d", n)
	}
	return fmt.Sprintf("19%02d", n)
}

func buildNamed(year, monthName, day string) string {
	m, ok := months[monthName]
	if !ok {
		return ""
	}
	return build(year, strconv.Itoa(m), day)
}

func build(year, month, day string) string {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return ""
	}
	return validISO(fmt.Sprintf("%04d-%02d-%02d", y, m, d))
}

func validISO(s string) string {
	if IsValidDate(s) {
		return s
	}
	return ""
}

// NormalizeReport counts how the date column fared during NormalizeTable.
type NormalizeReport struct {
	Original   int `json:"original"`
	Normalized int `json:"normalized"`
	Failed     int `json:"failed"`
}

// NormalizeTable returns a copy of t whose date column holds normalized YYYY-MM-DD strings.
// Rows without the column are left untouched.
func NormalizeTable(t Table) (Table, NormalizeReport) {
	var rep NormalizeReport
	out := Table{Columns: t.ColumnOrder(), Rows: make([]Row, 0, len(t.Rows))}
	for _, r := range t.Rows {
		key, raw, ok := r.LookupKey(ColumnEndDate)
		if !ok {
			out.Rows = append(out.Rows, r)
			continue
		}
		normalized := NormalizeDate(raw)
		if strings.TrimSpace(raw) != "" {
			rep.Original++
			if normalized != "" {
				rep.Normalized++
			} else {
				rep.Failed++
			}
		}
		out.Rows = append(out.Rows, r.With(key, normalized))
	}
	return out, rep
}
