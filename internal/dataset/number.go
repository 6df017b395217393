package dataset

import (
	"regexp"
	"strconv"
	"strings"
)

var groupedNumber = regexp.MustCompile(`^\d{1,3}([.,])\d{3}(?:[.,]\d{3})*$`)

// ParseNumber converts a sheet cell into a number. Anything that cannot be read as a number is 0.
//
// Cells like "1.234" or "12,500,000" are read as digit-grouped integers. Otherwise a comma acts
// as the decimal separator, and when both separators appear the rightmost one is the decimal
// mark.
func ParseNumber(raw string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" {
		return 0
	}

	if m := groupedNumber.FindStringSubmatch(cleaned); m != nil && consistentSeparator(cleaned, m[1]) {
		cleaned = strings.ReplaceAll(cleaned, m[1], "")
	} else {
		dot := strings.LastIndexByte(cleaned, '.')
		comma := strings.LastIndexByte(cleaned, ',')
		switch {
		case dot >= 0 && comma >= 0 && comma > dot:
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		case dot >= 0 && comma >= 0:
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		default:
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

func consistentSeparator(s, sep string) bool {
	other := ","
	if sep == "," {
		other = "."
	}
	return !strings.Contains(s, other)
}
