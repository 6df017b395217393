package web

import (
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Bogota has no daylight saving time, so a fixed zone avoids depending on tzdata.
var Bogota = time.FixedZone("COT", -5*60*60)

// Formatter prints numbers and timestamps the way the dashboard shows them in Colombia.
type Formatter struct {
	p   *message.Printer
	loc *time.Location
}

func NewFormatter() *Formatter {
	return &Formatter{p: message.NewPrinter(language.Spanish), loc: Bogota}
}

// Int groups thousands with dots: 1234567 -> "1.234.567".
func (f *Formatter) Int(n int64) string {
	return f.p.Sprintf("%d", n)
}

// Number rounds to the nearest integer before grouping.
func (f *Formatter) Number(v float64) string {
	return f.Int(int64(math.Round(v)))
}

// Timestamp renders t as "12/3/2025, 2:05:09 p. m." in Bogota time. The zero time is "".
func (f *Formatter) Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(f.loc)
	suffix := " a. m."
	if t.Hour() >= 12 {
		suffix = " p. m."
	}
	return t.Format("2/1/2006, 3:04:05") + suffix
}
