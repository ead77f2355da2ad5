package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders typed values for one locale. It is passed explicitly to
// the resolver and the exporter; nothing reads an ambient locale.
type Formatter struct {
	Locale         language.Tag
	CurrencySymbol string
	Undefined      string
	Location       *time.Location

	printer *message.Printer
}

// FormatOptions configures NewFormatter. Empty fields take Brazilian defaults.
type FormatOptions struct {
	Locale         string
	CurrencySymbol string
	Undefined      string
	TimeZone       string
}

// NewFormatter builds a Formatter. An unknown locale or time zone falls back
// to pt-BR and America/Sao_Paulo (or UTC when tzdata is unavailable).
func NewFormatter(opts FormatOptions) Formatter {
	tag := language.BrazilianPortuguese
	if opts.Locale != "" {
		if parsed, err := language.Parse(opts.Locale); err == nil {
			tag = parsed
		}
	}

	symbol := opts.CurrencySymbol
	if symbol == "" {
		symbol = "R$"
	}
	undefined := opts.Undefined
	if undefined == "" {
		undefined = "A definir"
	}

	tz := opts.TimeZone
	if tz == "" {
		tz = "America/Sao_Paulo"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	return Formatter{
		Locale:         tag,
		CurrencySymbol: symbol,
		Undefined:      undefined,
		Location:       loc,
		printer:        message.NewPrinter(tag),
	}
}

func (f Formatter) p() *message.Printer {
	if f.printer == nil {
		return message.NewPrinter(f.Locale)
	}
	return f.printer
}

// Number formats d with two fraction digits and locale grouping. The whole
// part is grouped by the printer as an int64 and the cents come from the
// decimal string, so amounts never pass through float64. Stored amounts are
// NUMERIC(14,2) and fit an int64.
func (f Formatter) Number(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole := f.p().Sprintf("%v", number.Decimal(d.IntPart()))
	return sign + whole + f.decimalSeparator() + fixed[len(fixed)-2:]
}

func (f Formatter) decimalSeparator() string {
	s := f.p().Sprintf("%v", number.Decimal(1.5, number.Scale(1)))
	if len(s) != 3 {
		return "."
	}
	return s[1:2]
}

// Currency formats d as "<symbol> <number>", e.g. "R$ 1.500,00".
func (f Formatter) Currency(d decimal.Decimal) string {
	return f.CurrencySymbol + " " + f.Number(d)
}

// Date formats a calendar date, or the "to be defined" text when absent.
// Dates are calendar values and are not shifted between zones.
func (f Formatter) Date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return f.Undefined
	}
	if f.isPortuguese() {
		return t.Format("02/01/2006")
	}
	return t.Format("01/02/2006")
}

// LongDate formats a date with the month spelled out.
func (f Formatter) LongDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return f.Undefined
	}
	if f.isPortuguese() {
		return fmt.Sprintf("%d de %s de %d", t.Day(), ptMonths[t.Month()-1], t.Year())
	}
	return t.Format("January 2, 2006")
}

// Timestamp formats an instant in the formatter's zone, with the offset, for
// audit sections.
func (f Formatter) Timestamp(t time.Time) string {
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	if f.isPortuguese() {
		return t.In(loc).Format("02/01/2006 15:04:05 -07:00")
	}
	return t.In(loc).Format("2006-01-02 15:04:05 -07:00")
}

// Text returns s, or the "to be defined" text when s is blank.
func (f Formatter) Text(s string) string {
	if strings.TrimSpace(s) == "" {
		return f.Undefined
	}
	return s
}

func (f Formatter) isPortuguese() bool {
	base, _ := f.Locale.Base()
	return base.String() == "pt"
}

var ptMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}
