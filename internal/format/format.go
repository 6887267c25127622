// Package format renders amounts, dates and percentages the way the app
// shows them to a Peruvian user.
package format

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"solconta/internal/calendar"
	"solconta/internal/metrics"
)

// CurrencySymbol is the Peruvian sol.
const CurrencySymbol = "S/"

var (
	locale  = language.MustParse("es-PE")
	printer = message.NewPrinter(locale)
)

var monthAbbr = [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "set", "oct", "nov", "dic"}

// Currency formats amount in soles with two decimals, e.g. "S/ 1,234.50".
// Separators follow the es-PE locale.
func Currency(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	f := amount.Round(2).InexactFloat64()
	return sign + CurrencySymbol + " " + printer.Sprint(number.Decimal(f, number.Scale(2)))
}

// Date formats d as "05 feb 2026". The zero date formats as "".
func Date(d calendar.Date) string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d %s %d", d.Day, monthAbbr[d.Month-1], d.Year)
}

// DateShort formats d as "Vie 20". The zero date formats as "".
func DateShort(d calendar.Date) string {
	if d.IsZero() {
		return ""
	}
	return metrics.DayLabel(d) + " " + strconv.Itoa(d.Day)
}

// Pct formats a percentage change with an explicit sign, e.g. "+12.5%".
func Pct(n float64) string {
	sign := ""
	if n >= 0 {
		sign = "+"
	}
	return sign + strconv.FormatFloat(n, 'f', 1, 64) + "%"
}

// Compact abbreviates large magnitudes: 1.2K, 3.4M.
func Compact(n float64) string {
	switch abs := math.Abs(n); {
	case abs >= 1e6:
		return strconv.FormatFloat(n/1e6, 'f', 1, 64) + "M"
	case abs >= 1e3:
		return strconv.FormatFloat(n/1e3, 'f', 1, 64) + "K"
	default:
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
}
