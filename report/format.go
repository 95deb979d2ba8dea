package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Locale is the display locale for currency cells.
var Locale = language.BrazilianPortuguese

// BRL formats d with two decimals, dot thousands and comma decimals: 1.234,56.
func BRL(d decimal.Decimal) string {
	// Printers are not safe for concurrent use; one per call.
	p := message.NewPrinter(Locale)
	return p.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// Currency prefixes BRL with the real sign: R$ 1.234,56.
func Currency(d decimal.Decimal) string {
	return "R$ " + BRL(d)
}
