// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and rendering them with two decimals and thousands grouping.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultCurrencySymbol is prepended to every formatted amount.
const DefaultCurrencySymbol = "₹"

// maxAmountLen bounds the typed amount, digits and point included.
const maxAmountLen = 32

// amountPattern is plain decimal notation: no sign, no exponent, no grouping.
var amountPattern = regexp.MustCompile(`^(?:[0-9]+(?:\.[0-9]+)?|\.[0-9]+)$`)

// ParseAmount converts user text to a strictly positive decimal.
//
// The whole string must be plain decimal notation of at most maxAmountLen
// characters; signs, exponents, trailing garbage, zero and the empty string
// are all rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("1000")  -> 1000, nil
//	ParseAmount(" 4.5 ") -> 4.5, nil
//	ParseAmount("-5")    -> 0, ErrInvalidAmount
//	ParseAmount("abc")   -> 0, ErrInvalidAmount
//	ParseAmount("1e3")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLen || !amountPattern.MatchString(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Formatter renders amounts the way the summary cards and the list show them.
type Formatter struct {
	Symbol  string
	group   string
	decimal string
}

// NewFormatter returns an en-US formatter using the given currency symbol.
func NewFormatter(symbol string) Formatter {
	if symbol == "" {
		symbol = DefaultCurrencySymbol
	}
	group, point := separators(message.NewPrinter(language.AmericanEnglish))
	return Formatter{Symbol: symbol, group: group, decimal: point}
}

// separators reads the grouping and decimal marks the printer's locale uses.
func separators(p *message.Printer) (group, point string) {
	sample := p.Sprint(number.Decimal(1234.5, number.Scale(1)))
	i, j := strings.IndexByte(sample, '1'), strings.IndexByte(sample, '2')
	k, l := strings.IndexByte(sample, '4'), strings.IndexByte(sample, '5')
	if i < 0 || j <= i || k < 0 || l <= k {
		return ",", "."
	}
	return sample[i+1 : j], sample[k+1 : l]
}

// Number formats the absolute value with exactly two decimals and grouping,
// e.g. 1234567.891 -> "1,234,567.89". The digits come from the decimal
// itself, so no precision is lost on large values.
func (f Formatter) Number(d decimal.Decimal) string {
	group, point := f.group, f.decimal
	if group == "" && point == "" {
		group, point = ",", "."
	}
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	lead := len(whole) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(whole[:lead])
	for i := lead; i < len(whole); i += 3 {
		b.WriteString(group)
		b.WriteString(whole[i : i+3])
	}
	b.WriteString(point)
	b.WriteString(frac)
	return b.String()
}

// Signed formats an entry amount: "+₹1,000.00" for income, "-₹4.50" for expense.
func (f Formatter) Signed(k Kind, d decimal.Decimal) string {
	if k == Expense {
		return "-" + f.Symbol + f.Number(d)
	}
	return "+" + f.Symbol + f.Number(d)
}

// Balance formats a balance, prefixing "-" only when it is negative.
func (f Formatter) Balance(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + f.Symbol + f.Number(d)
	}
	return f.Symbol + f.Number(d)
}
