package api

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// FormatMoney renders an amount in its currency, e.g. "$1,234.56".
// Unknown currency codes fall back to USD.
func FormatMoney(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(code)
	cur := money.GetCurrency(code)
	if cur == nil {
		code = money.USD
		cur = money.GetCurrency(code)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

// FormatCompactMoney abbreviates large amounts: "$1.23B", "$4.50M", "$12.30K".
func FormatCompactMoney(amount decimal.Decimal, code string) string {
	compact, ok := compact(amount)
	if !ok {
		return FormatMoney(amount, code)
	}
	symbol := "$"
	if cur := money.GetCurrency(strings.ToUpper(code)); cur != nil {
		symbol = cur.Grapheme
	}
	if amount.IsNegative() {
		return "-" + symbol + strings.TrimPrefix(compact, "-")
	}
	return symbol + compact
}

// FormatNumber abbreviates counts such as volume: "1.23B", "4.50M", "12.30K", "987".
func FormatNumber(v decimal.Decimal) string {
	if s, ok := compact(v); ok {
		return s
	}
	return v.Round(0).String()
}

// FormatSigned renders a change with an explicit sign and two decimals.
func FormatSigned(v decimal.Decimal) string {
	s := v.StringFixed(2)
	if v.IsPositive() {
		return "+" + s
	}
	return s
}

// FormatPercent renders a signed percentage, e.g. "+1.25%".
func FormatPercent(v decimal.Decimal) string {
	return FormatSigned(v) + "%"
}

func compact(v decimal.Decimal) (string, bool) {
	abs := v.Abs()
	switch {
	case abs.GreaterThanOrEqual(billion):
		return v.Div(billion).StringFixed(2) + "B", true
	case abs.GreaterThanOrEqual(million):
		return v.Div(million).StringFixed(2) + "M", true
	case abs.GreaterThanOrEqual(thousand):
		return v.Div(thousand).StringFixed(2) + "K", true
	default:
		return "", false
	}
}
