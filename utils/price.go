package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var numberToken = regexp.MustCompile(`\d[\d.,]*`)

// Ordered so that multi-character symbols win over their suffixes ("R$" before "$").
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"R$", "BRL"},
	{"US$", "USD"},
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"Rs.", "INR"},
	{"Rs", "INR"},
	{"₹", "INR"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"$", "USD"},
	{"USD", "USD"},
	{"INR", "INR"},
	{"EUR", "EUR"},
	{"GBP", "GBP"},
	{"BRL", "BRL"},
}

// Currencies written with a comma as the decimal separator
var commaDecimal = map[string]bool{"BRL": true, "EUR": true}

// DetectCurrency returns the ISO code for the first currency marker in text, or ""
func DetectCurrency(text string) string {
	best, bestAt := "", -1
	for _, c := range currencySymbols {
		at := strings.Index(text, c.symbol)
		if at < 0 {
			continue
		}
		if bestAt < 0 || at < bestAt {
			best, bestAt = c.code, at
		}
	}
	return best
}

// ParsePrice extracts the first amount in text, e.g. "₹1,299.00", "$999", "R$ 3.000,00".
// fallbackCurrency is used when text carries no currency marker.
func ParsePrice(text, fallbackCurrency string) (decimal.Decimal, string, error) {
	text = strings.TrimSpace(text)
	token := numberToken.FindString(text)
	if token == "" {
		return decimal.Zero, "", fmt.Errorf("no amount in %q", text)
	}

	currency := DetectCurrency(text)
	if currency == "" {
		currency = fallbackCurrency
	}

	normalized := normalizeAmount(strings.TrimRight(token, ".,"), commaDecimal[currency])
	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("parse amount %q: %w", token, err)
	}
	return amount, currency, nil
}

func normalizeAmount(token string, preferComma bool) string {
	lastDot := strings.LastIndex(token, ".")
	lastComma := strings.LastIndex(token, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.234,56
			return strings.ReplaceAll(strings.ReplaceAll(token, ".", ""), ",", ".")
		}
		// 1,234.56
		return strings.ReplaceAll(token, ",", "")
	case lastComma >= 0:
		if strings.Count(token, ",") == 1 && len(token)-lastComma-1 == 2 {
			return strings.Replace(token, ",", ".", 1)
		}
		return strings.ReplaceAll(token, ",", "")
	case lastDot >= 0:
		if strings.Count(token, ".") > 1 || (preferComma && len(token)-lastDot-1 == 3) {
			return strings.ReplaceAll(token, ".", "")
		}
		return token
	}
	return token
}
