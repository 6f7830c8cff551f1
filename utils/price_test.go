package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in       string
		fallback string
		want     string
		currency string
	}{
		{"$1,099.00", "", "1099", "USD"},
		{"$999", "", "999", "USD"},
		{"₹1,299", "", "1299", "INR"},
		{"Rs. 2,499.50", "", "2499.5", "INR"},
		{"R$ 3.000,00", "", "3000", "BRL"},
		{"R$ 1.299", "", "1299", "BRL"},
		{"€1.234,56", "", "1234.56", "EUR"},
		{"£12.99", "", "12.99", "GBP"},
		{"12,99", "EUR", "12.99", "EUR"},
		{"1.234.567", "", "1234567", ""},
		{"  849.", "USD", "849", "USD"},
		{"₹1,299 ₹2,000 (40% off)", "", "1299", "INR"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			amount, currency, err := ParsePrice(tt.in, tt.fallback)
			require.NoError(t, err)
			assert.Equal(t, tt.want, amount.String())
			assert.Equal(t, tt.currency, currency)
		})
	}
}

func TestParsePriceRejectsText(t *testing.T) {
	_, _, err := ParsePrice("Currently unavailable", "USD")
	assert.Error(t, err)
}

func TestAddToLogMessage(t *testing.T) {
	var b strings.Builder
	AddToLogMessage(&b, "[Checker]")
	AddToLogMessage(&b, "price %s", "999")
	assert.Equal(t, "[Checker];\nprice 999;\n", b.String())

	FlushLogMessage(&b)
	assert.Zero(t, b.Len())
}
