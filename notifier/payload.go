// Package notifier delivers price alerts to users over email and Telegram.
package notifier

import (
	"fmt"

	"github.com/raushankrgupta/price-tracker/models"
	"github.com/shopspring/decimal"
)

// Payload is everything a transport needs to render one alert
type Payload struct {
	ProductID     string           `json:"product_id"`
	Title         string           `json:"title"`
	URL           string           `json:"url"`
	Image         string           `json:"image,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	Currency      string           `json:"currency"`
	Alert         models.AlertType `json:"alert"`
	PercentChange decimal.Decimal  `json:"percent_change"`
	Subject       string           `json:"subject"`
	Message       string           `json:"message"`
}

var currencySymbols = map[string]string{
	"USD": "$",
	"INR": "₹",
	"EUR": "€",
	"GBP": "£",
	"BRL": "R$",
	"CAD": "C$",
	"JPY": "¥",
}

// FormatPrice renders an amount with its currency symbol, e.g. "$999.00"
func FormatPrice(price decimal.Decimal, currency string) string {
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol + price.StringFixed(2)
	}
	if currency == "" {
		return price.StringFixed(2)
	}
	return currency + " " + price.StringFixed(2)
}

// NewPayload builds the alert text for product at price
func NewPayload(p *models.Product, kind models.AlertType, price, percentChange decimal.Decimal) Payload {
	title := p.Title
	if title == "" {
		title = p.URL
	}
	amount := FormatPrice(price, p.Currency)

	var message string
	switch kind {
	case models.AlertTargetReached:
		message = fmt.Sprintf("🎉 Target price reached! %s is now %s", title, amount)
	case models.AlertSignificantDrop:
		message = fmt.Sprintf("📉 Price dropped! %s is now %s (%s%% drop)", title, amount, percentChange.Abs().StringFixed(2))
	case models.AlertBackInStock:
		message = fmt.Sprintf("✅ Back in stock! %s is available for %s", title, amount)
	default:
		message = fmt.Sprintf("Price update for %s: %s", title, amount)
	}

	return Payload{
		ProductID:     p.ID.Hex(),
		Title:         title,
		URL:           p.URL,
		Image:         p.Image,
		Price:         price,
		Currency:      p.Currency,
		Alert:         kind,
		PercentChange: percentChange,
		Subject:       fmt.Sprintf("Price Alert: %s", title),
		Message:       message,
	}
}
