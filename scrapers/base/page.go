package base

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/utils"
	"github.com/shopspring/decimal"
)

// Page is the raw content handed to a site adapter
type Page struct {
	URL  string
	Host string
	Doc  *goquery.Document
}

// FirstText returns the trimmed text of the first selector that matches something non-empty
func (p *Page) FirstText(selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(p.Doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// FirstAttr returns the first non-empty attribute value among the selectors
func (p *Page) FirstAttr(attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v := strings.TrimSpace(p.Doc.Find(sel).First().AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

// Meta returns the content of a meta tag by property or name
func (p *Page) Meta(key string) string {
	return p.FirstAttr("content", fmt.Sprintf("meta[property='%s']", key), fmt.Sprintf("meta[name='%s']", key), fmt.Sprintf("meta[itemprop='%s']", key))
}

// CurrencyForHost guesses the default currency from the retailer's country domain
func CurrencyForHost(host string) string {
	switch {
	case strings.HasSuffix(host, ".in"):
		return "INR"
	case strings.HasSuffix(host, ".co.uk"):
		return "GBP"
	case strings.HasSuffix(host, ".com.br"):
		return "BRL"
	case strings.HasSuffix(host, ".de"), strings.HasSuffix(host, ".fr"), strings.HasSuffix(host, ".es"), strings.HasSuffix(host, ".it"):
		return "EUR"
	case strings.HasSuffix(host, ".ca"):
		return "CAD"
	}
	return "USD"
}

// AvailabilityFromText maps common stock phrases to an Availability
func AvailabilityFromText(text string) models.Availability {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return models.InStock
	case strings.Contains(t, "out of stock"), strings.Contains(t, "outofstock"), strings.Contains(t, "unavailable"),
		strings.Contains(t, "sold out"), strings.Contains(t, "soldout"), strings.Contains(t, "discontinued"),
		strings.Contains(t, "esgotado"), strings.Contains(t, "indisponível"):
		return models.OutOfStock
	case strings.Contains(t, "only "), strings.Contains(t, "few left"), strings.Contains(t, "limited"), strings.Contains(t, "limitedavailability"):
		return models.Limited
	}
	return models.InStock
}

// Listing is the raw text an adapter pulled out of a page
type Listing struct {
	Website      string
	PriceText    string
	OriginalText string
	StockText    string
	Availability models.Availability
	Title        string
	Image        string
	Description  string
}

// Sample parses the listing into a models.Sample. A missing or non-positive price is
// ErrParse, except for out-of-stock listings which come back with a zero price.
func (p *Page) Sample(l Listing) (*models.Sample, error) {
	availability := l.Availability
	if availability == "" {
		availability = AvailabilityFromText(l.StockText)
	}

	fallback := CurrencyForHost(p.Host)
	price, currency, err := utils.ParsePrice(l.PriceText, fallback)
	switch {
	case err != nil && availability == models.OutOfStock:
		// Retailers often hide the price of unavailable items; the reading stays unpriced.
		price, currency = decimal.Zero, fallback
	case err != nil:
		return nil, Fail(p.URL, ErrParse, fmt.Errorf("price: %w", err))
	case !price.IsPositive():
		return nil, Fail(p.URL, ErrParse, fmt.Errorf("price not positive: %s", price))
	}

	s := &models.Sample{
		Price:        price,
		Currency:     currency,
		Availability: availability,
		Title:        strings.TrimSpace(l.Title),
		Image:        strings.TrimSpace(l.Image),
		Description:  strings.TrimSpace(l.Description),
		Website:      l.Website,
		URL:          p.URL,
	}
	if l.OriginalText != "" {
		if original, _, err := utils.ParsePrice(l.OriginalText, currency); err == nil && original.GreaterThan(price) {
			s.OriginalPrice = original
		}
	}
	return s, nil
}

// Offer is the subset of schema.org Product/Offer data adapters care about
type Offer struct {
	Name         string
	Image        string
	Description  string
	Price        decimal.Decimal
	Currency     string
	Availability string
}

// JSONLDOffer reads the first schema.org Product offer from ld+json scripts
func (p *Page) JSONLDOffer() (*Offer, bool) {
	var found *Offer
	p.Doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		found = offerFrom(raw)
		return found == nil
	})
	return found, found != nil
}

func offerFrom(raw any) *Offer {
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if o := offerFrom(item); o != nil {
				return o
			}
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			return offerFrom(graph)
		}
		if !strings.EqualFold(stringOf(v["@type"]), "Product") {
			return nil
		}
		o := &Offer{
			Name:        stringOf(v["name"]),
			Image:       firstString(v["image"]),
			Description: stringOf(v["description"]),
		}
		offers := v["offers"]
		if list, ok := offers.([]any); ok && len(list) > 0 {
			offers = list[0]
		}
		m, ok := offers.(map[string]any)
		if !ok {
			return nil
		}
		priceRaw := m["price"]
		if priceRaw == nil {
			priceRaw = m["lowPrice"]
		}
		price, err := decimal.NewFromString(stringOf(priceRaw))
		if err != nil {
			return nil
		}
		o.Price = price
		o.Currency = stringOf(m["priceCurrency"])
		o.Availability = stringOf(m["availability"])
		return o
	}
	return nil
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return decimal.NewFromFloat(t).String()
	case []any:
		return firstString(t)
	}
	return ""
}

func firstString(v any) string {
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if s := stringOf(item); s != "" {
				return s
			}
		}
		return ""
	}
	if m, ok := v.(map[string]any); ok {
		return stringOf(m["url"])
	}
	return stringOf(v)
}
