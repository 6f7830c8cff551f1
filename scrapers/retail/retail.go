// Package retail holds selector-driven adapters for storefronts whose product
// pages follow a stable layout: a title, a price block and an add-to-cart button.
package retail

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
)

// Selectors describes where a storefront keeps each piece of the listing
type Selectors struct {
	Title    []string
	Price    []string
	Original []string
	Image    []string
	Stock    []string
	// BuyButton marks an orderable listing; absence means out of stock.
	BuyButton string
}

// Adapter extracts a sample using a Selectors table, falling back to JSON-LD
type Adapter struct {
	site      string
	domains   []string
	selectors Selectors
}

// New builds an adapter for site served from domains
func New(site string, domains []string, selectors Selectors) *Adapter {
	return &Adapter{site: site, domains: domains, selectors: selectors}
}

func (a *Adapter) Name() string { return a.site }

func (a *Adapter) Domains() []string { return a.domains }

func (a *Adapter) Ready(doc *goquery.Document) bool {
	for _, sel := range append(a.selectors.Price, a.selectors.Title...) {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return doc.Find("script[type='application/ld+json']").Length() > 0
}

func (a *Adapter) Extract(_ context.Context, page *base.Page) (*models.Sample, error) {
	listing := base.Listing{
		Website:      a.site,
		Title:        page.FirstText(a.selectors.Title...),
		PriceText:    page.FirstText(a.selectors.Price...),
		OriginalText: page.FirstText(a.selectors.Original...),
		StockText:    page.FirstText(a.selectors.Stock...),
		Image:        page.FirstAttr("src", a.selectors.Image...),
	}
	if listing.StockText == "" && a.selectors.BuyButton != "" && page.Doc.Find(a.selectors.BuyButton).Length() == 0 {
		listing.Availability = models.OutOfStock
	}

	if listing.PriceText == "" {
		if offer, ok := page.JSONLDOffer(); ok {
			listing.PriceText = offer.Currency + " " + offer.Price.StringFixed(2)
			if listing.Title == "" {
				listing.Title = offer.Name
			}
			if listing.Image == "" {
				listing.Image = offer.Image
			}
			if offer.Availability != "" {
				listing.Availability = base.AvailabilityFromText(offer.Availability)
			}
		}
	}
	if listing.Image == "" {
		listing.Image = page.Meta("og:image")
	}
	return page.Sample(listing)
}
