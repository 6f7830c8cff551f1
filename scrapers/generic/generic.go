// Package generic is the adapter of last resort for hosts without a dedicated one.
// It reads schema.org offers first and then common meta tags and price classes.
package generic

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
)

type GenericScraper struct{}

func NewGenericScraper() *GenericScraper {
	return &GenericScraper{}
}

func (s *GenericScraper) Name() string { return "generic" }

// Domains is empty; the registry falls back to this adapter
func (s *GenericScraper) Domains() []string { return nil }

func (s *GenericScraper) Ready(doc *goquery.Document) bool {
	return doc.Find("body").Length() > 0
}

func (s *GenericScraper) Extract(_ context.Context, page *base.Page) (*models.Sample, error) {
	listing := base.Listing{
		Website:     page.Host,
		Title:       page.FirstText("h1", "title"),
		Image:       page.Meta("og:image"),
		Description: page.Meta("description"),
	}
	if title := page.Meta("og:title"); title != "" {
		listing.Title = title
	}

	if offer, ok := page.JSONLDOffer(); ok {
		listing.PriceText = offer.Currency + " " + offer.Price.StringFixed(2)
		if offer.Name != "" {
			listing.Title = offer.Name
		}
		if offer.Image != "" {
			listing.Image = offer.Image
		}
		if listing.Description == "" {
			listing.Description = offer.Description
		}
		listing.Availability = base.AvailabilityFromText(offer.Availability)
		return page.Sample(listing)
	}

	if amount := page.Meta("product:price:amount"); amount != "" {
		listing.PriceText = page.Meta("product:price:currency") + " " + amount
	} else if amount := page.Meta("price"); amount != "" {
		listing.PriceText = page.Meta("priceCurrency") + " " + amount
	} else {
		listing.PriceText = page.FirstText("[itemprop='price']", "[class*='price']", "[id*='price']")
	}

	listing.StockText = page.Meta("product:availability")
	if listing.StockText == "" {
		listing.StockText = page.FirstText("[class*='stock']", "[class*='availability']")
	}
	if listing.StockText == "" && page.Doc.Find("button[class*='add'], button[id*='add'], button[name*='add']").Length() == 0 {
		listing.StockText = page.FirstText("[class*='sold-out']", "[class*='unavailable']")
	}
	return page.Sample(listing)
}
