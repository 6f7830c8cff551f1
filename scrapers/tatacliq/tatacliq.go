package tatacliq

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
)

type TataCliqScraper struct{}

func NewTataCliqScraper() *TataCliqScraper {
	return &TataCliqScraper{}
}

func (s *TataCliqScraper) Name() string { return "tatacliq" }

func (s *TataCliqScraper) Domains() []string { return []string{"tatacliq.com"} }

func (s *TataCliqScraper) Ready(doc *goquery.Document) bool {
	// Needs strictly dynamic content
	return doc.Find(".ProductDescriptionPage__productName").Length() > 0 || doc.Find(".ProductDetailsMainCard__productName").Length() > 0
}

func (s *TataCliqScraper) Extract(_ context.Context, page *base.Page) (*models.Sample, error) {
	image := page.FirstAttr("src", "img.ImageGallery__image")
	if image == "" {
		image = page.Meta("og:image")
	}

	return page.Sample(base.Listing{
		Website:      s.Name(),
		Title:        page.FirstText("h1.ProductDescriptionPage__productName", ".ProductDetailsMainCard__productName"),
		PriceText:    page.FirstText(".ProductDescriptionPage__price", ".ProductDetailsMainCard__price"),
		OriginalText: page.FirstText(".ProductDescriptionPage__mrp", ".ProductDetailsMainCard__mrp"),
		StockText:    page.FirstText(".ProductDescriptionPage__outOfStock", ".OutOfStock__base"),
		Image:        image,
		Description:  page.FirstText(".ProductDescriptionPage__productDescription", ".ProductDetailsMainCard__description"),
	})
}
