package peterengland

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
)

type PeterEnglandScraper struct{}

func NewPeterEnglandScraper() *PeterEnglandScraper {
	return &PeterEnglandScraper{}
}

func (s *PeterEnglandScraper) Name() string { return "peterengland" }

func (s *PeterEnglandScraper) Domains() []string {
	return []string{"peterengland.abfrl.in", "peterengland.com"}
}

func (s *PeterEnglandScraper) Ready(doc *goquery.Document) bool {
	return doc.Find("h1.pdp-title").Length() > 0 || doc.Find(".ProductDetails__productName").Length() > 0
}

func (s *PeterEnglandScraper) Extract(_ context.Context, page *base.Page) (*models.Sample, error) {
	title := page.FirstText("h1.pdp-title", ".ProductDetails__productName")
	if title == "" {
		// Fallback to page title "Name Online - ID | Brand"
		if parts := strings.Split(page.Doc.Find("title").Text(), " Online -"); len(parts) > 1 {
			title = parts[0]
		}
	}

	return page.Sample(base.Listing{
		Website:      s.Name(),
		Title:        title,
		PriceText:    page.FirstText(".pdp-price strong", ".ProductDetails__price"),
		OriginalText: page.FirstText(".pdp-mrp del"),
		StockText:    page.FirstText(".pdp-out-of-stock", ".out-of-stock"),
		Image:        page.FirstAttr("src", ".Start-image-gallery img", ".slick-track img"),
		Description:  page.FirstText(".pdp-desc"),
	})
}
