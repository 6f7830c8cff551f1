package flipkart

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
)

type FlipkartScraper struct{}

func NewFlipkartScraper() *FlipkartScraper {
	return &FlipkartScraper{}
}

func (s *FlipkartScraper) Name() string { return "flipkart" }

func (s *FlipkartScraper) Domains() []string { return []string{"flipkart.com"} }

func (s *FlipkartScraper) Ready(doc *goquery.Document) bool {
	// Check for title class or h1
	return doc.Find("h1").Length() > 0 || doc.Find(".B_NuCI").Length() > 0
}

func (s *FlipkartScraper) Extract(_ context.Context, page *base.Page) (*models.Sample, error) {
	// Old class names first, then the new design
	title := page.FirstText(".B_NuCI", "h1.yhB1nd span", "h1")
	price := page.FirstText("div._30jeq3._16Jk6d", "div.Nx9bqj.CxhGGd", "div.Nx9bqj")
	mrp := page.FirstText("div._3I9_wc._2p6lqe", "div.yRaY8j.A6ZONS", "div.yRaY8j")

	stock := page.FirstText("div._16FRp0", "div.Z8JjpR", "div.nbiUlm")
	if stock == "" && page.Doc.Find("button._2KpZ6l._2U9uOA, button.QqFHMw").Length() == 0 {
		// No buy button on the page usually means the listing cannot be ordered
		if strings.Contains(strings.ToLower(page.Doc.Find("body").Text()), "sold out") {
			stock = "sold out"
		}
	}

	image := page.FirstAttr("src", "img._396cs4", "img.DByuf4")
	// Transform to high res: often replace 128/128 with 832/832
	image = strings.Replace(image, "/128/128/", "/832/832/", 1)

	return page.Sample(base.Listing{
		Website:      s.Name(),
		PriceText:    price,
		OriginalText: mrp,
		StockText:    stock,
		Title:        title,
		Image:        image,
		Description:  page.FirstText("div._1mXcCf", "div.yN5-Ad"),
	})
}
