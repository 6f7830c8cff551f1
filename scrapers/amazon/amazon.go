package amazon

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
)

var rePrice = regexp.MustCompile(`(₹|Rs\.?|\$|£|€)\s?[\d,]+(\.\d{2})?`)

// AmazonScraper handles the HTML parsing for Amazon storefronts
type AmazonScraper struct{}

func NewAmazonScraper() *AmazonScraper {
	return &AmazonScraper{}
}

func (s *AmazonScraper) Name() string { return "amazon" }

func (s *AmazonScraper) Domains() []string {
	return []string{"amazon.com", "amazon.in", "amazon.co.uk", "amazon.de", "amazon.ca", "amazon.com.br"}
}

func (s *AmazonScraper) Ready(doc *goquery.Document) bool {
	return strings.TrimSpace(doc.Find("#productTitle").Text()) != ""
}

func (s *AmazonScraper) Extract(_ context.Context, page *base.Page) (*models.Sample, error) {
	// Strategy for Discounted Price (Selling Price)
	// 1. .priceToPay .a-offscreen
	// 2. #corePriceDisplay_desktop_feature_div .a-price .a-offscreen
	// 3. #priceblock_dealprice / #priceblock_ourprice (old design)
	price := page.FirstText(
		".priceToPay .a-offscreen",
		"#corePriceDisplay_desktop_feature_div .a-price.apexPriceToPay .a-offscreen",
		".a-price.a-text-price.a-size-medium.apexPriceToPay .a-offscreen",
		"#priceblock_dealprice",
		"#priceblock_ourprice",
		"#corePrice_feature_div .a-price .a-offscreen",
	)
	if price == "" {
		// Fallback to visible price if offscreen is empty
		if whole := page.FirstText(".priceToPay .a-price-whole", ".a-price-whole"); whole != "" {
			symbol := page.FirstText(".priceToPay .a-price-symbol", ".a-price-symbol")
			fraction := page.FirstText(".priceToPay .a-price-fraction", ".a-price-fraction")
			price = symbol + strings.TrimSuffix(whole, ".")
			if fraction != "" {
				price += "." + fraction
			}
		}
	}
	if price == "" {
		// Regex fallback over the buy box only, the body carries unrelated prices
		if m := rePrice.FindString(page.FirstText("#buybox", "#desktop_buybox", "#rightCol")); m != "" {
			price = m
		}
	}

	// Strategy for MRP (List Price)
	mrp := page.FirstText(
		".basisPrice .a-offscreen",
		"span[data-a-strike='true'] .a-offscreen",
		".a-price.a-text-price .a-offscreen",
	)

	image := page.FirstAttr("data-old-hires", "#landingImage")
	if image == "" {
		image = page.FirstAttr("src", "#landingImage", "#imgBlkFront", ".a-dynamic-image")
	}

	return page.Sample(base.Listing{
		Website:      s.Name(),
		PriceText:    price,
		OriginalText: mrp,
		StockText:    page.FirstText("#availability", "#outOfStock"),
		Title:        page.FirstText("#productTitle"),
		Image:        image,
		Description:  page.FirstText("#productDescription", "#feature-bullets"),
	})
}
