package myntra

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
)

const stateMarker = "window.__myx ="

type MyntraScraper struct{}

func NewMyntraScraper() *MyntraScraper {
	return &MyntraScraper{}
}

func (s *MyntraScraper) Name() string { return "myntra" }

func (s *MyntraScraper) Domains() []string { return []string{"myntra.com"} }

func (s *MyntraScraper) Ready(doc *goquery.Document) bool {
	// Check for the script tag containing data OR basic h1
	return strings.Contains(doc.Text(), "window.__myx") || doc.Find("h1").Length() > 0
}

func (s *MyntraScraper) Extract(_ context.Context, page *base.Page) (*models.Sample, error) {
	if pd := pdpData(page.Doc); pd != nil {
		listing := base.Listing{
			Website:      s.Name(),
			Title:        getString(pd, "name"),
			PriceText:    "Rs. " + getNumber(pd, "price"),
			OriginalText: "Rs. " + getNumber(pd, "mrp"),
			Description:  getString(pd, "productDetails"),
		}
		if listing.Title == "" {
			listing.Title = getString(pd, "title")
		}
		if flags, ok := pd["flags"].(map[string]interface{}); ok {
			if out, _ := flags["outOfStock"].(bool); out {
				listing.Availability = models.OutOfStock
			}
		}
		if media, ok := pd["media"].(map[string]interface{}); ok {
			listing.Image = firstAlbumImage(media)
		}
		if sample, err := page.Sample(listing); err == nil {
			return sample, nil
		}
	}

	// Fallback to HTML parsing if JSON fails
	return page.Sample(base.Listing{
		Website:      s.Name(),
		Title:        page.FirstText(".pdp-title", ".pdp-name"),
		PriceText:    page.FirstText(".pdp-price"),
		OriginalText: page.FirstText(".pdp-mrp"),
		StockText:    page.FirstText(".size-buttons-out-of-stock", ".pdp-out-of-stock"),
		Description:  page.FirstText(".pdp-product-description-content"),
	})
}

// pdpData extracts the product JSON assigned to window.__myx
func pdpData(doc *goquery.Document) map[string]interface{} {
	var jsonStr string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, stateMarker)
		if idx < 0 {
			return true
		}
		sub := strings.TrimSpace(text[idx+len(stateMarker):])
		jsonStr = strings.TrimSuffix(sub, ";")
		return false
	})
	if jsonStr == "" {
		return nil
	}

	var state map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &state); err != nil {
		return nil
	}
	pd, _ := state["pdpData"].(map[string]interface{})
	return pd
}

func firstAlbumImage(media map[string]interface{}) string {
	albums, _ := media["albums"].([]interface{})
	for _, album := range albums {
		albumMap, _ := album.(map[string]interface{})
		images, _ := albumMap["images"].([]interface{})
		for _, img := range images {
			if imgMap, ok := img.(map[string]interface{}); ok {
				if src := getString(imgMap, "src"); src != "" {
					return src
				}
			}
		}
	}
	return ""
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getNumber(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case float64:
		return fmt.Sprintf("%.2f", v)
	case string:
		return v
	}
	return ""
}
