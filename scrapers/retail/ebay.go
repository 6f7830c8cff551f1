package retail

func NewEbayScraper() *Adapter {
	return New("ebay", []string{"ebay.com", "ebay.in", "ebay.co.uk", "ebay.de"}, Selectors{
		Title:     []string{"h1.x-item-title__mainTitle", "h1[class*='title']", "h1"},
		Price:     []string{"[data-testid='x-price-primary']", ".x-price-primary", ".x-price-current", "[data-testid='price']"},
		Original:  []string{".x-additional-info__textual-display .ux-textspans--STRIKETHROUGH", ".x-price-was"},
		Image:     []string{"#icImg", ".ux-image-carousel-item img"},
		Stock:     []string{".d-quantity__availability .ux-textspans--SECONDARY", "#qtySubTxt"},
		BuyButton: "[data-testid='x-bin-action'], a#binBtn_btn, [data-testid='ux-call-to-action']",
	})
}
