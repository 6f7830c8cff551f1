package retail

func NewWalmartScraper() *Adapter {
	return New("walmart", []string{"walmart.com", "walmart.ca"}, Selectors{
		Title:     []string{"h1[data-testid='product-title']", "h1#main-title", "h1"},
		Price:     []string{"[itemprop='price']", "[data-testid='price-wrap'] [aria-hidden='false']", "[data-testid='price-wrap']", ".price-characteristic"},
		Original:  []string{"[data-testid='strike-through-price']", ".strike-through"},
		Image:     []string{"[data-testid='hero-image'] img", "[data-testid='hero-image']", ".prod-hero-image img"},
		Stock:     []string{"[data-testid='out-of-stock-message']"},
		BuyButton: "button[data-testid='add-to-cart'], button[data-automation-id='atc']",
	})
}
