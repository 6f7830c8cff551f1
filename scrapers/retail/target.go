package retail

func NewTargetScraper() *Adapter {
	return New("target", []string{"target.com"}, Selectors{
		Title:     []string{"h1[data-test='product-title']", "h1"},
		Price:     []string{"[data-test='product-price']", ".price-current"},
		Original:  []string{"[data-test='product-regular-price']"},
		Image:     []string{"[data-test='hero-image'] img", ".hero-image img"},
		Stock:     []string{"[data-test='outOfStockMessage']", "[data-test='soldOutBlock']"},
		BuyButton: "button[data-test='shippingButton'], button[data-test='orderPickupButton'], button[data-test='add-to-cart']",
	})
}
