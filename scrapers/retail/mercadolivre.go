package retail

// Mercado Livre shows the promotional price in the second price line; the
// first line is the struck list price.
func NewMercadoLivreScraper() *Adapter {
	return New("mercadolivre", []string{"mercadolivre.com.br", "mercadolibre.com"}, Selectors{
		Title: []string{"h1.ui-pdp-title", "h1"},
		Price: []string{
			".ui-pdp-price__second-line .andes-money-amount",
			".ui-pdp-price--size-large .andes-money-amount",
			"[data-testid='price'] .andes-money-amount",
			".andes-money-amount",
		},
		Original: []string{".ui-pdp-price__original-value", "s.andes-money-amount--previous"},
		Image:    []string{"figure.ui-pdp-gallery__figure img", ".ui-pdp-image"},
		Stock:    []string{".ui-pdp-stock-information__title", ".ui-pdp-message--warning"},
	})
}
