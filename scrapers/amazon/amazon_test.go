package amazon

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(t *testing.T, host, html string) *base.Page {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return &base.Page{URL: "https://www." + host + "/dp/B0TEST", Host: host, Doc: doc}
}

func TestExtract(t *testing.T) {
	html := `<html><body>
<span id="productTitle">  Wireless Mouse  </span>
<div class="priceToPay"><span class="a-offscreen">₹1,299.00</span></div>
<div class="basisPrice"><span class="a-offscreen">₹1,999.00</span></div>
<div id="availability"><span>In stock</span></div>
<img id="landingImage" data-old-hires="https://m.media-amazon.com/images/I/mouse.jpg">
</body></html>`

	s := NewAmazonScraper()
	p := page(t, "amazon.in", html)
	require.True(t, s.Ready(p.Doc))

	sample, err := s.Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "1299", sample.Price.String())
	assert.Equal(t, "1999", sample.OriginalPrice.String())
	assert.Equal(t, "INR", sample.Currency)
	assert.Equal(t, "Wireless Mouse", sample.Title)
	assert.Equal(t, "https://m.media-amazon.com/images/I/mouse.jpg", sample.Image)
	assert.Equal(t, models.InStock, sample.Availability)
	assert.Equal(t, "amazon", sample.Website)
}

func TestExtractWholeAndFraction(t *testing.T) {
	html := `<html><body><span id="productTitle">Kettle</span>
<div class="priceToPay"><span class="a-price-symbol">$</span><span class="a-price-whole">24.</span><span class="a-price-fraction">99</span></div>
</body></html>`

	sample, err := NewAmazonScraper().Extract(context.Background(), page(t, "amazon.com", html))
	require.NoError(t, err)
	assert.Equal(t, "24.99", sample.Price.String())
	assert.Equal(t, "USD", sample.Currency)
}

func TestExtractUnavailableWithoutPrice(t *testing.T) {
	html := `<html><body><span id="productTitle">Kettle</span>
<div id="availability"><span>Currently unavailable.</span></div></body></html>`

	sample, err := NewAmazonScraper().Extract(context.Background(), page(t, "amazon.com", html))
	require.NoError(t, err)
	assert.True(t, sample.Price.IsZero())
	assert.Equal(t, models.OutOfStock, sample.Availability)
}

func TestReadyRequiresTitle(t *testing.T) {
	p := page(t, "amazon.com", `<html><body><div>nothing here</div></body></html>`)
	assert.False(t, NewAmazonScraper().Ready(p.Doc))
}
