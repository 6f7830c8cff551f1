package scrapers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
	"github.com/raushankrgupta/price-tracker/scrapers/generic"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	name    string
	domains []string
}

func (s stubAdapter) Name() string                     { return s.name }
func (s stubAdapter) Domains() []string                { return s.domains }
func (s stubAdapter) Ready(doc *goquery.Document) bool { return true }
func (s stubAdapter) Extract(_ context.Context, page *base.Page) (*models.Sample, error) {
	return page.Sample(base.Listing{Website: s.name, PriceText: page.FirstText(".price")})
}

type stubExtractor struct{ called bool }

func (s *stubExtractor) Extract(context.Context, *base.Page) (*models.Sample, error) {
	s.called = true
	return &models.Sample{Price: decimal.NewFromInt(42), Currency: "USD"}, nil
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		host string
		want string
	}{
		{"amazon.in", "amazon"},
		{"www.amazon.com", "amazon"},
		{"smile.amazon.co.uk", "amazon"},
		{"flipkart.com", "flipkart"},
		{"peterengland.abfrl.in", "peterengland"},
		{"abfrl.in", "generic"},
		{"produto.mercadolivre.com.br", "mercadolivre"},
		{"ebay.com", "ebay"},
		{"shop.example.org", "generic"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Lookup(tt.host).Name())
		})
	}
}

func TestRegistryRejectsDuplicateDomain(t *testing.T) {
	r := NewRegistry(generic.NewGenericScraper())
	require.NoError(t, r.Register(stubAdapter{name: "a", domains: []string{"shop.test"}}))

	err := r.Register(stubAdapter{name: "b", domains: []string{"other.test", "WWW.shop.test"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered by a")
	assert.Equal(t, "generic", r.Lookup("other.test").Name())
}

func newTestScraper(t *testing.T, handler http.HandlerFunc, opts Options) (*Scraper, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r := NewRegistry(generic.NewGenericScraper())
	require.NoError(t, r.Register(stubAdapter{name: "teststore", domains: []string{"127.0.0.1"}}))
	return NewScraper(base.NewBaseScraper(), r, opts), srv.URL + "/item/1"
}

func TestFetch(t *testing.T) {
	s, url := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Item</title></head><body><span class="price">$19.99</span></body></html>`)
	}, Options{RatePerSecond: 10, Burst: 2})

	sample, err := s.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "19.99", sample.Price.String())
	assert.Equal(t, "USD", sample.Currency)
	assert.Equal(t, models.InStock, sample.Availability)
	assert.Equal(t, "teststore", sample.Website)
	assert.Equal(t, url, sample.URL)
}

func TestFetchFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		want    error
	}{
		{
			name: "forbidden",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			want: ErrBlocked,
		},
		{
			name: "captcha page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `<html><head><title>Robot Check</title></head><body>type the characters</body></html>`)
			},
			want: ErrBlocked,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want: ErrNetwork,
		},
		{
			name: "no price",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `<html><body><h1>Item</h1></body></html>`)
			},
			want: ErrParse,
		},
		{
			name: "slow origin",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
			want:    ErrTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, url := newTestScraper(t, tt.handler, Options{})
			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			_, err := s.Fetch(ctx, url)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetchUsesFallbackOnParseFailure(t *testing.T) {
	fallback := &stubExtractor{}
	s, url := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Item</h1></body></html>`)
	}, Options{Fallback: fallback})

	sample, err := s.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.True(t, fallback.called)
	assert.Equal(t, "42", sample.Price.String())
	assert.Equal(t, "teststore", sample.Website)
}
