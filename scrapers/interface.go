package scrapers

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
)

// Adapter defines the interface for all site-specific extractors
type Adapter interface {
	// Name identifies the retailer in logs and in Product.Website
	Name() string
	// Domains lists the host suffixes the adapter handles
	Domains() []string
	// Ready checks that a fetched document carries the product content
	Ready(doc *goquery.Document) bool
	// Extract reads a price sample out of the page
	Extract(ctx context.Context, page *base.Page) (*models.Sample, error)
}

// Extractor reads a sample from any page; used as a fallback after a parse failure
type Extractor interface {
	Extract(ctx context.Context, page *base.Page) (*models.Sample, error)
}

// Failure kinds, re-exported so callers need not import base
var (
	ErrTimeout = base.ErrTimeout
	ErrBlocked = base.ErrBlocked
	ErrParse   = base.ErrParse
	ErrNetwork = base.ErrNetwork
)
