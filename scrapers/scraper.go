package scrapers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/scrapers/base"
	"github.com/raushankrgupta/price-tracker/utils"
	"golang.org/x/time/rate"
)

// Options tunes a Scraper. A zero RatePerSecond disables per-host limiting.
type Options struct {
	RatePerSecond float64
	Burst         int
	Fallback      Extractor
}

// Scraper turns a product URL into a price sample using the registered adapters
type Scraper struct {
	engine   *base.BaseScraper
	registry *Registry
	fallback Extractor

	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewScraper(engine *base.BaseScraper, registry *Registry, opts Options) *Scraper {
	if registry == nil {
		registry = DefaultRegistry()
	}
	s := &Scraper{
		engine:   engine,
		registry: registry,
		fallback: opts.Fallback,
		limit:    rate.Inf,
		burst:    opts.Burst,
		limiters: make(map[string]*rate.Limiter),
	}
	if opts.RatePerSecond > 0 {
		s.limit = rate.Limit(opts.RatePerSecond)
	}
	if s.burst <= 0 {
		s.burst = 1
	}
	return s
}

// Fetch returns a fresh sample for rawURL. Every error wraps one of the failure kinds.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*models.Sample, error) {
	url := rawURL
	if utils.IsShortLink(url) {
		resolved, err := utils.ResolveShortenedURL(ctx, url)
		if err != nil {
			return nil, base.Fail(rawURL, base.KindOf(ctx, err), fmt.Errorf("error resolving url: %w", err))
		}
		url = resolved
	}

	host, err := utils.HostOf(url)
	if err != nil {
		return nil, base.Fail(url, base.ErrParse, err)
	}
	adapter := s.registry.Lookup(host)
	if adapter == nil {
		return nil, base.Fail(url, base.ErrParse, fmt.Errorf("no scraper found for host %s", host))
	}

	if err := s.limiter(host).Wait(ctx); err != nil {
		return nil, base.Fail(url, base.ErrTimeout, err)
	}

	doc, err := s.engine.FetchDocument(ctx, url, adapter.Ready)
	if err != nil {
		return nil, err
	}

	page := &base.Page{URL: url, Host: host, Doc: doc}
	sample, err := adapter.Extract(ctx, page)
	if err != nil && errors.Is(err, base.ErrParse) && s.fallback != nil && ctx.Err() == nil {
		log.Printf("[Scraper] %s could not read %s (%v), asking fallback extractor", adapter.Name(), url, err)
		sample, err = s.fallback.Extract(ctx, page)
	}
	if err != nil {
		return nil, base.Fail(url, base.KindOf(ctx, err), fmt.Errorf("%s: %w", adapter.Name(), err))
	}

	if sample.Availability == "" {
		sample.Availability = models.InStock
	}
	if sample.Website == "" {
		sample.Website = adapter.Name()
	}
	sample.URL = url
	return sample, nil
}

func (s *Scraper) limiter(host string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[host]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[host] = l
	}
	return l
}

// Close shuts down the shared browser engines and the fallback client
func (s *Scraper) Close() {
	s.engine.Close()
	if c, ok := s.fallback.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			log.Printf("[Scraper] closing fallback extractor: %v", err)
		}
	}
}
