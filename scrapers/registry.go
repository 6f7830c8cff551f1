package scrapers

import (
	"fmt"
	"strings"
	"sync"

	"github.com/raushankrgupta/price-tracker/scrapers/amazon"
	"github.com/raushankrgupta/price-tracker/scrapers/flipkart"
	"github.com/raushankrgupta/price-tracker/scrapers/generic"
	"github.com/raushankrgupta/price-tracker/scrapers/myntra"
	"github.com/raushankrgupta/price-tracker/scrapers/peterengland"
	"github.com/raushankrgupta/price-tracker/scrapers/retail"
	"github.com/raushankrgupta/price-tracker/scrapers/tatacliq"
)

// Registry maps host suffixes to adapters
type Registry struct {
	mu       sync.RWMutex
	byDomain map[string]Adapter
	fallback Adapter
}

// NewRegistry creates an empty registry that serves fallback for unknown hosts
func NewRegistry(fallback Adapter) *Registry {
	return &Registry{byDomain: make(map[string]Adapter), fallback: fallback}
}

// DefaultRegistry returns a registry with every built-in adapter
func DefaultRegistry() *Registry {
	r := NewRegistry(generic.NewGenericScraper())
	// Register scrapers here
	for _, a := range []Adapter{
		amazon.NewAmazonScraper(),
		flipkart.NewFlipkartScraper(),
		myntra.NewMyntraScraper(),
		tatacliq.NewTataCliqScraper(),
		peterengland.NewPeterEnglandScraper(),
		retail.NewEbayScraper(),
		retail.NewWalmartScraper(),
		retail.NewTargetScraper(),
		retail.NewMercadoLivreScraper(),
	} {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds an adapter for each of its domains. A domain claimed twice is an error.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range a.Domains() {
		d = strings.TrimPrefix(strings.ToLower(d), "www.")
		if prev, ok := r.byDomain[d]; ok {
			return fmt.Errorf("domain %s already registered by %s", d, prev.Name())
		}
	}
	for _, d := range a.Domains() {
		r.byDomain[strings.TrimPrefix(strings.ToLower(d), "www.")] = a
	}
	return nil
}

// Lookup returns the adapter for host, preferring the longest matching suffix
func (r *Registry) Lookup(host string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for candidate := host; candidate != ""; {
		if a, ok := r.byDomain[candidate]; ok {
			return a
		}
		dot := strings.IndexByte(candidate, '.')
		if dot < 0 {
			break
		}
		candidate = candidate[dot+1:]
	}
	return r.fallback
}
