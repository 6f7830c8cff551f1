package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Availability is the stock state reported by a retailer
type Availability string

const (
	InStock    Availability = "in_stock"
	OutOfStock Availability = "out_of_stock"
	Limited    Availability = "limited"
)

// Valid reports whether a is one of the known stock states
func (a Availability) Valid() bool {
	switch a {
	case InStock, OutOfStock, Limited:
		return true
	}
	return false
}

// DefaultHistoryCap is the number of samples kept per product
const DefaultHistoryCap = 100

// PriceSample is one observed reading stored in a product's history
type PriceSample struct {
	Price        decimal.Decimal `bson:"price" json:"price"`
	Currency     string          `bson:"currency" json:"currency"`
	Timestamp    time.Time       `bson:"timestamp" json:"timestamp"`
	Availability Availability    `bson:"availability" json:"availability"`
}

// Product represents an externally hosted product being watched
type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	URL           string             `bson:"url" json:"url"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	Image         string             `bson:"image,omitempty" json:"image,omitempty"`
	Website       string             `bson:"website" json:"website"`
	CurrentPrice  decimal.Decimal    `bson:"current_price" json:"current_price"`
	OriginalPrice decimal.Decimal    `bson:"original_price" json:"original_price"` // List price before discount
	Currency      string             `bson:"currency" json:"currency"`
	Availability  Availability       `bson:"availability" json:"availability"`
	PriceHistory  []PriceSample      `bson:"price_history" json:"price_history"`
	LastChecked   time.Time          `bson:"last_checked" json:"last_checked"`
	IsActive      bool               `bson:"is_active" json:"is_active"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// AddPriceToHistory appends a sample, evicting the oldest entries beyond limit,
// and moves the product's current state to the sample.
func (p *Product) AddPriceToHistory(s PriceSample, limit int) {
	if s.Currency == "" {
		s.Currency = p.Currency
	}
	p.PriceHistory = append(p.PriceHistory, s)
	if limit > 0 && len(p.PriceHistory) > limit {
		kept := make([]PriceSample, limit)
		copy(kept, p.PriceHistory[len(p.PriceHistory)-limit:])
		p.PriceHistory = kept
	}

	p.CurrentPrice = s.Price
	p.Availability = s.Availability
	p.LastChecked = s.Timestamp
}

// LatestSamples returns the newest sample and the one before it.
// Either may be nil when the history is too short.
func (p *Product) LatestSamples() (current, previous *PriceSample) {
	n := len(p.PriceHistory)
	if n > 0 {
		current = &p.PriceHistory[n-1]
	}
	if n > 1 {
		previous = &p.PriceHistory[n-2]
	}
	return current, previous
}

// PriceChange returns the percent change between the two most recent samples
func (p *Product) PriceChange() decimal.Decimal {
	current, previous := p.LatestSamples()
	if current == nil || previous == nil {
		return decimal.Zero
	}
	return PercentChange(previous.Price, current.Price)
}

// PercentChange is ((next - prev) / prev) * 100, or zero when prev is zero
func PercentChange(prev, next decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		return decimal.Zero
	}
	return next.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
}

// LowestPrice returns the minimum price in history and false if there is none
func (p *Product) LowestPrice() (decimal.Decimal, bool) {
	if len(p.PriceHistory) == 0 {
		return decimal.Zero, false
	}
	low := p.PriceHistory[0].Price
	for _, s := range p.PriceHistory[1:] {
		if s.Price.LessThan(low) {
			low = s.Price
		}
	}
	return low, true
}

// HighestPrice returns the maximum price in history and false if there is none
func (p *Product) HighestPrice() (decimal.Decimal, bool) {
	if len(p.PriceHistory) == 0 {
		return decimal.Zero, false
	}
	high := p.PriceHistory[0].Price
	for _, s := range p.PriceHistory[1:] {
		if s.Price.GreaterThan(high) {
			high = s.Price
		}
	}
	return high, true
}

// OldestSampleAt returns the timestamp of the first sample, zero if empty
func (p *Product) OldestSampleAt() time.Time {
	var oldest time.Time
	for _, s := range p.PriceHistory {
		if oldest.IsZero() || s.Timestamp.Before(oldest) {
			oldest = s.Timestamp
		}
	}
	return oldest
}

// HasSamplesBefore reports whether any sample is older than cutoff
func (p *Product) HasSamplesBefore(cutoff time.Time) bool {
	for _, s := range p.PriceHistory {
		if s.Timestamp.Before(cutoff) {
			return true
		}
	}
	return false
}

// TrimHistoryBefore drops samples older than cutoff and returns them
func (p *Product) TrimHistoryBefore(cutoff time.Time) []PriceSample {
	var dropped []PriceSample
	kept := p.PriceHistory[:0:0]
	for _, s := range p.PriceHistory {
		if s.Timestamp.Before(cutoff) {
			dropped = append(dropped, s)
			continue
		}
		kept = append(kept, s)
	}
	if len(dropped) > 0 {
		p.PriceHistory = kept
	}
	return dropped
}

// ApplyDetails fills descriptive fields from a sample when they are still empty
func (p *Product) ApplyDetails(s *Sample) {
	if p.Title == "" && s.Title != "" {
		p.Title = s.Title
	}
	if p.Image == "" && s.Image != "" {
		p.Image = s.Image
	}
	if p.Description == "" && s.Description != "" {
		p.Description = s.Description
	}
	if !s.OriginalPrice.IsZero() {
		p.OriginalPrice = s.OriginalPrice
	}
	if p.Currency == "" && s.Currency != "" {
		p.Currency = s.Currency
	}
}

// Sample is a fresh reading returned by a scraper
type Sample struct {
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Currency      string          `json:"currency"`
	Availability  Availability    `json:"availability"`
	Title         string          `json:"title,omitempty"`
	Image         string          `json:"image,omitempty"`
	Description   string          `json:"description,omitempty"`
	Website       string          `json:"website"`
	URL           string          `json:"url"`
}

// Differs reports whether the sample changes the product's price or stock state
func (s *Sample) Differs(p *Product) bool {
	return !s.Price.Equal(p.CurrentPrice) || s.Availability != p.Availability
}

// PriceSampleAt converts the reading into a history entry
func (s *Sample) PriceSampleAt(ts time.Time) PriceSample {
	return PriceSample{
		Price:        s.Price,
		Currency:     s.Currency,
		Timestamp:    ts,
		Availability: s.Availability,
	}
}
