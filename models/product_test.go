package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(price int64, ts time.Time) PriceSample {
	return PriceSample{Price: decimal.NewFromInt(price), Timestamp: ts, Availability: InStock}
}

func TestAddPriceToHistoryKeepsMostRecent(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Product{Currency: "USD"}

	for i := 0; i < 250; i++ {
		p.AddPriceToHistory(sampleAt(int64(i), base.Add(time.Duration(i)*time.Minute)), DefaultHistoryCap)
		require.LessOrEqual(t, len(p.PriceHistory), DefaultHistoryCap)
	}

	require.Len(t, p.PriceHistory, DefaultHistoryCap)
	assert.True(t, p.PriceHistory[0].Price.Equal(decimal.NewFromInt(150)))
	assert.True(t, p.PriceHistory[99].Price.Equal(decimal.NewFromInt(249)))
	for i := 1; i < len(p.PriceHistory); i++ {
		assert.True(t, p.PriceHistory[i-1].Timestamp.Before(p.PriceHistory[i].Timestamp))
	}

	assert.True(t, p.CurrentPrice.Equal(decimal.NewFromInt(249)))
	assert.Equal(t, base.Add(249*time.Minute), p.LastChecked)
	assert.Equal(t, "USD", p.PriceHistory[0].Currency)
}

func TestPriceChange(t *testing.T) {
	now := time.Now()
	p := &Product{}
	assert.True(t, p.PriceChange().IsZero())

	p.AddPriceToHistory(sampleAt(1099, now), DefaultHistoryCap)
	assert.True(t, p.PriceChange().IsZero(), "a single sample has no change")

	p.AddPriceToHistory(sampleAt(999, now.Add(time.Hour)), DefaultHistoryCap)
	change := p.PriceChange()
	assert.True(t, change.LessThan(decimal.NewFromInt(-9)))
	assert.True(t, change.GreaterThan(decimal.NewFromInt(-10)))
}

func TestPercentChangeZeroPrevious(t *testing.T) {
	assert.True(t, PercentChange(decimal.Zero, decimal.NewFromInt(10)).IsZero())
	assert.Equal(t, "-50", PercentChange(decimal.NewFromInt(10), decimal.NewFromInt(5)).String())
}

func TestLowestHighest(t *testing.T) {
	p := &Product{}
	_, ok := p.LowestPrice()
	assert.False(t, ok)

	now := time.Now()
	for _, v := range []int64{50, 20, 80, 35} {
		p.AddPriceToHistory(sampleAt(v, now), 0)
	}
	low, ok := p.LowestPrice()
	require.True(t, ok)
	high, _ := p.HighestPrice()
	assert.Equal(t, "20", low.String())
	assert.Equal(t, "80", high.String())
}

func TestTrimHistoryBefore(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := &Product{}
	p.PriceHistory = []PriceSample{
		sampleAt(1, now.AddDate(0, 0, -40)),
		sampleAt(2, now.AddDate(0, 0, -31)),
		sampleAt(3, now.AddDate(0, 0, -2)),
	}
	cutoff := now.AddDate(0, 0, -30)

	require.True(t, p.HasSamplesBefore(cutoff))
	dropped := p.TrimHistoryBefore(cutoff)
	assert.Len(t, dropped, 2)
	require.Len(t, p.PriceHistory, 1)
	assert.Equal(t, "3", p.PriceHistory[0].Price.String())

	assert.Empty(t, p.TrimHistoryBefore(cutoff))
	assert.False(t, p.HasSamplesBefore(cutoff))
}

func TestSampleDiffers(t *testing.T) {
	p := &Product{CurrentPrice: decimal.NewFromInt(10), Availability: InStock}

	assert.False(t, (&Sample{Price: decimal.RequireFromString("10.00"), Availability: InStock}).Differs(p))
	assert.True(t, (&Sample{Price: decimal.NewFromInt(9), Availability: InStock}).Differs(p))
	assert.True(t, (&Sample{Price: decimal.NewFromInt(10), Availability: OutOfStock}).Differs(p))
}

func TestApplyDetailsOnlyFillsEmptyFields(t *testing.T) {
	p := &Product{Title: "Kept"}
	p.ApplyDetails(&Sample{Title: "New", Image: "img.jpg", Currency: "INR"})
	assert.Equal(t, "Kept", p.Title)
	assert.Equal(t, "img.jpg", p.Image)
	assert.Equal(t, "INR", p.Currency)
}
