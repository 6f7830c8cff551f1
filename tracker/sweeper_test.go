package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/raushankrgupta/price-tracker/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestSweeper(s *memStore, archive Archiver) *Sweeper {
	sw := NewSweeper(s, archive, testSettings())
	sw.now = func() time.Time { return t0 }
	return sw
}

func historyAt(days ...int) []models.PriceSample {
	var out []models.PriceSample
	for _, d := range days {
		out = append(out, models.PriceSample{
			Price:        decimal.NewFromInt(int64(100 + d)),
			Currency:     "USD",
			Timestamp:    t0.Add(-time.Duration(d) * 24 * time.Hour),
			Availability: models.InStock,
		})
	}
	return out
}

func alerts(n int) []models.PriceAlert {
	out := make([]models.PriceAlert, n)
	for i := range out {
		out[i] = models.PriceAlert{Price: decimal.NewFromInt(int64(i)), Timestamp: t0.Add(time.Duration(i) * time.Minute), Type: models.AlertSignificantDrop}
	}
	return out
}

func TestMaintenanceRetention(t *testing.T) {
	s := newMemStore()
	stale := s.addProduct(&models.Product{URL: "https://a", PriceHistory: historyAt(40, 35, 1)})
	fresh := s.addProduct(&models.Product{URL: "https://b", PriceHistory: historyAt(2, 1)})
	chatty := s.addTracking(&models.Tracking{Status: models.StatusActive, PriceAlerts: alerts(30)})
	oldDone := s.addTracking(&models.Tracking{Status: models.StatusCompleted, UpdatedAt: t0.Add(-100 * 24 * time.Hour)})
	recentDone := s.addTracking(&models.Tracking{Status: models.StatusCompleted, UpdatedAt: t0.Add(-10 * 24 * time.Hour)})
	oldActive := s.addTracking(&models.Tracking{Status: models.StatusActive, UpdatedAt: t0.Add(-100 * 24 * time.Hour)})
	archive := &fakeArchive{}

	report, err := newTestSweeper(s, archive).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProductsTrimmed)
	assert.Equal(t, 2, report.SamplesDropped)
	assert.Equal(t, 2, report.SamplesArchived)
	assert.Equal(t, 1, report.TrackingsTrimmed)
	assert.Equal(t, int64(1), report.TrackingsDeleted)

	assert.Equal(t, historyAt(1), s.product(stale.ID).PriceHistory)
	assert.Len(t, s.product(fresh.ID).PriceHistory, 2)
	assert.Equal(t, historyAt(40, 35), archive.archived[stale.ID])

	trimmed := s.tracking(chatty.ID).PriceAlerts
	require.Len(t, trimmed, 20)
	assert.Equal(t, "10", trimmed[0].Price.String())
	assert.Equal(t, "29", trimmed[19].Price.String())

	assert.Nil(t, s.tracking(oldDone.ID))
	assert.NotNil(t, s.tracking(recentDone.ID))
	assert.NotNil(t, s.tracking(oldActive.ID))
}

func TestMaintenanceIsIdempotent(t *testing.T) {
	s := newMemStore()
	s.addProduct(&models.Product{URL: "https://a", PriceHistory: historyAt(40, 1)})
	s.addTracking(&models.Tracking{Status: models.StatusActive, PriceAlerts: alerts(25)})
	s.addTracking(&models.Tracking{Status: models.StatusCompleted, UpdatedAt: t0.Add(-100 * 24 * time.Hour)})
	sw := newTestSweeper(s, nil)

	_, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.trims)

	report, err := sw.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.ProductsTrimmed)
	assert.Zero(t, report.TrackingsTrimmed)
	assert.Zero(t, report.TrackingsDeleted)
	assert.Equal(t, 2, s.trims)
	assert.Zero(t, s.productSaves)
	assert.Empty(t, s.trackingSaves)
}

func TestArchiveFailureLeavesProductUntouched(t *testing.T) {
	s := newMemStore()
	p := s.addProduct(&models.Product{URL: "https://a", PriceHistory: historyAt(40, 1)})

	report, err := newTestSweeper(s, &fakeArchive{err: errBoom}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.RecordFailures)
	assert.Zero(t, report.ProductsTrimmed)
	assert.Len(t, s.product(p.ID).PriceHistory, 2)
	assert.Zero(t, s.trims)
}

func TestMaintenanceKeepsConcurrentCheckWrites(t *testing.T) {
	s := newMemStore()
	p := s.addProduct(&models.Product{URL: "https://a", PriceHistory: historyAt(40, 1)})
	tr := s.addTracking(&models.Tracking{Status: models.StatusActive, PriceAlerts: alerts(30)})

	// A check completes the tracking and records a sample between the
	// maintenance reads and its writes.
	var once sync.Once
	s.afterFind = func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			stored := s.trackings[tr.ID]
			stored.Status = models.StatusCompleted
			stored.NextCheck = t0.Add(24 * time.Hour)
			stored.AddPriceAlert(decimal.NewFromInt(99), models.AlertTargetReached, t0, models.DefaultAlertCap)
			sample := models.PriceSample{Price: decimal.NewFromInt(90), Timestamp: t0, Availability: models.InStock}
			s.products[p.ID].AddPriceToHistory(sample, models.DefaultHistoryCap)
		})
	}

	report, err := newTestSweeper(s, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProductsTrimmed)
	assert.Equal(t, 1, report.TrackingsTrimmed)

	got := s.tracking(tr.ID)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, t0.Add(24*time.Hour), got.NextCheck)
	require.Len(t, got.PriceAlerts, 20)
	assert.Equal(t, models.AlertTargetReached, got.LastAlertType())

	history := s.product(p.ID).PriceHistory
	require.Len(t, history, 2)
	assert.Equal(t, t0, history[1].Timestamp)
	assert.True(t, s.product(p.ID).CurrentPrice.Equal(decimal.NewFromInt(90)))
}

func TestMaintenanceTrimFailureIsCounted(t *testing.T) {
	s := newMemStore()
	s.addProduct(&models.Product{URL: "https://a", PriceHistory: historyAt(40, 1)})
	s.addTracking(&models.Tracking{Status: models.StatusActive, PriceAlerts: alerts(25)})
	s.trimErr = errBoom

	report, err := newTestSweeper(s, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.RecordFailures)
	assert.Zero(t, report.ProductsTrimmed)
	assert.Zero(t, report.TrackingsTrimmed)
}

func TestMaintenanceJoinsTopLevelErrors(t *testing.T) {
	s := newMemStore()
	s.findErr = errBoom
	s.addTracking(&models.Tracking{ID: primitive.NewObjectID(), Status: models.StatusCompleted, UpdatedAt: t0.Add(-100 * 24 * time.Hour)})

	report, err := newTestSweeper(s, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Len(t, report.Errors, 2)
	// Tracking retention still ran.
	assert.Equal(t, int64(1), report.TrackingsDeleted)
}
