// Package tracker is the scheduling and evaluation engine: it finds due trackings,
// samples their products, raises alerts and keeps the stored history bounded.
package tracker

import (
	"context"
	"time"

	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/notifier"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the persistence contract the engine runs against
type Store interface {
	// LoadDue returns active trackings whose next check is not after now,
	// joined with their product and user.
	LoadDue(ctx context.Context, now time.Time) ([]models.DueItem, error)
	GetDueItem(ctx context.Context, trackingID primitive.ObjectID) (*models.DueItem, error)
	SaveProduct(ctx context.Context, p *models.Product) error
	SaveTracking(ctx context.Context, t *models.Tracking) error
	DeleteCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// FindTrackingsWithOversizedAlertLog returns trackings holding more than limit alerts
	FindTrackingsWithOversizedAlertLog(ctx context.Context, limit int) ([]*models.Tracking, error)
	// FindProductsWithStaleHistory returns products with at least one sample before cutoff
	FindProductsWithStaleHistory(ctx context.Context, cutoff time.Time) ([]*models.Product, error)
	// TrimHistory drops the samples before cutoff from one product and leaves every
	// other field as currently stored. Returns the number of samples dropped.
	TrimHistory(ctx context.Context, productID primitive.ObjectID, cutoff time.Time) (int, error)
	// TrimAlertLog keeps the newest keep alerts of one tracking and leaves every
	// other field as currently stored. Reports whether anything was dropped.
	TrimAlertLog(ctx context.Context, trackingID primitive.ObjectID, keep int) (bool, error)
}

// SampleSource fetches a fresh reading for a product URL
type SampleSource interface {
	Fetch(ctx context.Context, url string) (*models.Sample, error)
}

// Notifier delivers an alert over one channel
type Notifier interface {
	SendEmail(ctx context.Context, address string, p notifier.Payload) error
	SendMessage(ctx context.Context, phone string, p notifier.Payload) error
}

// Archiver keeps samples that history retention is about to drop
type Archiver interface {
	ArchiveSamples(ctx context.Context, product *models.Product, samples []models.PriceSample) error
}
