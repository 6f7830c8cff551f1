package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidTransition is returned when a status change is not allowed
var ErrInvalidTransition = errors.New("invalid tracking status transition")

// Frequency controls how often a tracking is checked
type Frequency string

const (
	Hourly Frequency = "hourly"
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// Interval returns the offset between two checks. Unknown values fall back to daily.
func (f Frequency) Interval() time.Duration {
	switch f {
	case Hourly:
		return time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Status is the tracking lifecycle state
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// AlertType identifies what triggered a price alert
type AlertType string

const (
	AlertNone            AlertType = ""
	AlertTargetReached   AlertType = "target_reached"
	AlertSignificantDrop AlertType = "significant_drop"
	AlertBackInStock     AlertType = "back_in_stock"
	// AlertOutOfStock is recorded without notifying anyone; it arms back_in_stock.
	AlertOutOfStock AlertType = "out_of_stock"
)

// Notifies reports whether the alert kind is sent to the user
func (a AlertType) Notifies() bool {
	return a != AlertNone && a != AlertOutOfStock
}

const (
	DefaultAlertCap  = 50
	DefaultAlertKeep = 20
)

// PriceAlert is a recorded alert for a tracking
type PriceAlert struct {
	Price     decimal.Decimal `bson:"price" json:"price"`
	Timestamp time.Time       `bson:"timestamp" json:"timestamp"`
	Type      AlertType       `bson:"type" json:"type"`
}

// NotificationPrefs selects the channels for one tracking
type NotificationPrefs struct {
	Email     bool `bson:"email" json:"email"`
	Messaging bool `bson:"messaging" json:"messaging"`
}

// Tracking is a user's subscription to one product against a target price
type Tracking struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID              primitive.ObjectID `bson:"user_id" json:"user_id"`
	ProductID           primitive.ObjectID `bson:"product_id" json:"product_id"`
	TargetPrice         decimal.Decimal    `bson:"target_price" json:"target_price"`
	CheckFrequency      Frequency          `bson:"check_frequency" json:"check_frequency"`
	Notifications       NotificationPrefs  `bson:"notifications" json:"notifications"`
	Status              Status             `bson:"status" json:"status"`
	NextCheck           time.Time          `bson:"next_check" json:"next_check"`
	LastNotified        time.Time          `bson:"last_notified,omitempty" json:"last_notified,omitempty"`
	PriceAlerts         []PriceAlert       `bson:"price_alerts" json:"price_alerts"`
	ConsecutiveFailures int                `bson:"consecutive_failures" json:"consecutive_failures"`
	LastError           string             `bson:"last_error,omitempty" json:"last_error,omitempty"`
	Notes               string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updated_at"`
}

// IsTargetReached reports whether price is at or below the target
func (t *Tracking) IsTargetReached(price decimal.Decimal) bool {
	return price.LessThanOrEqual(t.TargetPrice)
}

// AddPriceAlert appends an alert, evicting the oldest beyond limit, and stamps LastNotified
func (t *Tracking) AddPriceAlert(price decimal.Decimal, kind AlertType, at time.Time, limit int) {
	t.PriceAlerts = append(t.PriceAlerts, PriceAlert{Price: price, Timestamp: at, Type: kind})
	t.LastNotified = at
	if limit > 0 && len(t.PriceAlerts) > limit {
		kept := make([]PriceAlert, limit)
		copy(kept, t.PriceAlerts[len(t.PriceAlerts)-limit:])
		t.PriceAlerts = kept
	}
}

// LastAlertType returns the type of the most recent alert
func (t *Tracking) LastAlertType() AlertType {
	if len(t.PriceAlerts) == 0 {
		return AlertNone
	}
	return t.PriceAlerts[len(t.PriceAlerts)-1].Type
}

// TrimAlerts keeps only the most recent keep alerts and reports whether anything changed
func (t *Tracking) TrimAlerts(keep int) bool {
	if keep < 0 || len(t.PriceAlerts) <= keep {
		return false
	}
	kept := make([]PriceAlert, keep)
	copy(kept, t.PriceAlerts[len(t.PriceAlerts)-keep:])
	t.PriceAlerts = kept
	return true
}

// CalculateNextCheck schedules the next check one frequency interval after from
func (t *Tracking) CalculateNextCheck(from time.Time) time.Time {
	t.NextCheck = from.Add(t.CheckFrequency.Interval())
	return t.NextCheck
}

// IsDue reports whether the tracking should be checked at now
func (t *Tracking) IsDue(now time.Time) bool {
	return t.Status == StatusActive && !t.NextCheck.After(now)
}

// Pause suspends an active tracking
func (t *Tracking) Pause() error {
	if t.Status != StatusActive {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusPaused)
	}
	t.Status = StatusPaused
	return nil
}

// Resume reactivates a paused tracking and reschedules it from now
func (t *Tracking) Resume(now time.Time) error {
	if t.Status != StatusPaused {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusActive)
	}
	t.Status = StatusActive
	t.CalculateNextCheck(now)
	return nil
}

// Complete marks an active tracking as finished. Completed is terminal.
func (t *Tracking) Complete() error {
	if t.Status != StatusActive {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusCompleted)
	}
	t.Status = StatusCompleted
	return nil
}

// RecordFailure notes a failed sample attempt
func (t *Tracking) RecordFailure(err error) {
	t.ConsecutiveFailures++
	t.LastError = err.Error()
}

// RecordSuccess clears the failure counter
func (t *Tracking) RecordSuccess() {
	t.ConsecutiveFailures = 0
	t.LastError = ""
}
