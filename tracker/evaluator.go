package tracker

import (
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/shopspring/decimal"
)

// EvalInput is what the evaluator sees of one changed reading
type EvalInput struct {
	Price decimal.Decimal
	// Priced is false when the retailer hid the price; price rules are skipped then.
	Priced               bool
	Previous             *models.PriceSample
	Availability         models.Availability
	PreviousAvailability models.Availability
	Target               decimal.Decimal
	LastAlert            models.AlertType
	DropThreshold        decimal.Decimal
}

// Verdict is the evaluator's decision. Type is AlertNone when nothing fires.
type Verdict struct {
	Type          models.AlertType
	PercentChange decimal.Decimal
}

// Evaluate applies the alert rules in priority order; the first match wins.
func Evaluate(in EvalInput) Verdict {
	v := Verdict{Type: models.AlertNone}
	if in.Previous != nil {
		v.PercentChange = models.PercentChange(in.Previous.Price, in.Price)
	}

	switch {
	case in.Priced && in.Price.LessThanOrEqual(in.Target):
		v.Type = models.AlertTargetReached
	case in.Priced && v.PercentChange.LessThan(in.DropThreshold):
		v.Type = models.AlertSignificantDrop
	case in.Availability == models.InStock && in.LastAlert == models.AlertOutOfStock:
		v.Type = models.AlertBackInStock
	case in.Availability == models.OutOfStock && in.PreviousAvailability != models.OutOfStock && in.LastAlert != models.AlertOutOfStock:
		v.Type = models.AlertOutOfStock
	}
	return v
}
