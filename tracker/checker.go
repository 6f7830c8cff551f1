package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/utils"
)

// Outcome summarises what happened to one tracking during a check
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "sample_failed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeChanged   Outcome = "changed"
	OutcomeAlerted   Outcome = "alerted"
)

// Result is the per-tracking report of a check
type Result struct {
	TrackingID string           `json:"tracking_id"`
	Outcome    Outcome          `json:"outcome"`
	Alert      models.AlertType `json:"alert,omitempty"`
	Notified   int              `json:"notified"`
	Err        error            `json:"-"`
}

// Checker runs due items through sample, evaluate, notify and reschedule
type Checker struct {
	store    Store
	source   SampleSource
	notifier Notifier
	settings Settings
	now      func() time.Time
}

func NewChecker(store Store, source SampleSource, n Notifier, settings Settings) *Checker {
	return &Checker{
		store:    store,
		source:   source,
		notifier: n,
		settings: settings.withDefaults(),
		now:      time.Now,
	}
}

// Check runs a single item
func (c *Checker) Check(ctx context.Context, item models.DueItem) Result {
	if item.Tracking == nil {
		return Result{Outcome: OutcomeSkipped, Err: errors.New("due item has no tracking")}
	}
	results := c.CheckGroup(ctx, []models.DueItem{item})
	if len(results) == 0 {
		return Result{TrackingID: item.Tracking.ID.Hex(), Outcome: OutcomeSkipped}
	}
	return results[0]
}

// CheckGroup checks items that share one product. The product is sampled once
// and every tracking is evaluated against that sample. Returns one result per item.
func (c *Checker) CheckGroup(ctx context.Context, items []models.DueItem) []Result {
	results := make([]Result, 0, len(items))
	live := make([]models.DueItem, 0, len(items))
	for _, item := range items {
		if item.Tracking == nil {
			continue
		}
		if item.Orphaned() {
			log.Printf("[Checker] Skipping tracking %s: missing %s", item.Tracking.ID.Hex(), missingRef(item))
			results = append(results, Result{TrackingID: item.Tracking.ID.Hex(), Outcome: OutcomeSkipped})
			continue
		}
		live = append(live, item)
	}
	if len(live) == 0 {
		return results
	}

	var logMessagesBuilder strings.Builder
	defer utils.FlushLogMessage(&logMessagesBuilder)

	start := c.now()
	product := live[0].Product
	utils.AddToLogMessage(&logMessagesBuilder, "[Checker] Checking product %s (%s) for %d tracking(s)", product.ID.Hex(), product.URL, len(live))

	previousAvailability := product.Availability
	sample, sampleErr := c.sample(ctx, product.URL)
	changed, priced := false, false
	if sampleErr != nil {
		utils.AddToLogMessage(&logMessagesBuilder, "Sample failed: %v", sampleErr)
	} else {
		changed, priced = c.applySample(product, sample, start)
		utils.AddToLogMessage(&logMessagesBuilder, "Sampled %s %s (%s), changed=%t", sample.Price, sample.Currency, sample.Availability, changed)
		if err := c.saveProduct(ctx, product); err != nil {
			utils.AddToLogMessage(&logMessagesBuilder, "Failed to save product %s: %v", product.ID.Hex(), err)
		}
	}

	for _, item := range live {
		item.Product = product
		results = append(results, c.finish(ctx, item, checkState{
			start:                start,
			sampleErr:            sampleErr,
			changed:              changed,
			priced:               priced,
			previousAvailability: previousAvailability,
		}, &logMessagesBuilder))
	}
	return results
}

type checkState struct {
	start                time.Time
	sampleErr            error
	changed              bool
	priced               bool
	previousAvailability models.Availability
}

// applySample moves the product to the sample and reports whether it changed.
// Unpriced out-of-stock readings keep the last known price.
func (c *Checker) applySample(product *models.Product, sample *models.Sample, start time.Time) (changed, priced bool) {
	priced = sample.Price.IsPositive()
	if !priced {
		sample.Price = product.CurrentPrice
	}
	product.ApplyDetails(sample)
	product.UpdatedAt = start

	if !sample.Differs(product) {
		product.LastChecked = start
		return false, priced
	}
	product.AddPriceToHistory(sample.PriceSampleAt(start), c.settings.HistoryCap)
	return true, priced
}

// finish evaluates and reschedules one tracking. A panic is contained to the item.
func (c *Checker) finish(ctx context.Context, item models.DueItem, st checkState, logb *strings.Builder) (res Result) {
	t := item.Tracking
	res = Result{TrackingID: t.ID.Hex(), Outcome: OutcomeUnchanged}
	defer func() {
		if r := recover(); r != nil {
			utils.AddToLogMessage(logb, "Tracking %s panicked: %v", t.ID.Hex(), r)
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("tracking %s: panic: %v", t.ID.Hex(), r)
		}
	}()

	switch {
	case st.sampleErr != nil:
		res.Outcome = OutcomeFailed
		res.Err = st.sampleErr
		t.RecordFailure(st.sampleErr)
		if t.ConsecutiveFailures >= c.settings.FailureWarnThreshold {
			utils.AddToLogMessage(logb, "WARNING: tracking %s has failed %d consecutive checks", t.ID.Hex(), t.ConsecutiveFailures)
		}
	case st.changed:
		t.RecordSuccess()
		res.Outcome = OutcomeChanged
		c.evaluate(ctx, item, st, &res, logb)
	default:
		t.RecordSuccess()
	}

	t.CalculateNextCheck(st.start)
	t.UpdatedAt = st.start
	if err := c.store.SaveTracking(ctx, t); err != nil {
		utils.AddToLogMessage(logb, "Failed to save tracking %s (user %s, product %s): %v", t.ID.Hex(), t.UserID.Hex(), t.ProductID.Hex(), err)
		if res.Err == nil {
			res.Err = err
		}
	}
	return res
}

func (c *Checker) evaluate(ctx context.Context, item models.DueItem, st checkState, res *Result, logb *strings.Builder) {
	t, product := item.Tracking, item.Product
	_, previous := product.LatestSamples()

	verdict := Evaluate(EvalInput{
		Price:                product.CurrentPrice,
		Priced:               st.priced,
		Previous:             previous,
		Availability:         product.Availability,
		PreviousAvailability: st.previousAvailability,
		Target:               t.TargetPrice,
		LastAlert:            t.LastAlertType(),
		DropThreshold:        c.settings.DropThreshold,
	})
	if verdict.Type == models.AlertNone {
		return
	}

	t.AddPriceAlert(product.CurrentPrice, verdict.Type, st.start, c.settings.AlertCap)
	res.Alert = verdict.Type
	res.Outcome = OutcomeAlerted
	utils.AddToLogMessage(logb, "Tracking %s: %s at %s (%s%%)", t.ID.Hex(), verdict.Type, product.CurrentPrice, verdict.PercentChange.StringFixed(2))

	if verdict.Type.Notifies() {
		res.Notified = c.notify(ctx, item, verdict, logb)
	}
	if verdict.Type == models.AlertTargetReached {
		if err := t.Complete(); err != nil {
			utils.AddToLogMessage(logb, "Tracking %s not completed: %v", t.ID.Hex(), err)
		}
	}
}

func (c *Checker) sample(ctx context.Context, url string) (s *models.Sample, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.RequestTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("scraper panic: %v", r)
		}
	}()

	s, err = c.source.Fetch(ctx, url)
	if err == nil && s == nil {
		err = errors.New("scraper returned no sample")
	}
	return s, err
}

func (c *Checker) saveProduct(ctx context.Context, p *models.Product) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("save product panic: %v", r)
		}
	}()
	return c.store.SaveProduct(ctx, p)
}

func missingRef(item models.DueItem) string {
	switch {
	case item.Product == nil && item.User == nil:
		return "product and user"
	case item.Product == nil:
		return "product " + item.Tracking.ProductID.Hex()
	default:
		return "user " + item.Tracking.UserID.Hex()
	}
}
