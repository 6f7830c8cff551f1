package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/raushankrgupta/price-tracker/models"
)

// MaintenanceReport summarises one retention pass
type MaintenanceReport struct {
	RunID            string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	ProductsTrimmed  int       `json:"products_trimmed"`
	SamplesDropped   int       `json:"samples_dropped"`
	SamplesArchived  int       `json:"samples_archived"`
	TrackingsTrimmed int       `json:"trackings_trimmed"`
	TrackingsDeleted int64     `json:"trackings_deleted"`
	RecordFailures   int       `json:"record_failures"`
	Errors           []string  `json:"errors,omitempty"`
}

// Sweeper enforces history, alert and tracking retention
type Sweeper struct {
	store    Store
	archive  Archiver
	settings Settings
	now      func() time.Time
}

// NewSweeper builds a sweeper. archive may be nil, in which case dropped samples are discarded.
func NewSweeper(store Store, archive Archiver, settings Settings) *Sweeper {
	return &Sweeper{store: store, archive: archive, settings: settings.withDefaults(), now: time.Now}
}

// Run performs every retention task. Each task and each record is isolated; failures
// of the top-level reads are joined into the returned error. Running it twice in a row
// mutates nothing the second time.
func (s *Sweeper) Run(ctx context.Context) (*MaintenanceReport, error) {
	now := s.now()
	report := &MaintenanceReport{RunID: uuid.NewString(), StartedAt: now}
	log.Printf("[Sweeper] Maintenance %s started", report.RunID)

	var errs []error
	if err := s.trimHistory(ctx, now.Add(-s.settings.HistoryRetention), report); err != nil {
		errs = append(errs, fmt.Errorf("history retention: %w", err))
	}
	if err := s.trimAlerts(ctx, report); err != nil {
		errs = append(errs, fmt.Errorf("alert retention: %w", err))
	}
	deleted, err := s.store.DeleteCompletedOlderThan(ctx, now.Add(-s.settings.CompletedRetention))
	if err != nil {
		errs = append(errs, fmt.Errorf("tracking retention: %w", err))
	}
	report.TrackingsDeleted = deleted

	report.FinishedAt = s.now()
	err = errors.Join(errs...)
	for _, e := range errs {
		report.Errors = append(report.Errors, e.Error())
	}
	log.Printf("[Sweeper] Maintenance %s completed: %d products trimmed (%d samples, %d archived), %d alert logs trimmed, %d trackings deleted, %d record failures",
		report.RunID, report.ProductsTrimmed, report.SamplesDropped, report.SamplesArchived, report.TrackingsTrimmed, report.TrackingsDeleted, report.RecordFailures)
	return report, err
}

func (s *Sweeper) trimHistory(ctx context.Context, cutoff time.Time, report *MaintenanceReport) error {
	products, err := s.store.FindProductsWithStaleHistory(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, p := range products {
		dropped, err := s.trimProduct(ctx, p, cutoff)
		if err != nil {
			log.Printf("[Sweeper] Product %s left untouched: %v", p.ID.Hex(), err)
			report.RecordFailures++
			continue
		}
		if dropped > 0 {
			report.ProductsTrimmed++
			report.SamplesDropped += dropped
			if s.archive != nil {
				report.SamplesArchived += dropped
			}
		}
	}
	return nil
}

// trimProduct archives then drops the samples before cutoff. An archive failure
// leaves the product unchanged. The drop is a partial update so a check saving
// the product meanwhile keeps its new sample and state.
func (s *Sweeper) trimProduct(ctx context.Context, p *models.Product, cutoff time.Time) (dropped int, err error) {
	defer func() {
		if r := recover(); r != nil {
			dropped, err = 0, fmt.Errorf("panic: %v", r)
		}
	}()

	var stale []models.PriceSample
	for _, sample := range p.PriceHistory {
		if sample.Timestamp.Before(cutoff) {
			stale = append(stale, sample)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if s.archive != nil {
		if err := s.archive.ArchiveSamples(ctx, p, stale); err != nil {
			return 0, fmt.Errorf("archive: %w", err)
		}
	}

	dropped, err = s.store.TrimHistory(ctx, p.ID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("trim: %w", err)
	}
	return dropped, nil
}

func (s *Sweeper) trimAlerts(ctx context.Context, report *MaintenanceReport) error {
	trackings, err := s.store.FindTrackingsWithOversizedAlertLog(ctx, s.settings.AlertKeep)
	if err != nil {
		return err
	}
	for _, t := range trackings {
		trimmed, err := s.store.TrimAlertLog(ctx, t.ID, s.settings.AlertKeep)
		if err != nil {
			log.Printf("[Sweeper] Failed to trim alerts of tracking %s: %v", t.ID.Hex(), err)
			report.RecordFailures++
			continue
		}
		if trimmed {
			report.TrackingsTrimmed++
		}
	}
	return nil
}
