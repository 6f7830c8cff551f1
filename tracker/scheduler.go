package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/raushankrgupta/price-tracker/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

var (
	ErrSweepInProgress       = errors.New("sweep already in progress")
	ErrMaintenanceInProgress = errors.New("maintenance already in progress")
	ErrTrackingNotActive     = errors.New("tracking is not active")
	ErrCheckInProgress       = errors.New("tracking is already being checked")
	ErrSchedulerStopped      = errors.New("scheduler stopped")
)

// SweepReport summarises one pass over the due set
type SweepReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Due        int       `json:"due"`
	Duplicates int       `json:"duplicates"`
	Products   int       `json:"products"`
	Skipped    int       `json:"skipped"`
	Busy       int       `json:"busy"`
	Failed     int       `json:"failed"`
	Unchanged  int       `json:"unchanged"`
	Changed    int       `json:"changed"`
	Alerts     int       `json:"alerts"`
	Notified   int       `json:"notified"`
}

func (r *SweepReport) add(results []Result) {
	for _, res := range results {
		switch res.Outcome {
		case OutcomeSkipped:
			r.Skipped++
		case OutcomeFailed:
			r.Failed++
		case OutcomeUnchanged:
			r.Unchanged++
		case OutcomeChanged:
			r.Changed++
		case OutcomeAlerted:
			r.Changed++
			r.Alerts++
		}
		r.Notified += res.Notified
	}
}

// Status is a snapshot of the scheduler for the ops endpoint
type Status struct {
	Running               bool               `json:"running"`
	SweepInProgress       bool               `json:"sweep_in_progress"`
	MaintenanceInProgress bool               `json:"maintenance_in_progress"`
	NextSweep             time.Time          `json:"next_sweep"`
	NextMaintenance       time.Time          `json:"next_maintenance"`
	LastSweep             *SweepReport       `json:"last_sweep,omitempty"`
	LastMaintenance       *MaintenanceReport `json:"last_maintenance,omitempty"`
}

// Scheduler drives periodic sweeps and maintenance
type Scheduler struct {
	store    Store
	checker  *Checker
	sweeper  *Sweeper
	settings Settings
	now      func() time.Time

	sweeping    atomic.Bool
	maintaining atomic.Bool
	inflight    sync.WaitGroup
	loops       sync.WaitGroup

	// claimMu is held from loading the due set until its ids are claimed, and
	// for every claim and release, so a sweep never checks a tracking from a
	// read taken before an on-demand check of it finished.
	claimMu sync.Mutex
	claims  sync.Map // tracking id -> struct{}

	mu              sync.Mutex
	running         bool
	stopped         bool
	stop            chan struct{}
	nextSweep       time.Time
	nextMaintenance time.Time
	lastSweep       *SweepReport
	lastMaintenance *MaintenanceReport
}

func NewScheduler(store Store, checker *Checker, sweeper *Sweeper, settings Settings) *Scheduler {
	return &Scheduler{
		store:    store,
		checker:  checker,
		sweeper:  sweeper,
		settings: settings.withDefaults(),
		now:      time.Now,
	}
}

// Start launches the sweep and maintenance loops. Calling it twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		log.Println("[Scheduler] Already running")
		return
	}
	s.running = true
	s.stopped = false
	s.stop = make(chan struct{})

	now := s.now()
	s.nextSweep = now.Add(s.settings.StartupDelay)
	s.nextMaintenance = now.Add(s.settings.MaintenanceInterval)

	s.loops.Add(2)
	go s.sweepLoop(s.stop)
	go s.maintenanceLoop(s.stop)
	log.Printf("[Scheduler] Started: sweep every %s (first in %s), maintenance every %s, %d workers",
		s.settings.SweepInterval, s.settings.StartupDelay, s.settings.MaintenanceInterval, s.settings.Workers)
}

// Stop prevents future ticks. Work already dispatched runs to completion; use Wait to block on it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		log.Println("[Scheduler] Not running")
		return
	}
	close(s.stop)
	s.running = false
	s.stopped = true
	s.nextSweep, s.nextMaintenance = time.Time{}, time.Time{}
	log.Println("[Scheduler] Stopped")
}

// Wait blocks until the loops have exited and in-flight sweeps, checks and maintenance are done.
// Call it after Stop; no new work is accepted from then on.
func (s *Scheduler) Wait() {
	s.loops.Wait()
	s.inflight.Wait()
}

// track registers one unit of work with Wait. It fails once Stop has been called.
func (s *Scheduler) track() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	s.inflight.Add(1)
	return nil
}

func stopping(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// sweepLoop dispatches each tick in its own goroutine so ticks that land during
// a sweep are drained and skipped rather than queued behind it.
func (s *Scheduler) sweepLoop(stop <-chan struct{}) {
	defer s.loops.Done()

	initial := time.NewTimer(s.settings.StartupDelay)
	defer initial.Stop()
	ticker := time.NewTicker(s.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-initial.C:
		case <-ticker.C:
		}
		if stopping(stop) {
			return
		}
		s.mu.Lock()
		s.nextSweep = s.now().Add(s.settings.SweepInterval)
		s.mu.Unlock()

		if !s.sweeping.CompareAndSwap(false, true) {
			log.Println("[Scheduler] Previous sweep still running, skipping tick")
			continue
		}
		if err := s.track(); err != nil {
			s.sweeping.Store(false)
			return
		}
		go func() {
			defer s.inflight.Done()
			defer s.sweeping.Store(false)
			// Ticks run on a fresh context so Stop never cuts a sweep short.
			if _, err := s.sweep(context.Background()); err != nil {
				log.Printf("[Scheduler] ERROR: sweep failed: %v", err)
			}
		}()
	}
}

func (s *Scheduler) maintenanceLoop(stop <-chan struct{}) {
	defer s.loops.Done()

	ticker := time.NewTicker(s.settings.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if stopping(stop) {
			return
		}
		s.mu.Lock()
		s.nextMaintenance = s.now().Add(s.settings.MaintenanceInterval)
		s.mu.Unlock()

		if !s.maintaining.CompareAndSwap(false, true) {
			log.Println("[Scheduler] Previous maintenance still running, skipping tick")
			continue
		}
		if err := s.track(); err != nil {
			s.maintaining.Store(false)
			return
		}
		go func() {
			defer s.inflight.Done()
			defer s.maintaining.Store(false)
			if _, err := s.maintain(context.Background()); err != nil {
				log.Printf("[Scheduler] ERROR: maintenance failed: %v", err)
			}
		}()
	}
}

// Sweep checks every due tracking once. It fails fast with ErrSweepInProgress when
// another sweep holds the guard, and returns an error only when the due set cannot be read.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepReport, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.sweeping.Store(false)
	if err := s.track(); err != nil {
		return nil, err
	}
	defer s.inflight.Done()
	return s.sweep(ctx)
}

func (s *Scheduler) sweep(ctx context.Context) (*SweepReport, error) {
	start := s.now()
	report := &SweepReport{RunID: uuid.NewString(), StartedAt: start}
	log.Printf("[Scheduler] Sweep %s started", report.RunID)

	s.claimMu.Lock()
	items, err := s.store.LoadDue(ctx, start)
	if err != nil {
		s.claimMu.Unlock()
		return nil, fmt.Errorf("load due trackings: %w", err)
	}
	groups, duplicates := groupByProduct(items)
	groups, busy := s.claimGroups(groups)
	s.claimMu.Unlock()

	report.Due = len(items) - duplicates
	report.Duplicates = duplicates
	report.Busy = busy
	report.Products = len(groups)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.settings.Workers)
	for _, group := range groups {
		g.Go(func() error {
			defer s.release(trackingIDs(group)...)
			results := s.checkGroup(ctx, group)
			mu.Lock()
			report.add(results)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = s.now()
	s.mu.Lock()
	s.lastSweep = report
	s.mu.Unlock()

	log.Printf("[Scheduler] Sweep %s done in %s: %d due, %d products, %d changed, %d alerts, %d failed, %d skipped, %d busy",
		report.RunID, report.FinishedAt.Sub(start), report.Due, report.Products, report.Changed, report.Alerts, report.Failed, report.Skipped, report.Busy)
	return report, nil
}

// claimGroups claims every tracking id of the due set. Items already being
// checked on demand are left out; groups left empty are dropped.
func (s *Scheduler) claimGroups(groups [][]models.DueItem) (claimed [][]models.DueItem, busy int) {
	claimed = make([][]models.DueItem, 0, len(groups))
	for _, group := range groups {
		kept := group[:0:0]
		for _, item := range group {
			if !s.claim(item.Tracking.ID) {
				log.Printf("[Scheduler] Tracking %s is being checked on demand, leaving it out of this sweep", item.Tracking.ID.Hex())
				busy++
				continue
			}
			kept = append(kept, item)
		}
		if len(kept) > 0 {
			claimed = append(claimed, kept)
		}
	}
	return claimed, busy
}

func (s *Scheduler) claim(id primitive.ObjectID) bool {
	_, taken := s.claims.LoadOrStore(id, struct{}{})
	return !taken
}

func (s *Scheduler) release(ids ...primitive.ObjectID) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()
	for _, id := range ids {
		s.claims.Delete(id)
	}
}

func trackingIDs(group []models.DueItem) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, len(group))
	for i, item := range group {
		ids[i] = item.Tracking.ID
	}
	return ids
}

// checkGroup contains any panic that escapes the checker to the group it came from
func (s *Scheduler) checkGroup(ctx context.Context, group []models.DueItem) (results []Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Scheduler] Check panicked: %v", r)
			results = make([]Result, 0, len(group))
			for _, item := range group {
				results = append(results, Result{TrackingID: item.Tracking.ID.Hex(), Outcome: OutcomeFailed, Err: fmt.Errorf("panic: %v", r)})
			}
		}
	}()
	return s.checker.CheckGroup(ctx, group)
}

// RunMaintenance runs the retention sweeper under its own guard
func (s *Scheduler) RunMaintenance(ctx context.Context) (*MaintenanceReport, error) {
	if !s.maintaining.CompareAndSwap(false, true) {
		return nil, ErrMaintenanceInProgress
	}
	defer s.maintaining.Store(false)
	if err := s.track(); err != nil {
		return nil, err
	}
	defer s.inflight.Done()
	return s.maintain(ctx)
}

func (s *Scheduler) maintain(ctx context.Context) (*MaintenanceReport, error) {
	report, err := s.sweeper.Run(ctx)
	s.mu.Lock()
	s.lastMaintenance = report
	s.mu.Unlock()
	return report, err
}

// CheckTracking checks one tracking on demand, outside the sweep schedule.
// It returns ErrCheckInProgress while a sweep or another request holds the tracking.
func (s *Scheduler) CheckTracking(ctx context.Context, id primitive.ObjectID) (*Result, error) {
	if err := s.track(); err != nil {
		return nil, err
	}
	defer s.inflight.Done()

	s.claimMu.Lock()
	claimed := s.claim(id)
	s.claimMu.Unlock()
	if !claimed {
		return nil, fmt.Errorf("%w: %s", ErrCheckInProgress, id.Hex())
	}
	defer s.release(id)

	item, err := s.store.GetDueItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load tracking %s: %w", id.Hex(), err)
	}
	if item.Tracking.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrTrackingNotActive, id.Hex(), item.Tracking.Status)
	}

	res := s.checker.Check(ctx, *item)
	return &res, nil
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:               s.running,
		SweepInProgress:       s.sweeping.Load(),
		MaintenanceInProgress: s.maintaining.Load(),
		NextSweep:             s.nextSweep,
		NextMaintenance:       s.nextMaintenance,
		LastSweep:             s.lastSweep,
		LastMaintenance:       s.lastMaintenance,
	}
}

// groupByProduct buckets due items by product, keeping first-seen order, and
// drops repeated tracking ids. Orphans without a product travel alone.
func groupByProduct(items []models.DueItem) (groups [][]models.DueItem, duplicates int) {
	seen := make(map[primitive.ObjectID]bool, len(items))
	index := make(map[primitive.ObjectID]int)
	for _, item := range items {
		if item.Tracking == nil {
			continue
		}
		if seen[item.Tracking.ID] {
			duplicates++
			continue
		}
		seen[item.Tracking.ID] = true

		if item.Product == nil {
			groups = append(groups, []models.DueItem{item})
			continue
		}
		if i, ok := index[item.Product.ID]; ok {
			groups[i] = append(groups[i], item)
			continue
		}
		index[item.Product.ID] = len(groups)
		groups = append(groups, []models.DueItem{item})
	}
	return groups, duplicates
}
