package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/notifier"
	"github.com/raushankrgupta/price-tracker/scrapers"
	"github.com/raushankrgupta/price-tracker/store"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type memStore struct {
	mu        sync.Mutex
	products  map[primitive.ObjectID]*models.Product
	trackings map[primitive.ObjectID]*models.Tracking
	users     map[primitive.ObjectID]*models.User

	dueErr, findErr error
	saveProductErr  error
	saveTrackingErr error
	trimErr         error
	duplicateDue    bool
	productSaves    int
	trackingSaves   map[primitive.ObjectID]int
	trims           int

	// afterFind runs once a maintenance read has returned, outside the lock
	afterFind  func()
	dueDelay   time.Duration
	dueStarted chan struct{}
	dueCalls   atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{
		products:      make(map[primitive.ObjectID]*models.Product),
		trackings:     make(map[primitive.ObjectID]*models.Tracking),
		users:         make(map[primitive.ObjectID]*models.User),
		trackingSaves: make(map[primitive.ObjectID]int),
	}
}

func cloneProduct(p *models.Product) *models.Product {
	cp := *p
	cp.PriceHistory = append([]models.PriceSample(nil), p.PriceHistory...)
	return &cp
}

func cloneTracking(t *models.Tracking) *models.Tracking {
	cp := *t
	cp.PriceAlerts = append([]models.PriceAlert(nil), t.PriceAlerts...)
	return &cp
}

func (m *memStore) addUser(u *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addProduct(p *models.Product) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.products[p.ID] = cloneProduct(p)
	return p
}

func (m *memStore) addTracking(t *models.Tracking) *models.Tracking {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	m.trackings[t.ID] = cloneTracking(t)
	return t
}

func (m *memStore) product(id primitive.ObjectID) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneProduct(m.products[id])
}

func (m *memStore) tracking(id primitive.ObjectID) *models.Tracking {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackings[id]
	if !ok {
		return nil
	}
	return cloneTracking(t)
}

func (m *memStore) item(t *models.Tracking) models.DueItem {
	item := models.DueItem{Tracking: cloneTracking(t)}
	if p, ok := m.products[t.ProductID]; ok {
		item.Product = cloneProduct(p)
	}
	if u, ok := m.users[t.UserID]; ok {
		cp := *u
		item.User = &cp
	}
	return item
}

func (m *memStore) LoadDue(_ context.Context, now time.Time) ([]models.DueItem, error) {
	m.dueCalls.Add(1)
	if m.dueStarted != nil {
		m.dueStarted <- struct{}{}
	}
	if m.dueDelay > 0 {
		time.Sleep(m.dueDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dueErr != nil {
		return nil, m.dueErr
	}
	var items []models.DueItem
	for _, t := range m.trackings {
		if t.IsDue(now) {
			items = append(items, m.item(t))
			if m.duplicateDue {
				items = append(items, m.item(t))
			}
		}
	}
	return items, nil
}

func (m *memStore) GetDueItem(_ context.Context, id primitive.ObjectID) (*models.DueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	item := m.item(t)
	return &item, nil
}

func (m *memStore) SaveProduct(_ context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveProductErr != nil {
		return m.saveProductErr
	}
	m.productSaves++
	m.products[p.ID] = cloneProduct(p)
	return nil
}

func (m *memStore) SaveTracking(_ context.Context, t *models.Tracking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveTrackingErr != nil {
		return m.saveTrackingErr
	}
	m.trackingSaves[t.ID]++
	m.trackings[t.ID] = cloneTracking(t)
	return nil
}

func (m *memStore) DeleteCompletedOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.trackings {
		if t.Status == models.StatusCompleted && t.UpdatedAt.Before(cutoff) {
			delete(m.trackings, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) FindTrackingsWithOversizedAlertLog(_ context.Context, limit int) ([]*models.Tracking, error) {
	defer m.runAfterFind()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []*models.Tracking
	for _, t := range m.trackings {
		if len(t.PriceAlerts) > limit {
			out = append(out, cloneTracking(t))
		}
	}
	return out, nil
}

func (m *memStore) FindProductsWithStaleHistory(_ context.Context, cutoff time.Time) ([]*models.Product, error) {
	defer m.runAfterFind()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []*models.Product
	for _, p := range m.products {
		if p.HasSamplesBefore(cutoff) {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (m *memStore) runAfterFind() {
	if m.afterFind != nil {
		m.afterFind()
	}
}

func (m *memStore) TrimHistory(_ context.Context, id primitive.ObjectID, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trimErr != nil {
		return 0, m.trimErr
	}
	p, ok := m.products[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	dropped := p.TrimHistoryBefore(cutoff)
	if len(dropped) > 0 {
		m.trims++
	}
	return len(dropped), nil
}

func (m *memStore) TrimAlertLog(_ context.Context, id primitive.ObjectID, keep int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trimErr != nil {
		return false, m.trimErr
	}
	t, ok := m.trackings[id]
	if !ok {
		return false, store.ErrNotFound
	}
	trimmed := t.TrimAlerts(keep)
	if trimmed {
		m.trims++
	}
	return trimmed, nil
}

// fakeSource serves canned samples per URL
type fakeSource struct {
	mu      sync.Mutex
	samples map[string]*models.Sample
	errs    map[string]error
	panics  map[string]bool
	calls   map[string]int

	delay   time.Duration
	started chan struct{}
	release chan struct{}

	active, peak atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		samples: make(map[string]*models.Sample),
		errs:    make(map[string]error),
		panics:  make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeSource) set(url, price string, availability models.Availability) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples[url] = &models.Sample{Price: decimal.RequireFromString(price), Currency: "USD", Availability: availability, URL: url}
}

func (f *fakeSource) callsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeSource) Fetch(ctx context.Context, url string) (*models.Sample, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[url]++
	sample, err, panics := f.samples[url], f.errs[url], f.panics[url]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", scrapers.ErrTimeout, ctx.Err())
		case <-time.After(f.delay):
		}
	}
	if panics {
		panic("adapter exploded")
	}
	if err != nil {
		return nil, err
	}
	if sample == nil {
		return nil, fmt.Errorf("%w: no fixture for %s", scrapers.ErrNetwork, url)
	}
	cp := *sample
	return &cp, nil
}

type sent struct {
	to      string
	payload notifier.Payload
}

type fakeNotifier struct {
	mu       sync.Mutex
	emails   []sent
	messages []sent
	emailErr error
}

func (f *fakeNotifier) SendEmail(_ context.Context, address string, p notifier.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emailErr != nil {
		return f.emailErr
	}
	f.emails = append(f.emails, sent{address, p})
	return nil
}

func (f *fakeNotifier) SendMessage(_ context.Context, phone string, p notifier.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sent{phone, p})
	return nil
}

type fakeArchive struct {
	err      error
	archived map[primitive.ObjectID][]models.PriceSample
}

func (f *fakeArchive) ArchiveSamples(_ context.Context, p *models.Product, samples []models.PriceSample) error {
	if f.err != nil {
		return f.err
	}
	if f.archived == nil {
		f.archived = make(map[primitive.ObjectID][]models.PriceSample)
	}
	f.archived[p.ID] = append(f.archived[p.ID], samples...)
	return nil
}

var errBoom = errors.New("boom")

func testSettings() Settings {
	s := DefaultSettings()
	s.RequestTimeout = 50 * time.Millisecond
	s.NotifyTimeout = 50 * time.Millisecond
	s.Workers = 3
	return s
}

type fixture struct {
	store     *memStore
	source    *fakeSource
	notifier  *fakeNotifier
	scheduler *Scheduler
	user      *models.User
}

func newFixture(settings Settings) *fixture {
	f := &fixture{store: newMemStore(), source: newFakeSource(), notifier: &fakeNotifier{}}
	clock := func() time.Time { return t0 }

	checker := NewChecker(f.store, f.source, f.notifier, settings)
	checker.now = clock
	sweeper := NewSweeper(f.store, nil, settings)
	sweeper.now = clock
	f.scheduler = NewScheduler(f.store, checker, sweeper, settings)
	f.scheduler.now = clock

	f.user = f.store.addUser(&models.User{
		Name:        "Ana",
		Email:       "ana@example.com",
		Phone:       "424242",
		Preferences: models.Preferences{EmailNotifications: true, MessagingNotifications: true},
	})
	return f
}

// addWatched stores a product priced at price with one history sample and an
// active daily tracking that is due at t0.
func (f *fixture) addWatched(url, price, target string) (*models.Product, *models.Tracking) {
	p := &models.Product{
		URL:          url,
		Title:        "Laptop",
		Currency:     "USD",
		CurrentPrice: decimal.RequireFromString(price),
		Availability: models.InStock,
		IsActive:     true,
		PriceHistory: []models.PriceSample{{
			Price:        decimal.RequireFromString(price),
			Currency:     "USD",
			Timestamp:    t0.Add(-24 * time.Hour),
			Availability: models.InStock,
		}},
	}
	f.store.addProduct(p)
	tr := f.store.addTracking(&models.Tracking{
		UserID:         f.user.ID,
		ProductID:      p.ID,
		TargetPrice:    decimal.RequireFromString(target),
		CheckFrequency: models.Daily,
		Notifications:  models.NotificationPrefs{Email: true, Messaging: true},
		Status:         models.StatusActive,
		NextCheck:      t0.Add(-time.Minute),
	})
	return p, tr
}
