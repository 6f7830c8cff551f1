// Package sqlite implements the tracker store on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DB wraps the connection to the database
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the database at dbPath. ":memory:" works for tests.
func New(dbPath string) (*DB, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite3", dbPath+sep+"_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One writer; also keeps a ":memory:" database on a single connection.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	log.Printf("[Store] SQLite database ready at %s", dbPath)
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func nanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(0, n.Int64).UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

// SaveUser upserts a user, assigning an id when it has none
func (db *DB) SaveUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := db.conn.ExecContext(ctx, `
INSERT INTO users (id, name, email, phone, email_notifications, messaging_notifications)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name, email = excluded.email, phone = excluded.phone,
	email_notifications = excluded.email_notifications,
	messaging_notifications = excluded.messaging_notifications`,
		u.ID.Hex(), u.Name, u.Email, u.Phone, u.Preferences.EmailNotifications, u.Preferences.MessagingNotifications)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID.Hex(), err)
	}
	return nil
}

func (db *DB) getUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	var hex string
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, name, email, phone, email_notifications, messaging_notifications FROM users WHERE id = ?", id.Hex(),
	).Scan(&hex, &u.Name, &u.Email, &u.Phone, &u.Preferences.EmailNotifications, &u.Preferences.MessagingNotifications)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.ID = id
	return &u, nil
}

// SaveProduct upserts a product, assigning an id when it has none
func (db *DB) SaveProduct(ctx context.Context, p *models.Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	history, err := json.Marshal(nonNilHistory(p.PriceHistory))
	if err != nil {
		return fmt.Errorf("encode history of %s: %w", p.ID.Hex(), err)
	}

	_, err = db.conn.ExecContext(ctx, `
INSERT INTO products (id, url, title, description, image, website, current_price, original_price, currency,
	availability, price_history, oldest_sample_at, last_checked, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	url = excluded.url, title = excluded.title, description = excluded.description, image = excluded.image,
	website = excluded.website, current_price = excluded.current_price, original_price = excluded.original_price,
	currency = excluded.currency, availability = excluded.availability, price_history = excluded.price_history,
	oldest_sample_at = excluded.oldest_sample_at, last_checked = excluded.last_checked,
	is_active = excluded.is_active, updated_at = excluded.updated_at`,
		p.ID.Hex(), p.URL, p.Title, p.Description, p.Image, p.Website, p.CurrentPrice, p.OriginalPrice, p.Currency,
		string(p.Availability), string(history), nanos(p.OldestSampleAt()), nanos(p.LastChecked), p.IsActive,
		nanos(p.CreatedAt), nanos(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save product %s: %w", p.ID.Hex(), err)
	}
	return nil
}

const productColumns = `id, url, title, description, image, website, current_price, original_price, currency,
	availability, price_history, last_checked, is_active, created_at, updated_at`

func scanProduct(row scanner) (*models.Product, error) {
	var p models.Product
	var hex, availability, history string
	var lastChecked, createdAt, updatedAt sql.NullInt64
	if err := row.Scan(&hex, &p.URL, &p.Title, &p.Description, &p.Image, &p.Website, &p.CurrentPrice, &p.OriginalPrice,
		&p.Currency, &availability, &history, &lastChecked, &p.IsActive, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, fmt.Errorf("product id %q: %w", hex, err)
	}
	if err := json.Unmarshal([]byte(history), &p.PriceHistory); err != nil {
		return nil, fmt.Errorf("decode history of %s: %w", hex, err)
	}
	p.ID = id
	p.Availability = models.Availability(availability)
	p.LastChecked = fromNanos(lastChecked)
	p.CreatedAt = fromNanos(createdAt)
	p.UpdatedAt = fromNanos(updatedAt)
	return &p, nil
}

// GetProduct returns the product with id or store.ErrNotFound
func (db *DB) GetProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, err := scanProduct(db.conn.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id.Hex()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (db *DB) FindProductsWithStaleHistory(ctx context.Context, cutoff time.Time) ([]*models.Product, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT "+productColumns+" FROM products WHERE oldest_sample_at < ?", cutoff.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("find stale products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// SaveTracking upserts a tracking, assigning an id when it has none
func (db *DB) SaveTracking(ctx context.Context, t *models.Tracking) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	alerts, err := json.Marshal(nonNilAlerts(t.PriceAlerts))
	if err != nil {
		return fmt.Errorf("encode alerts of %s: %w", t.ID.Hex(), err)
	}

	_, err = db.conn.ExecContext(ctx, `
INSERT INTO trackings (id, user_id, product_id, target_price, check_frequency, notify_email, notify_messaging, status,
	next_check, last_notified, price_alerts, alert_count, consecutive_failures, last_error, notes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	target_price = excluded.target_price, check_frequency = excluded.check_frequency,
	notify_email = excluded.notify_email, notify_messaging = excluded.notify_messaging, status = excluded.status,
	next_check = excluded.next_check, last_notified = excluded.last_notified, price_alerts = excluded.price_alerts,
	alert_count = excluded.alert_count, consecutive_failures = excluded.consecutive_failures,
	last_error = excluded.last_error, notes = excluded.notes, updated_at = excluded.updated_at`,
		t.ID.Hex(), t.UserID.Hex(), t.ProductID.Hex(), t.TargetPrice, string(t.CheckFrequency),
		t.Notifications.Email, t.Notifications.Messaging, string(t.Status),
		t.NextCheck.UnixNano(), nanos(t.LastNotified), string(alerts), len(t.PriceAlerts),
		t.ConsecutiveFailures, t.LastError, t.Notes, nanos(t.CreatedAt), nanos(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save tracking %s: %w", t.ID.Hex(), err)
	}
	return nil
}

const trackingColumns = `id, user_id, product_id, target_price, check_frequency, notify_email, notify_messaging, status,
	next_check, last_notified, price_alerts, consecutive_failures, last_error, notes, created_at, updated_at`

func scanTracking(row scanner) (*models.Tracking, error) {
	var t models.Tracking
	var id, userID, productID, frequency, status, alerts string
	var nextCheck int64
	var lastNotified, createdAt, updatedAt sql.NullInt64
	if err := row.Scan(&id, &userID, &productID, &t.TargetPrice, &frequency, &t.Notifications.Email,
		&t.Notifications.Messaging, &status, &nextCheck, &lastNotified, &alerts, &t.ConsecutiveFailures,
		&t.LastError, &t.Notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if t.ID, err = primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("tracking id %q: %w", id, err)
	}
	if t.UserID, err = primitive.ObjectIDFromHex(userID); err != nil {
		return nil, fmt.Errorf("tracking %s user id: %w", id, err)
	}
	if t.ProductID, err = primitive.ObjectIDFromHex(productID); err != nil {
		return nil, fmt.Errorf("tracking %s product id: %w", id, err)
	}
	if err := json.Unmarshal([]byte(alerts), &t.PriceAlerts); err != nil {
		return nil, fmt.Errorf("decode alerts of %s: %w", id, err)
	}
	t.CheckFrequency = models.Frequency(frequency)
	t.Status = models.Status(status)
	t.NextCheck = time.Unix(0, nextCheck).UTC()
	t.LastNotified = fromNanos(lastNotified)
	t.CreatedAt = fromNanos(createdAt)
	t.UpdatedAt = fromNanos(updatedAt)
	return &t, nil
}

func (db *DB) queryTrackings(ctx context.Context, query string, args ...any) ([]*models.Tracking, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trackings []*models.Tracking
	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		trackings = append(trackings, t)
	}
	return trackings, rows.Err()
}

// LoadDue returns active trackings due at now, oldest first, joined with product and user.
// A reference that no longer resolves is left nil on the item.
func (db *DB) LoadDue(ctx context.Context, now time.Time) ([]models.DueItem, error) {
	trackings, err := db.queryTrackings(ctx,
		"SELECT "+trackingColumns+" FROM trackings WHERE status = ? AND next_check <= ? ORDER BY next_check",
		string(models.StatusActive), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("load due trackings: %w", err)
	}

	// Rows are closed before the lookups; the pool holds a single connection.
	products := make(map[primitive.ObjectID]*models.Product)
	users := make(map[primitive.ObjectID]*models.User)
	items := make([]models.DueItem, 0, len(trackings))
	for _, t := range trackings {
		item, err := db.join(ctx, t, products, users)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (db *DB) join(ctx context.Context, t *models.Tracking, products map[primitive.ObjectID]*models.Product, users map[primitive.ObjectID]*models.User) (models.DueItem, error) {
	item := models.DueItem{Tracking: t}

	p, ok := products[t.ProductID]
	if !ok {
		var err error
		p, err = db.GetProduct(ctx, t.ProductID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return item, fmt.Errorf("load product %s: %w", t.ProductID.Hex(), err)
		}
		products[t.ProductID] = p
	}
	item.Product = p

	u, ok := users[t.UserID]
	if !ok {
		var err error
		u, err = db.getUser(ctx, t.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return item, fmt.Errorf("load user %s: %w", t.UserID.Hex(), err)
		}
		users[t.UserID] = u
	}
	item.User = u
	return item, nil
}

func (db *DB) GetDueItem(ctx context.Context, trackingID primitive.ObjectID) (*models.DueItem, error) {
	trackings, err := db.queryTrackings(ctx, "SELECT "+trackingColumns+" FROM trackings WHERE id = ?", trackingID.Hex())
	if err != nil {
		return nil, fmt.Errorf("load tracking %s: %w", trackingID.Hex(), err)
	}
	if len(trackings) == 0 {
		return nil, store.ErrNotFound
	}
	item, err := db.join(ctx, trackings[0], map[primitive.ObjectID]*models.Product{}, map[primitive.ObjectID]*models.User{})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (db *DB) DeleteCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM trackings WHERE status = ? AND updated_at < ?",
		string(models.StatusCompleted), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete completed trackings: %w", err)
	}
	return res.RowsAffected()
}

func (db *DB) FindTrackingsWithOversizedAlertLog(ctx context.Context, limit int) ([]*models.Tracking, error) {
	trackings, err := db.queryTrackings(ctx, "SELECT "+trackingColumns+" FROM trackings WHERE alert_count > ?", limit)
	if err != nil {
		return nil, fmt.Errorf("find oversized alert logs: %w", err)
	}
	return trackings, nil
}

// TrimHistory rewrites only the history columns of one product inside a transaction
func (db *DB) TrimHistory(ctx context.Context, productID primitive.ObjectID, cutoff time.Time) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var history string
	err = tx.QueryRowContext(ctx, "SELECT price_history FROM products WHERE id = ?", productID.Hex()).Scan(&history)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load history of %s: %w", productID.Hex(), err)
	}

	var p models.Product
	if err := json.Unmarshal([]byte(history), &p.PriceHistory); err != nil {
		return 0, fmt.Errorf("decode history of %s: %w", productID.Hex(), err)
	}
	dropped := p.TrimHistoryBefore(cutoff)
	if len(dropped) == 0 {
		return 0, nil
	}
	encoded, err := json.Marshal(nonNilHistory(p.PriceHistory))
	if err != nil {
		return 0, fmt.Errorf("encode history of %s: %w", productID.Hex(), err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE products SET price_history = ?, oldest_sample_at = ? WHERE id = ?",
		string(encoded), nanos(p.OldestSampleAt()), productID.Hex()); err != nil {
		return 0, fmt.Errorf("trim history of %s: %w", productID.Hex(), err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(dropped), nil
}

// TrimAlertLog rewrites only the alert columns of one tracking inside a transaction
func (db *DB) TrimAlertLog(ctx context.Context, trackingID primitive.ObjectID, keep int) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var alerts string
	err = tx.QueryRowContext(ctx, "SELECT price_alerts FROM trackings WHERE id = ?", trackingID.Hex()).Scan(&alerts)
	if errors.Is(err, sql.ErrNoRows) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("load alerts of %s: %w", trackingID.Hex(), err)
	}

	var t models.Tracking
	if err := json.Unmarshal([]byte(alerts), &t.PriceAlerts); err != nil {
		return false, fmt.Errorf("decode alerts of %s: %w", trackingID.Hex(), err)
	}
	if !t.TrimAlerts(keep) {
		return false, nil
	}
	encoded, err := json.Marshal(nonNilAlerts(t.PriceAlerts))
	if err != nil {
		return false, fmt.Errorf("encode alerts of %s: %w", trackingID.Hex(), err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE trackings SET price_alerts = ?, alert_count = ? WHERE id = ?",
		string(encoded), len(t.PriceAlerts), trackingID.Hex()); err != nil {
		return false, fmt.Errorf("trim alerts of %s: %w", trackingID.Hex(), err)
	}
	return true, tx.Commit()
}

func nonNilHistory(h []models.PriceSample) []models.PriceSample {
	if h == nil {
		return []models.PriceSample{}
	}
	return h
}

func nonNilAlerts(a []models.PriceAlert) []models.PriceAlert {
	if a == nil {
		return []models.PriceAlert{}
	}
	return a
}
