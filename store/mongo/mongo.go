// Package mongo implements the tracker store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection     = "users"
	productsCollection  = "products"
	trackingsCollection = "trackings"
)

// Store keeps users, products and trackings in one database
type Store struct {
	client    *mongo.Client
	users     *mongo.Collection
	products  *mongo.Collection
	trackings *mongo.Collection
}

// Connect initializes the MongoDB connection and makes sure the indexes exist
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetRegistry(NewRegistry())
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:    client,
		users:     db.Collection(usersCollection),
		products:  db.Collection(productsCollection),
		trackings: db.Collection(trackingsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Println("[Store] Connected to MongoDB!")
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create products index: %w", err)
	}
	if _, err := s.trackings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_check", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create trackings indexes: %w", err)
	}
	return nil
}

// dueFilter selects active trackings whose next check is not after now
func dueFilter(now time.Time) bson.M {
	return bson.M{"status": models.StatusActive, "next_check": bson.M{"$lte": now}}
}

// oversizedAlertFilter matches documents holding more than limit alerts
func oversizedAlertFilter(limit int) bson.M {
	return bson.M{"price_alerts." + strconv.Itoa(limit): bson.M{"$exists": true}}
}

func staleHistoryFilter(cutoff time.Time) bson.M {
	return bson.M{"price_history.timestamp": bson.M{"$lt": cutoff}}
}

// pullStaleHistory removes only the samples before cutoff, atomically on the server
func pullStaleHistory(cutoff time.Time) bson.M {
	return bson.M{"$pull": bson.M{"price_history": bson.M{"timestamp": bson.M{"$lt": cutoff}}}}
}

// sliceAlerts keeps the newest keep alerts without rewriting the rest of the document
func sliceAlerts(keep int) bson.M {
	return bson.M{"$push": bson.M{"price_alerts": bson.M{"$each": bson.A{}, "$slice": -keep}}}
}

func completedBeforeFilter(cutoff time.Time) bson.M {
	return bson.M{"status": models.StatusCompleted, "updated_at": bson.M{"$lt": cutoff}}
}

func (s *Store) LoadDue(ctx context.Context, now time.Time) ([]models.DueItem, error) {
	cursor, err := s.trackings.Find(ctx, dueFilter(now), options.Find().SetSort(bson.D{{Key: "next_check", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("load due trackings: %w", err)
	}
	var trackings []*models.Tracking
	if err := cursor.All(ctx, &trackings); err != nil {
		return nil, fmt.Errorf("decode due trackings: %w", err)
	}
	return s.join(ctx, trackings)
}

// join resolves products and users with one $in query each. Missing references stay nil.
func (s *Store) join(ctx context.Context, trackings []*models.Tracking) ([]models.DueItem, error) {
	if len(trackings) == 0 {
		return nil, nil
	}
	productIDs := make([]primitive.ObjectID, 0, len(trackings))
	userIDs := make([]primitive.ObjectID, 0, len(trackings))
	for _, t := range trackings {
		productIDs = append(productIDs, t.ProductID)
		userIDs = append(userIDs, t.UserID)
	}

	var products []*models.Product
	if err := s.findByIDs(ctx, s.products, productIDs, &products); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	var users []*models.User
	if err := s.findByIDs(ctx, s.users, userIDs, &users); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	productByID := make(map[primitive.ObjectID]*models.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}
	userByID := make(map[primitive.ObjectID]*models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	items := make([]models.DueItem, 0, len(trackings))
	for _, t := range trackings {
		items = append(items, models.DueItem{Tracking: t, Product: productByID[t.ProductID], User: userByID[t.UserID]})
	}
	return items, nil
}

func (s *Store) findByIDs(ctx context.Context, coll *mongo.Collection, ids []primitive.ObjectID, out any) error {
	cursor, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

func (s *Store) GetDueItem(ctx context.Context, trackingID primitive.ObjectID) (*models.DueItem, error) {
	var t models.Tracking
	err := s.trackings.FindOne(ctx, bson.M{"_id": trackingID}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load tracking %s: %w", trackingID.Hex(), err)
	}
	items, err := s.join(ctx, []*models.Tracking{&t})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *Store) SaveProduct(ctx context.Context, p *models.Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, err := s.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("save product %s: %w", p.ID.Hex(), err)
	}
	return nil
}

func (s *Store) SaveTracking(ctx context.Context, t *models.Tracking) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	if _, err := s.trackings.ReplaceOne(ctx, bson.M{"_id": t.ID}, t, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("save tracking %s: %w", t.ID.Hex(), err)
	}
	return nil
}

func (s *Store) SaveUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if _, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("save user %s: %w", u.ID.Hex(), err)
	}
	return nil
}

func (s *Store) DeleteCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.trackings.DeleteMany(ctx, completedBeforeFilter(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete completed trackings: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) FindTrackingsWithOversizedAlertLog(ctx context.Context, limit int) ([]*models.Tracking, error) {
	cursor, err := s.trackings.Find(ctx, oversizedAlertFilter(limit))
	if err != nil {
		return nil, fmt.Errorf("find oversized alert logs: %w", err)
	}
	var trackings []*models.Tracking
	if err := cursor.All(ctx, &trackings); err != nil {
		return nil, fmt.Errorf("decode trackings: %w", err)
	}
	return trackings, nil
}

func (s *Store) FindProductsWithStaleHistory(ctx context.Context, cutoff time.Time) ([]*models.Product, error) {
	cursor, err := s.products.Find(ctx, staleHistoryFilter(cutoff))
	if err != nil {
		return nil, fmt.Errorf("find stale products: %w", err)
	}
	var products []*models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

func (s *Store) TrimHistory(ctx context.Context, productID primitive.ObjectID, cutoff time.Time) (int, error) {
	// The pre-image tells how many samples the $pull removed
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"price_history": 1})
	var before models.Product
	err := s.products.FindOneAndUpdate(ctx, bson.M{"_id": productID}, pullStaleHistory(cutoff), opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("trim history of %s: %w", productID.Hex(), err)
	}

	dropped := 0
	for _, sample := range before.PriceHistory {
		if sample.Timestamp.Before(cutoff) {
			dropped++
		}
	}
	return dropped, nil
}

func (s *Store) TrimAlertLog(ctx context.Context, trackingID primitive.ObjectID, keep int) (bool, error) {
	filter := oversizedAlertFilter(keep)
	filter["_id"] = trackingID
	res, err := s.trackings.UpdateOne(ctx, filter, sliceAlerts(keep))
	if err != nil {
		return false, fmt.Errorf("trim alerts of %s: %w", trackingID.Hex(), err)
	}
	return res.ModifiedCount > 0, nil
}
