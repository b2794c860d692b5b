package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/usemate/order-stats-api/internal/models"
)

const ordersCollection = "orders"

// MongoStore persists orders in a MongoDB collection. The schemaless
// document model carries the nested valuation snapshots as-is.
// Identifiers are normalized to lowercase on every read and write.
type MongoStore struct {
	client *mongo.Client
	orders *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	orders := client.Database(database).Collection(ordersCollection)

	// Orders are addressed by identifier everywhere; keep it unique.
	_, err = orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order index: %w", err)
	}

	return &MongoStore{client: client, orders: orders}, nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.orders.FindOne(ctx, bson.M{"id": models.NormalizeID(id)}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &order, nil
}

func (s *MongoStore) FindByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	return s.find(ctx, bson.M{"status": status})
}

func (s *MongoStore) FindAll(ctx context.Context) ([]models.Order, error) {
	return s.find(ctx, bson.M{})
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	cursor, err := s.orders.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

func (s *MongoStore) Insert(ctx context.Context, order *models.Order) error {
	doc := *order
	doc.ID = models.NormalizeID(doc.ID)
	if _, err := s.orders.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, order *models.Order) error {
	doc := *order
	doc.ID = models.NormalizeID(id)
	res, err := s.orders.ReplaceOne(ctx, bson.M{"id": doc.ID}, doc)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	res, err := s.orders.UpdateOne(ctx, bson.M{"id": models.NormalizeID(id)}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update order fields: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
