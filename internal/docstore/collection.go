package docstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tesouraria/internal/log"
)

// DataStore is the subset of collection operations the stores use.
type DataStore interface {
	InsertOne(ctx context.Context, document any) (*mongo.InsertOneResult, error)
	InsertMany(ctx context.Context, documents []any) (*mongo.InsertManyResult, error)
	UpdateOne(ctx context.Context, filter, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter any) (*mongo.DeleteResult, error)
	// FindAll decodes every matching document into results, a pointer to a slice.
	FindAll(ctx context.Context, filter any, results any, opts ...*options.FindOptions) error
	// FindOne decodes the first match into result; mongo.ErrNoDocuments when none.
	FindOne(ctx context.Context, filter any, result any) error
	Watch(ctx context.Context) (ChangeStream, error)
}

// ChangeStream is satisfied by *mongo.ChangeStream.
type ChangeStream interface {
	Next(ctx context.Context) bool
	Err() error
	Close(ctx context.Context) error
}

// CollectionProvider hands out collections by name.
type CollectionProvider interface {
	Collection(name string) DataStore
}

// MongoCollection adapts *mongo.Collection to DataStore.
type MongoCollection struct {
	*mongo.Collection
}

func (c *MongoCollection) InsertOne(ctx context.Context, document any) (*mongo.InsertOneResult, error) {
	res, err := c.Collection.InsertOne(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("failed to perform InsertOne: %w", err)
	}
	return res, nil
}

func (c *MongoCollection) InsertMany(ctx context.Context, documents []any) (*mongo.InsertManyResult, error) {
	res, err := c.Collection.InsertMany(ctx, documents, options.InsertMany().SetOrdered(true))
	if err != nil {
		return res, fmt.Errorf("failed to perform InsertMany: %w", err)
	}
	return res, nil
}

func (c *MongoCollection) UpdateOne(ctx context.Context, filter, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	res, err := c.Collection.UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform UpdateOne: %w", err)
	}
	return res, nil
}

func (c *MongoCollection) DeleteOne(ctx context.Context, filter any) (*mongo.DeleteResult, error) {
	res, err := c.Collection.DeleteOne(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to perform DeleteOne: %w", err)
	}
	return res, nil
}

func (c *MongoCollection) DeleteMany(ctx context.Context, filter any) (*mongo.DeleteResult, error) {
	res, err := c.Collection.DeleteMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to perform DeleteMany: %w", err)
	}
	return res, nil
}

func (c *MongoCollection) FindAll(ctx context.Context, filter any, results any, opts ...*options.FindOptions) error {
	cur, err := c.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return fmt.Errorf("failed to perform Find: %w", err)
	}
	if err := cur.All(ctx, results); err != nil {
		return fmt.Errorf("failed to decode documents: %w", err)
	}
	return nil
}

func (c *MongoCollection) FindOne(ctx context.Context, filter any, result any) error {
	return c.Collection.FindOne(ctx, filter).Decode(result)
}

func (c *MongoCollection) Watch(ctx context.Context) (ChangeStream, error) {
	cs, err := c.Collection.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}
	return cs, nil
}

// MongoProvider adapts a database to CollectionProvider.
type MongoProvider struct {
	db *mongo.Database
}

func NewMongoProvider(db *mongo.Database) *MongoProvider {
	return &MongoProvider{db: db}
}

func (p *MongoProvider) Collection(name string) DataStore {
	return &MongoCollection{p.db.Collection(name)}
}

// Connect opens a client and checks it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentDocstore)
	logger.DebugContext(ctx, "Attempting to connect to MongoDB")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.InfoContext(ctx, "Successfully established connection to MongoDB")
	return client, nil
}

// EnsureIndexes creates the indexes the stores rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(TransactionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create transactions index: %w", err)
	}
	_, err = db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	return nil
}
