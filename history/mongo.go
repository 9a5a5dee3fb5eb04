package history

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is a DocumentStore backed by a MongoDB database
type MongoStore struct {
	client   *mongo.Client
	database string
}

// NewMongoStore connects to MongoDB. The driver connects lazily, so an
// unreachable server surfaces on the first insert.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: mongodb connection URL is required", ErrPersistence)
	}
	if database == "" {
		return nil, fmt.Errorf("%w: mongodb database is required", ErrPersistence)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to mongodb: %w", ErrPersistence, err)
	}

	return &MongoStore{
		client:   client,
		database: database,
	}, nil
}

// InsertMany inserts docs into collection as one ordered bulk write
func (s *MongoStore) InsertMany(ctx context.Context, collection string, docs []any) error {
	if len(docs) == 0 {
		return nil
	}

	coll := s.client.Database(s.database).Collection(collection)
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert into %s.%s: %w", s.database, collection, err)
	}

	return nil
}

// Close disconnects from MongoDB
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
