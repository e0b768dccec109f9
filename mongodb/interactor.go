// Package mongodb implements persistence.DatabaseInteractor on a MongoDB database.
// Filters translate to query documents and update pipelines to aggregation stages, so
// every update runs server side as a single-document operation.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asaidimu/go-bookstore/core/persistence"
	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// MongoInteractor stores each collection in the MongoDB collection of the same name.
type MongoInteractor struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var (
	_ persistence.DatabaseInteractor = (*MongoInteractor)(nil)
	_ persistence.Indexer            = (*MongoInteractor)(nil)
)

// Connect dials uri, verifies the primary is reachable within timeout and returns an
// interactor bound to database.
func Connect(ctx context.Context, uri, database string, timeout time.Duration, logger *zap.Logger) (*MongoInteractor, error) {
	if database == "" {
		return nil, errors.New("no mongo database name given")
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return NewMongoInteractor(client, database, logger), nil
}

// NewMongoInteractor wraps an already connected client.
func NewMongoInteractor(client *mongo.Client, database string, logger *zap.Logger) *MongoInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoInteractor{
		client: client,
		db:     client.Database(database),
		logger: logger.With(zap.String("database", database)),
	}
}

func (m *MongoInteractor) collection(name string) (*mongo.Collection, error) {
	if name == "" {
		return nil, persistence.ErrNoCollection
	}
	return m.db.Collection(name), nil
}

// SelectDocuments runs a find in natural order.
func (m *MongoInteractor) SelectDocuments(ctx context.Context, collection string, filter *query.QueryFilter, limit int) ([]schema.Document, error) {
	coll, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	f, err := FilterToBSON(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to translate filter: %w", err)
	}
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	m.logger.Debug("Executing find", zap.String("collection", collection), zap.Any("filter", f))
	cursor, err := coll.Find(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to execute find on %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode documents from %s: %w", collection, err)
	}
	return lo.Map(raw, func(r bson.M, _ int) schema.Document { return toDocument(r) }), nil
}

// UpdateDocument applies pipeline to the first match with an update-with-pipeline.
func (m *MongoInteractor) UpdateDocument(ctx context.Context, collection string, filter *query.QueryFilter, pipeline query.Pipeline) (persistence.UpdateResult, error) {
	coll, err := m.collection(collection)
	if err != nil {
		return persistence.UpdateResult{}, err
	}
	if err := checkIDUntouched(pipeline); err != nil {
		return persistence.UpdateResult{}, err
	}
	f, err := FilterToBSON(filter)
	if err != nil {
		return persistence.UpdateResult{}, fmt.Errorf("failed to translate filter: %w", err)
	}
	stages, err := PipelineToBSON(pipeline)
	if err != nil {
		return persistence.UpdateResult{}, err
	}

	m.logger.Debug("Executing updateOne", zap.String("collection", collection), zap.Int("stages", len(stages)))
	res, err := coll.UpdateOne(ctx, f, stages)
	if err != nil {
		return persistence.UpdateResult{}, fmt.Errorf("failed to update document in %s: %w", collection, err)
	}
	return persistence.UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

// checkIDUntouched rejects pipelines writing the identifier. The server refuses them
// too, but only after the round trip and with a driver specific error.
func checkIDUntouched(pipeline query.Pipeline) error {
	for _, stage := range pipeline {
		var targets []string
		switch stage.Kind {
		case query.StageSetFields:
			targets = lo.Map(stage.Set, func(a query.FieldAssignment, _ int) string { return a.Field })
		case query.StageUnsetFields:
			targets = stage.Unset
		case query.StageConditionalSet:
			if stage.Conditional != nil {
				targets = []string{stage.Conditional.Field}
			}
		}
		if lo.Contains(targets, schema.IDField) {
			return fmt.Errorf("%w: the %s field is immutable", query.ErrInvalidStage, schema.IDField)
		}
	}
	return nil
}

// InsertDocuments inserts docs in order, generating identifiers where missing.
func (m *MongoInteractor) InsertDocuments(ctx context.Context, collection string, docs []schema.Document) ([]schema.Document, error) {
	coll, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []schema.Document{}, nil
	}
	stored := lo.Map(docs, func(doc schema.Document, _ int) schema.Document {
		c := doc.Clone()
		if c == nil {
			c = schema.Document{}
		}
		if _, ok := c.ID(); !ok {
			c[schema.IDField] = uuid.New().String()
		}
		return c
	})

	m.logger.Debug("Executing insertMany", zap.String("collection", collection), zap.Int("documents", len(stored)))
	if _, err := coll.InsertMany(ctx, lo.ToAnySlice(stored)); err != nil {
		return nil, fmt.Errorf("failed to insert documents into %s: %w", collection, err)
	}
	return stored, nil
}

// DropCollection drops the collection. Dropping a missing collection succeeds.
func (m *MongoInteractor) DropCollection(ctx context.Context, collection string) error {
	coll, err := m.collection(collection)
	if err != nil {
		return err
	}
	if err := coll.Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", collection, err)
	}
	return nil
}

// CollectionExists lists the collection names matching collection.
func (m *MongoInteractor) CollectionExists(ctx context.Context, collection string) (bool, error) {
	if collection == "" {
		return false, nil
	}
	names, err := m.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	return len(names) > 0, nil
}

// CreateIndex creates an ascending index on field. Repeating the call is a no-op.
func (m *MongoInteractor) CreateIndex(ctx context.Context, collection string, field string) error {
	coll, err := m.collection(collection)
	if err != nil {
		return err
	}
	if _, err := schema.SplitPath(field); err != nil {
		return err
	}
	name, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}})
	if err != nil {
		return fmt.Errorf("failed to create index on %s.%s: %w", collection, field, err)
	}
	m.logger.Debug("Created index", zap.String("collection", collection), zap.String("index", name))
	return nil
}

// Close disconnects the client.
func (m *MongoInteractor) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
