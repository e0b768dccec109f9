package persistence

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/asaidimu/go-events"
)

// CollectionBase performs the operations of a single collection through the Executor.
// It is wrapped by Collection, which adds event emission.
type CollectionBase struct {
	name          string
	executor      *Executor
	bus           *events.TypedEventBus[PersistenceEvent]
	subscriptions *subscriptionRegistry
}

// NewCollection creates an event-emitting collection bound to bus. Passing a nil bus
// creates a private one.
func NewCollection(bus *events.TypedEventBus[PersistenceEvent], name string, executor *Executor) (PersistenceCollectionInterface, error) {
	if name == "" {
		return nil, ErrNoCollection
	}
	if bus == nil {
		b, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("could not initialize event bus: %w", err)
		}
		bus = b
	}

	return NewEventEmittingCollection(&CollectionBase{
		name:          name,
		executor:      executor,
		bus:           bus,
		subscriptions: newSubscriptionRegistry(bus),
	}), nil
}

// Insert stores docs in the collection.
func (ci *CollectionBase) Insert(ctx context.Context, docs []schema.Document) (*query.QueryResult, error) {
	if len(docs) == 0 {
		return &query.QueryResult{Data: []schema.Document{}}, nil
	}
	result, err := ci.executor.Insert(ctx, ci.name, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to insert data into collection '%s': %w", ci.name, err)
	}
	return result, nil
}

// Find retrieves the documents matching dsl.
func (ci *CollectionBase) Find(ctx context.Context, dsl *query.QueryDSL) (*query.QueryResult, error) {
	result, err := ci.executor.Query(ctx, ci.name, dsl)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from collection '%s': %w", ci.name, err)
	}
	return result, nil
}

// FindOne retrieves the first document matching filter.
func (ci *CollectionBase) FindOne(ctx context.Context, filter *query.QueryFilter) (schema.Document, error) {
	result, err := ci.Find(ctx, &query.QueryDSL{Filters: filter, Limit: 1})
	if err != nil {
		return nil, err
	}
	if result.Count == 0 {
		return nil, nil
	}
	return result.Data[0], nil
}

// UpdateOne applies pipeline to the first document matching filter.
func (ci *CollectionBase) UpdateOne(ctx context.Context, filter *query.QueryFilter, pipeline query.Pipeline) (UpdateResult, error) {
	result, err := ci.executor.Update(ctx, ci.name, filter, pipeline)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to update data in collection '%s': %w", ci.name, err)
	}
	return result, nil
}

// Group aggregates the documents matching filter by spec.
func (ci *CollectionBase) Group(ctx context.Context, filter *query.QueryFilter, spec query.GroupSpec) ([]schema.Document, error) {
	rows, err := ci.executor.Group(ctx, ci.name, filter, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to group collection '%s': %w", ci.name, err)
	}
	return rows, nil
}

// Bucket aggregates the documents matching filter into the ranges of spec.
func (ci *CollectionBase) Bucket(ctx context.Context, filter *query.QueryFilter, spec query.BucketSpec) ([]schema.Document, error) {
	rows, err := ci.executor.Bucket(ctx, ci.name, filter, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to bucket collection '%s': %w", ci.name, err)
	}
	return rows, nil
}

// RegisterSubscription registers a collection-scoped subscription.
func (ci *CollectionBase) RegisterSubscription(options RegisterSubscriptionOptions) string {
	return ci.subscriptions.register(options, ci.name)
}

// UnregisterSubscription unregisters a collection-scoped subscription.
func (ci *CollectionBase) UnregisterSubscription(id string) {
	ci.subscriptions.unregister(id)
}

// Subscriptions returns all registered collection-scoped subscriptions.
func (ci *CollectionBase) Subscriptions() ([]SubscriptionInfo, error) {
	return ci.subscriptions.list(), nil
}
