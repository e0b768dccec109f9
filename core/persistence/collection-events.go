package persistence

import (
	"context"

	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/asaidimu/go-events"
)

// Collection wraps a CollectionBase and adds event emission
type Collection struct {
	collection *CollectionBase
	bus        *events.TypedEventBus[PersistenceEvent]
	name       string
}

// NewEventEmittingCollection creates a new event-emitting collection wrapper
func NewEventEmittingCollection(collection *CollectionBase) *Collection {
	return &Collection{
		collection: collection,
		bus:        collection.bus,
		name:       collection.name,
	}
}

// Name returns the collection name.
func (e *Collection) Name() string {
	return e.name
}

// emitEvent is a helper method to emit events
func (e *Collection) emitEvent(event PersistenceEvent) {
	if e.bus != nil {
		e.bus.Emit(string(event.Type), event)
	}
}

// withEventEmission wraps an operation with start, success, and failure events
func (e *Collection) withEventEmission(
	name string,
	startEventType PersistenceEventType,
	successEventType PersistenceEventType,
	failedEventType PersistenceEventType,
	input any,
	queryParam any,
	fn func() (any, error),
) (any, error) {
	op := newOperation(name, e.name, input, queryParam)
	e.emitEvent(op.event(startEventType, nil, nil))

	result, err := fn()
	if err != nil {
		e.emitEvent(op.event(failedEventType, nil, err))
		return nil, err
	}

	e.emitEvent(op.event(successEventType, result, nil))
	return result, nil
}

// Insert wraps the collection's Insert method with event emission
func (e *Collection) Insert(ctx context.Context, docs ...schema.Document) (*query.QueryResult, error) {
	result, err := e.withEventEmission(
		"insert",
		DocumentCreateStart,
		DocumentCreateSuccess,
		DocumentCreateFailed,
		docs,
		nil,
		func() (any, error) {
			return e.collection.Insert(ctx, docs)
		},
	)
	if err != nil {
		return nil, err
	}
	return result.(*query.QueryResult), nil
}

// Find wraps the collection's Find method with event emission
func (e *Collection) Find(ctx context.Context, dsl *query.QueryDSL) (*query.QueryResult, error) {
	result, err := e.withEventEmission(
		"find",
		DocumentReadStart,
		DocumentReadSuccess,
		DocumentReadFailed,
		nil,
		dsl,
		func() (any, error) {
			return e.collection.Find(ctx, dsl)
		},
	)
	if err != nil {
		return nil, err
	}
	return result.(*query.QueryResult), nil
}

// FindOne wraps the collection's FindOne method with event emission
func (e *Collection) FindOne(ctx context.Context, filter *query.QueryFilter) (schema.Document, error) {
	result, err := e.withEventEmission(
		"find_one",
		DocumentReadStart,
		DocumentReadSuccess,
		DocumentReadFailed,
		nil,
		filter,
		func() (any, error) {
			return e.collection.FindOne(ctx, filter)
		},
	)
	if err != nil {
		return nil, err
	}
	return result.(schema.Document), nil
}

// UpdateOne wraps the collection's UpdateOne method with event emission
func (e *Collection) UpdateOne(ctx context.Context, filter *query.QueryFilter, pipeline query.Pipeline) (UpdateResult, error) {
	result, err := e.withEventEmission(
		"update",
		DocumentUpdateStart,
		DocumentUpdateSuccess,
		DocumentUpdateFailed,
		pipeline,
		filter,
		func() (any, error) {
			return e.collection.UpdateOne(ctx, filter, pipeline)
		},
	)
	if err != nil {
		return UpdateResult{}, err
	}
	return result.(UpdateResult), nil
}

// Group wraps the collection's Group method with event emission
func (e *Collection) Group(ctx context.Context, filter *query.QueryFilter, spec query.GroupSpec) ([]schema.Document, error) {
	result, err := e.withEventEmission(
		"group",
		AggregateStart,
		AggregateSuccess,
		AggregateFailed,
		spec,
		filter,
		func() (any, error) {
			return e.collection.Group(ctx, filter, spec)
		},
	)
	if err != nil {
		return nil, err
	}
	return result.([]schema.Document), nil
}

// Bucket wraps the collection's Bucket method with event emission
func (e *Collection) Bucket(ctx context.Context, filter *query.QueryFilter, spec query.BucketSpec) ([]schema.Document, error) {
	result, err := e.withEventEmission(
		"bucket",
		AggregateStart,
		AggregateSuccess,
		AggregateFailed,
		spec,
		filter,
		func() (any, error) {
			return e.collection.Bucket(ctx, filter, spec)
		},
	)
	if err != nil {
		return nil, err
	}
	return result.([]schema.Document), nil
}

// RegisterSubscription wraps subscription registration with event emission
func (e *Collection) RegisterSubscription(options RegisterSubscriptionOptions) string {
	id := e.collection.RegisterSubscription(options)

	op := newOperation("register_subscription", e.name, map[string]any{
		"event":       options.Event,
		"label":       options.Label,
		"description": options.Description,
	}, nil)
	e.emitEvent(op.event(SubscriptionRegister, map[string]any{"subscriptionId": id}, nil))
	return id
}

// UnregisterSubscription wraps subscription unregistration with event emission
func (e *Collection) UnregisterSubscription(id string) {
	e.collection.UnregisterSubscription(id)

	op := newOperation("unregister_subscription", e.name, map[string]any{"subscriptionId": id}, nil)
	e.emitEvent(op.event(SubscriptionUnregister, nil, nil))
}

// Subscriptions delegates to the underlying collection
func (e *Collection) Subscriptions() ([]SubscriptionInfo, error) {
	return e.collection.Subscriptions()
}
