// Package persistence provides the persistence service that sits between the
// migration patterns and a concrete document store. It routes reads, pipeline updates
// and aggregations through an Executor and publishes an event for every operation.
package persistence

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-events"
	"go.uber.org/zap"
)

// Persistence is the main implementation of the PersistenceInterface. It orchestrates
// interactions with the database through a DatabaseInteractor and handles event
// subscriptions for observability. Collections it hands out share its event bus.
type Persistence struct {
	interactor    DatabaseInteractor
	executor      *Executor
	logger        *zap.Logger
	bus           *events.TypedEventBus[PersistenceEvent]
	subscriptions *subscriptionRegistry
}

// NewPersistence creates a new instance of the Persistence service.
func NewPersistence(interactor DatabaseInteractor, logger *zap.Logger) (*Persistence, error) {
	if interactor == nil {
		return nil, fmt.Errorf("a database interactor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bus, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	return &Persistence{
		interactor:    interactor,
		executor:      NewExecutor(interactor, logger),
		logger:        logger,
		bus:           bus,
		subscriptions: newSubscriptionRegistry(bus),
	}, nil
}

// Collection returns a PersistenceCollectionInterface for a given collection name.
func (p *Persistence) Collection(name string) (PersistenceCollectionInterface, error) {
	return NewCollection(p.bus, name, p.executor)
}

// RegisterFilterFunction makes a custom comparison operator available to every
// collection of this service.
func (p *Persistence) RegisterFilterFunction(operator query.ComparisonOperator, fn query.PredicateFunction) {
	p.executor.RegisterFilterFunction(operator, fn)
}

// Drop removes a collection and every document it holds.
func (p *Persistence) Drop(ctx context.Context, name string) error {
	if name == "" {
		return ErrNoCollection
	}
	op := newOperation("drop", name, nil, nil)
	p.emit(op.event(CollectionDeleteStart, nil, nil))

	if err := p.executor.Drop(ctx, name); err != nil {
		p.logger.Error("Failed to drop collection", zap.String("collection", name), zap.Error(err))
		p.emit(op.event(CollectionDeleteFailed, nil, err))
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}

	p.emit(op.event(CollectionDeleteSuccess, nil, nil))
	return nil
}

// EnsureIndex asks the store to index field of collection. Stores that do not
// support secondary indexes are left untouched.
func (p *Persistence) EnsureIndex(ctx context.Context, collection, field string) error {
	if collection == "" {
		return ErrNoCollection
	}
	indexer, ok := p.interactor.(Indexer)
	if !ok {
		p.logger.Debug("Store does not support secondary indexes", zap.String("collection", collection), zap.String("field", field))
		return nil
	}
	if err := indexer.CreateIndex(ctx, collection, field); err != nil {
		return fmt.Errorf("failed to index %s.%s: %w", collection, field, err)
	}
	return nil
}

// Close releases the underlying store.
func (p *Persistence) Close(ctx context.Context) error {
	return p.interactor.Close(ctx)
}

func (p *Persistence) emit(event PersistenceEvent) {
	p.bus.Emit(string(event.Type), event)
}

// RegisterSubscription registers a callback for a specific persistence event across
// every collection. It returns a unique ID that can be used to unregister the
// subscription later.
func (p *Persistence) RegisterSubscription(options RegisterSubscriptionOptions) string {
	return p.subscriptions.register(options, "")
}

// UnregisterSubscription removes a subscription by its ID.
func (p *Persistence) UnregisterSubscription(id string) {
	p.subscriptions.unregister(id)
}

// Subscriptions returns a list of all currently active subscriptions.
func (p *Persistence) Subscriptions() ([]SubscriptionInfo, error) {
	return p.subscriptions.list(), nil
}
