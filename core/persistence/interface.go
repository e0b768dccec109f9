package persistence

import (
	"context"

	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
)

// PersistenceInterface defines the persistence service: access to collections and to
// the subscriptions observing them.
type PersistenceInterface interface {
	Collection(name string) (PersistenceCollectionInterface, error)
	Drop(ctx context.Context, name string) error

	RegisterSubscription(options RegisterSubscriptionOptions) string
	UnregisterSubscription(id string)
	Subscriptions() ([]SubscriptionInfo, error)
}

// PersistenceCollectionInterface defines the operations available on a single collection.
type PersistenceCollectionInterface interface {
	Name() string

	Insert(ctx context.Context, docs ...schema.Document) (*query.QueryResult, error)
	Find(ctx context.Context, dsl *query.QueryDSL) (*query.QueryResult, error)
	// FindOne returns the first matching document, or nil when nothing matches.
	FindOne(ctx context.Context, filter *query.QueryFilter) (schema.Document, error)
	UpdateOne(ctx context.Context, filter *query.QueryFilter, pipeline query.Pipeline) (UpdateResult, error)

	Group(ctx context.Context, filter *query.QueryFilter, spec query.GroupSpec) ([]schema.Document, error)
	Bucket(ctx context.Context, filter *query.QueryFilter, spec query.BucketSpec) ([]schema.Document, error)

	RegisterSubscription(options RegisterSubscriptionOptions) string
	UnregisterSubscription(id string)
	Subscriptions() ([]SubscriptionInfo, error)
}

var (
	_ PersistenceInterface           = (*Persistence)(nil)
	_ PersistenceCollectionInterface = (*Collection)(nil)
)
