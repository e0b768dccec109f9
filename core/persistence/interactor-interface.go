package persistence

import (
	"context"
	"errors"

	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
)

// ErrNoCollection is returned when an operation is addressed to an empty collection name.
var ErrNoCollection = errors.New("no collection name given")

// UpdateResult reports the outcome of a single-document update.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`  // Documents that satisfied the filter (0 or 1).
	ModifiedCount int64 `json:"modifiedCount"` // Documents whose stored content changed (0 or 1).
}

// DatabaseInteractor defines the contract every document store implements. Collections
// are created implicitly on first insert; reading a collection that does not exist
// yields no documents.
type DatabaseInteractor interface {
	// SelectDocuments returns the documents matching filter in natural order. A nil
	// filter matches everything and a non-positive limit returns every match.
	SelectDocuments(ctx context.Context, collection string, filter *query.QueryFilter, limit int) ([]schema.Document, error)

	// UpdateDocument applies pipeline atomically to the first document matching filter.
	UpdateDocument(ctx context.Context, collection string, filter *query.QueryFilter, pipeline query.Pipeline) (UpdateResult, error)

	// InsertDocuments stores docs and returns them as stored. Documents without an
	// identifier receive a generated one.
	InsertDocuments(ctx context.Context, collection string, docs []schema.Document) ([]schema.Document, error)

	// DropCollection removes a collection and all its documents if it exists.
	DropCollection(ctx context.Context, collection string) error

	// CollectionExists checks whether a collection holds storage in the backend.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// Close releases the resources held by the store.
	Close(ctx context.Context) error
}

// Indexer is implemented by stores that can maintain a secondary index on a document
// field. Stores without secondary indexes simply do not implement it.
type Indexer interface {
	CreateIndex(ctx context.Context, collection string, field string) error
}
