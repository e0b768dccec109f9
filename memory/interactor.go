// Package memory provides an in-process implementation of the DatabaseInteractor.
// Documents live in per-collection slices in insertion order and are copied on every
// read and write so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/asaidimu/go-bookstore/core/persistence"
	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemoryInteractor implements persistence.DatabaseInteractor on top of Go maps. A
// single mutex serializes every operation, which makes each update an atomic
// read-modify-write.
type MemoryInteractor struct {
	mu          sync.Mutex
	collections map[string][]schema.Document
	processor   *query.DataProcessor
	logger      *zap.Logger
}

// NewMemoryInteractor creates an empty store.
func NewMemoryInteractor(logger *zap.Logger) *MemoryInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryInteractor{
		collections: make(map[string][]schema.Document),
		processor:   query.NewDataProcessor(logger),
		logger:      logger,
	}
}

// SelectDocuments returns copies of the documents matching filter.
func (m *MemoryInteractor) SelectDocuments(ctx context.Context, collection string, filter *query.QueryFilter, limit int) ([]schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.processor.Filter(ctx, filter, m.collections[collection], limit)
	if err != nil {
		return nil, fmt.Errorf("failed to filter collection %s: %w", collection, err)
	}
	out := make([]schema.Document, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out, nil
}

// UpdateDocument applies pipeline to the first document matching filter while holding
// the store lock.
func (m *MemoryInteractor) UpdateDocument(ctx context.Context, collection string, filter *query.QueryFilter, pipeline query.Pipeline) (persistence.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return persistence.UpdateResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.collections[collection]
	for i, doc := range docs {
		ok, err := m.processor.Match(ctx, filter, doc)
		if err != nil {
			return persistence.UpdateResult{}, fmt.Errorf("failed to filter collection %s: %w", collection, err)
		}
		if !ok {
			continue
		}

		updated, changed, err := m.processor.ApplyPipeline(doc, pipeline)
		if err != nil {
			return persistence.UpdateResult{}, err
		}
		if err := checkIDUnchanged(doc, updated); err != nil {
			return persistence.UpdateResult{}, err
		}
		result := persistence.UpdateResult{MatchedCount: 1}
		if changed {
			docs[i] = updated
			result.ModifiedCount = 1
		}
		m.logger.Debug("Updated document",
			zap.String("collection", collection),
			zap.Any("id", doc[schema.IDField]),
			zap.Bool("changed", changed),
		)
		return result, nil
	}
	return persistence.UpdateResult{}, nil
}

// InsertDocuments stores copies of docs. Identifiers must be unique within a collection.
func (m *MemoryInteractor) InsertDocuments(ctx context.Context, collection string, docs []schema.Document) ([]schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(m.collections[collection])+len(docs))
	for _, existing := range m.collections[collection] {
		key, err := schema.IDKey(existing[schema.IDField])
		if err != nil {
			return nil, err
		}
		seen[key] = struct{}{}
	}

	prepared := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		stored := doc.Clone()
		if stored == nil {
			stored = schema.Document{}
		}
		if _, ok := stored.ID(); !ok {
			stored[schema.IDField] = uuid.New().String()
		}
		key, err := schema.IDKey(stored[schema.IDField])
		if err != nil {
			return nil, err
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate identifier %s in collection %s", key, collection)
		}
		seen[key] = struct{}{}
		prepared = append(prepared, stored)
	}

	m.collections[collection] = append(m.collections[collection], prepared...)
	out := make([]schema.Document, len(prepared))
	for i, doc := range prepared {
		out[i] = doc.Clone()
	}
	m.logger.Debug("Inserted documents", zap.String("collection", collection), zap.Int("count", len(out)))
	return out, nil
}

// DropCollection removes a collection.
func (m *MemoryInteractor) DropCollection(ctx context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
	return nil
}

// CollectionExists reports whether the collection has been created by an insert.
func (m *MemoryInteractor) CollectionExists(ctx context.Context, collection string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.collections[collection]
	return ok, nil
}

// Close is a no-op.
func (m *MemoryInteractor) Close(ctx context.Context) error {
	return nil
}

func checkIDUnchanged(before, after schema.Document) error {
	a, err := schema.IDKey(before[schema.IDField])
	if err != nil {
		return err
	}
	b, err := schema.IDKey(after[schema.IDField])
	if err != nil {
		return err
	}
	if a != b {
		return fmt.Errorf("%w: the %s field is immutable", query.ErrInvalidStage, schema.IDField)
	}
	return nil
}

var _ persistence.DatabaseInteractor = (*MemoryInteractor)(nil)
