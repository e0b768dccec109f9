package persistence

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"go.uber.org/zap"
)

// Executor orchestrates database operations by coordinating between the
// DatabaseInteractor and the DataProcessor. Filters the store can evaluate are pushed
// down; filters using registered Go predicates are evaluated in memory.
type Executor struct {
	interactor    DatabaseInteractor
	dataProcessor *query.DataProcessor
	logger        *zap.Logger
}

func NewExecutor(interactor DatabaseInteractor, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		interactor:    interactor,
		dataProcessor: query.NewDataProcessor(logger),
		logger:        logger,
	}
}

// RegisterFilterFunction registers a Go function for custom filtering.
func (e *Executor) RegisterFilterFunction(operator query.ComparisonOperator, fn query.PredicateFunction) {
	e.dataProcessor.RegisterFilterFunction(operator, fn)
}

// RegisterFilterFunctions registers multiple filter functions from a map.
func (e *Executor) RegisterFilterFunctions(functionMap map[query.ComparisonOperator]query.PredicateFunction) {
	for op, fn := range functionMap {
		e.dataProcessor.RegisterFilterFunction(op, fn)
	}
}

// Query runs a read against the store.
func (e *Executor) Query(ctx context.Context, collection string, dsl *query.QueryDSL) (*query.QueryResult, error) {
	if dsl == nil {
		dsl = &query.QueryDSL{}
	}

	if !requiresGoFiltering(dsl.Filters) {
		rows, err := e.interactor.SelectDocuments(ctx, collection, dsl.Filters, dsl.Limit)
		if err != nil {
			return nil, err
		}
		return &query.QueryResult{Data: rows, Count: len(rows)}, nil
	}

	// Custom predicates cannot be translated, so every row is fetched and filtered here.
	rows, err := e.interactor.SelectDocuments(ctx, collection, nil, 0)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Fetched rows from DB before Go processing", zap.String("collection", collection), zap.Int("count", len(rows)))

	filtered, err := e.dataProcessor.Filter(ctx, dsl.Filters, rows, dsl.Limit)
	if err != nil {
		return nil, err
	}
	return &query.QueryResult{Data: filtered, Count: len(filtered)}, nil
}

// Update applies pipeline to the first document matching filter.
func (e *Executor) Update(ctx context.Context, collection string, filter *query.QueryFilter, pipeline query.Pipeline) (UpdateResult, error) {
	if requiresGoFiltering(filter) {
		return UpdateResult{}, fmt.Errorf("updates only accept filters built from standard operators")
	}
	if err := pipeline.Validate(); err != nil {
		return UpdateResult{}, err
	}
	return e.interactor.UpdateDocument(ctx, collection, filter, pipeline)
}

// Insert performs an insert operation and returns the inserted records.
func (e *Executor) Insert(ctx context.Context, collection string, docs []schema.Document) (*query.QueryResult, error) {
	inserted, err := e.interactor.InsertDocuments(ctx, collection, docs)
	if err != nil {
		return nil, err
	}
	return &query.QueryResult{Data: inserted, Count: len(inserted)}, nil
}

// Group selects the documents matching filter and groups them in memory.
func (e *Executor) Group(ctx context.Context, collection string, filter *query.QueryFilter, spec query.GroupSpec) ([]schema.Document, error) {
	result, err := e.Query(ctx, collection, &query.QueryDSL{Filters: filter})
	if err != nil {
		return nil, err
	}
	return e.dataProcessor.Group(result.Data, spec)
}

// Bucket selects the documents matching filter and buckets them in memory.
func (e *Executor) Bucket(ctx context.Context, collection string, filter *query.QueryFilter, spec query.BucketSpec) ([]schema.Document, error) {
	result, err := e.Query(ctx, collection, &query.QueryDSL{Filters: filter})
	if err != nil {
		return nil, err
	}
	return e.dataProcessor.Bucket(result.Data, spec)
}

// Drop removes a collection.
func (e *Executor) Drop(ctx context.Context, collection string) error {
	return e.interactor.DropCollection(ctx, collection)
}

// requiresGoFiltering reports whether any condition of filter uses a custom operator.
func requiresGoFiltering(filter *query.QueryFilter) bool {
	if filter == nil {
		return false
	}
	if filter.Condition != nil {
		return !filter.Condition.Operator.IsStandard()
	}
	if filter.Group != nil {
		for i := range filter.Group.Conditions {
			if requiresGoFiltering(&filter.Group.Conditions[i]) {
				return true
			}
		}
	}
	return false
}
