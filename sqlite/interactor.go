// Package sqlite provides a concrete implementation of the persistence.DatabaseInteractor
// interface for SQLite databases. Each collection is a table of JSON documents keyed by
// their canonical identifier; filters are compiled to json_extract expressions and
// update pipelines run inside an immediate transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/asaidimu/go-bookstore/core/persistence"
	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dbRunner is an interface that abstracts the common methods of *sql.DB and *sql.Tx,
// allowing for the same code to be used for both transactional and non-transactional
// database operations.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteInteractor is a concrete implementation of the persistence.DatabaseInteractor
// interface for SQLite.
type SQLiteInteractor struct {
	db        *sql.DB
	processor *query.DataProcessor
	logger    *zap.Logger
	options   *InteractorOptions
}

// Ensure SQLiteInteractor implements the persistence interfaces.
var (
	_ persistence.DatabaseInteractor = (*SQLiteInteractor)(nil)
	_ persistence.Indexer            = (*SQLiteInteractor)(nil)
)

// NewSQLiteInteractor creates a new instance of the SQLiteInteractor over an open
// database. Use Open to get a handle configured for immediate transactions.
func NewSQLiteInteractor(db *sql.DB, logger *zap.Logger, options *InteractorOptions) *SQLiteInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultInteractorOptions()
	}
	return &SQLiteInteractor{
		db:        db,
		processor: query.NewDataProcessor(logger),
		logger:    logger,
		options:   options,
	}
}

func (i *SQLiteInteractor) generator(collection string) (*SqliteQuery, error) {
	if collection == "" {
		return nil, persistence.ErrNoCollection
	}
	return NewSqliteQuery(i.tableName(collection))
}

// readRows decodes every (id, body) row into a document.
func readRows(rows *sql.Rows) ([]schema.Document, error) {
	results := []schema.Document{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var doc schema.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
		}
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

func (i *SQLiteInteractor) selectDocuments(ctx context.Context, runner dbRunner, gen *SqliteQuery, filter *query.QueryFilter, limit int) ([]schema.Document, error) {
	sqlQuery, queryParams, err := gen.GenerateSelectSQL(filter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL query: %w", err)
	}

	i.logger.Debug("Executing SQL SELECT", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	rows, err := runner.QueryContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	defer rows.Close()
	return readRows(rows)
}

// SelectDocuments executes a SELECT query against the collection table. A missing
// table yields no documents.
func (i *SQLiteInteractor) SelectDocuments(ctx context.Context, collection string, filter *query.QueryFilter, limit int) ([]schema.Document, error) {
	gen, err := i.generator(collection)
	if err != nil {
		return nil, err
	}
	exists, err := i.tableExists(ctx, i.db, gen.table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []schema.Document{}, nil
	}
	return i.selectDocuments(ctx, i.db, gen, filter, limit)
}

// UpdateDocument reads the first matching document, applies the pipeline in Go and
// writes the result back, all inside one transaction. With the immediate transaction
// lock configured by Open, no other writer can interleave between read and write.
func (i *SQLiteInteractor) UpdateDocument(ctx context.Context, collection string, filter *query.QueryFilter, pipeline query.Pipeline) (result persistence.UpdateResult, err error) {
	gen, err := i.generator(collection)
	if err != nil {
		return result, err
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				i.logger.Error("Failed to roll back update", zap.Error(rbErr))
			}
		}
	}()

	exists, err := i.tableExists(ctx, tx, gen.table)
	if err != nil {
		return result, err
	}
	if !exists {
		return result, tx.Commit()
	}

	docs, err := i.selectDocuments(ctx, tx, gen, filter, 1)
	if err != nil {
		return result, err
	}
	if len(docs) == 0 {
		return result, tx.Commit()
	}
	result.MatchedCount = 1

	current := docs[0]
	updated, changed, err := i.processor.ApplyPipeline(current, pipeline)
	if err != nil {
		return persistence.UpdateResult{}, err
	}
	if changed {
		key, err := schema.IDKey(current[schema.IDField])
		if err != nil {
			return persistence.UpdateResult{}, err
		}
		newKey, err := schema.IDKey(updated[schema.IDField])
		if err != nil {
			return persistence.UpdateResult{}, err
		}
		if newKey != key {
			return persistence.UpdateResult{}, fmt.Errorf("%w: the %s field is immutable", query.ErrInvalidStage, schema.IDField)
		}
		body, err := json.Marshal(updated)
		if err != nil {
			return persistence.UpdateResult{}, fmt.Errorf("failed to encode document %s: %w", key, err)
		}
		sqlQuery, queryParams, err := gen.GenerateUpdateSQL(key, string(body))
		if err != nil {
			return persistence.UpdateResult{}, fmt.Errorf("failed to generate SQL UPDATE query: %w", err)
		}
		i.logger.Debug("Executing SQL UPDATE", zap.String("sql", sqlQuery), zap.String("id", key))
		if _, err := tx.ExecContext(ctx, sqlQuery, queryParams...); err != nil {
			i.logger.Error("Failed to execute UPDATE query", zap.Error(err), zap.String("sql", sqlQuery))
			return persistence.UpdateResult{}, fmt.Errorf("failed to execute UPDATE query: %w", err)
		}
		result.ModifiedCount = 1
	}

	if err := tx.Commit(); err != nil {
		return persistence.UpdateResult{}, fmt.Errorf("failed to commit update: %w", err)
	}
	return result, nil
}

// InsertDocuments executes an INSERT query against the collection table, creating it
// first when needed.
func (i *SQLiteInteractor) InsertDocuments(ctx context.Context, collection string, docs []schema.Document) ([]schema.Document, error) {
	gen, err := i.generator(collection)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []schema.Document{}, nil
	}
	if err := i.createTable(ctx, i.db, gen.table); err != nil {
		return nil, err
	}

	rows := make([]storedRow, 0, len(docs))
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
		body, err := json.Marshal(stored)
		if err != nil {
			return nil, fmt.Errorf("failed to encode document %s: %w", key, err)
		}
		rows = append(rows, storedRow{ID: key, Body: string(body)})
	}

	sqlQuery, queryParams, err := gen.GenerateInsertSQL(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to generate INSERT SQL: %w", err)
	}

	i.logger.Debug("Executing SQL INSERT with RETURNING clause", zap.String("sql", sqlQuery), zap.Int("rows", len(rows)))

	result, err := i.db.QueryContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute INSERT ... RETURNING query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute INSERT ... RETURNING query: %w", err)
	}
	defer result.Close()
	return readRows(result)
}

// Close closes the database handle.
func (i *SQLiteInteractor) Close(ctx context.Context) error {
	return i.db.Close()
}
