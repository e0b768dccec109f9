package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// InteractorOptions provides configuration for the interactor.
type InteractorOptions struct {
	// TablePrefix adds a prefix to all table names.
	TablePrefix string
}

// DefaultInteractorOptions returns the options used when none are given.
func DefaultInteractorOptions() *InteractorOptions {
	return &InteractorOptions{}
}

// Open opens a SQLite database at path with immediate transaction locking and a busy
// timeout. ":memory:" opens a private in-memory database on a single connection.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000", path)
	if path == "" || path == ":memory:" {
		dsn = "file::memory:?_txlock=immediate"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if path == "" || path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database %s: %w", path, err)
	}
	return db, nil
}

// tableName applies the configured table prefix to the base name.
func (i *SQLiteInteractor) tableName(collection string) string {
	return i.options.TablePrefix + collection
}

// CreateTableSQL generates the DDL for a document table.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n    \"id\" TEXT PRIMARY KEY,\n    \"body\" TEXT NOT NULL CHECK (json_valid(\"body\"))\n);",
		quoteIdentifier(table),
	)
}

// CreateIndexSQL generates the DDL for an index on a document field.
func CreateIndexSQL(table string, field string) (string, error) {
	path, err := jsonPath(field)
	if err != nil {
		return "", err
	}
	indexName := fmt.Sprintf("idx_%s_%s", table, strings.ReplaceAll(field, ".", "_"))
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (json_extract(\"body\", '%s'));",
		quoteIdentifier(indexName),
		quoteIdentifier(table),
		strings.ReplaceAll(path, "'", "''"),
	), nil
}

func (i *SQLiteInteractor) createTable(ctx context.Context, runner dbRunner, table string) error {
	stmt := CreateTableSQL(table)
	if _, err := runner.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
	}
	return nil
}

// CreateIndex creates the collection table if needed and indexes field.
func (i *SQLiteInteractor) CreateIndex(ctx context.Context, collection string, field string) error {
	gen, err := i.generator(collection)
	if err != nil {
		return err
	}
	if err := i.createTable(ctx, i.db, gen.table); err != nil {
		return err
	}
	stmt, err := CreateIndexSQL(gen.table, field)
	if err != nil {
		return fmt.Errorf("failed to generate SQL for index on %s: %w", field, err)
	}
	i.logger.Debug("Creating index", zap.String("sql", stmt))
	if _, err := i.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", field, err)
	}
	return nil
}

// DropCollection drops a table from the database.
func (i *SQLiteInteractor) DropCollection(ctx context.Context, collection string) error {
	gen, err := i.generator(collection)
	if err != nil {
		return err
	}
	if _, err := i.db.ExecContext(ctx, gen.GenerateDropSQL()); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", gen.table, err)
	}
	return nil
}

// CollectionExists checks if a table exists in the database.
func (i *SQLiteInteractor) CollectionExists(ctx context.Context, collection string) (bool, error) {
	if collection == "" {
		return false, nil
	}
	return i.tableExists(ctx, i.db, i.tableName(collection))
}

func (i *SQLiteInteractor) tableExists(ctx context.Context, runner dbRunner, table string) (bool, error) {
	var name string
	err := runner.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name = ?;", table).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return true, nil
}
