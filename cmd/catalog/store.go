package main

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-bookstore/config"
	"github.com/asaidimu/go-bookstore/core/persistence"
	"github.com/asaidimu/go-bookstore/memory"
	"github.com/asaidimu/go-bookstore/mongodb"
	"github.com/asaidimu/go-bookstore/sqlite"
	"go.uber.org/zap"
)

// openStore connects the document store selected by cfg.Backend.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.DatabaseInteractor, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewMemoryInteractor(logger.Named("memory")), nil
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return sqlite.NewSQLiteInteractor(db, logger.Named("sqlite"), &sqlite.InteractorOptions{
			TablePrefix: cfg.SQLite.TablePrefix,
		}), nil
	case config.BackendMongo:
		return mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout, logger.Named("mongo"))
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
