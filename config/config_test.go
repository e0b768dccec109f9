package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "bookstore.db", cfg.SQLite.Path)
	assert.Equal(t, "bookstore", cfg.Mongo.Database)
	assert.Equal(t, 10*time.Second, cfg.Mongo.Timeout)
	assert.Equal(t, CollectionsConfig{Products: "books", Reviews: "reviews"}, cfg.Collections)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
backend: mongo
mongo:
  uri: mongodb://db:27017
  database: shop
  timeout: 3s
collections:
  products: products
log:
  level: debug
  development: true
`)
	t.Setenv("CATALOG_MONGO_DATABASE", "shop_test")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, BackendMongo, cfg.Backend)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "shop_test", cfg.Mongo.Database, "environment overrides the file")
	assert.Equal(t, 3*time.Second, cfg.Mongo.Timeout)
	assert.Equal(t, "products", cfg.Collections.Products)
	assert.Equal(t, "reviews", cfg.Collections.Reviews)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_EnvFile(t *testing.T) {
	envFile := writeFile(t, "test.env", "CATALOG_BACKEND=memory\nCATALOG_COLLECTIONS_REVIEWS=ratings\n")
	t.Cleanup(func() {
		os.Unsetenv("CATALOG_BACKEND")
		os.Unsetenv("CATALOG_COLLECTIONS_REVIEWS")
	})
	t.Chdir(t.TempDir())

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "ratings", cfg.Collections.Reviews)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err, "an explicit config file must exist")

	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err, "an explicit env file must exist")

	t.Setenv("CATALOG_BACKEND", "postgres")
	_, err = Load("", "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Backend:     BackendMongo,
			Mongo:       MongoConfig{URI: "mongodb://localhost", Database: "bookstore", Timeout: time.Second},
			Collections: CollectionsConfig{Products: "books", Reviews: "reviews"},
			Log:         LogConfig{Level: "warn"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"memory needs nothing else", func(c *Config) { c.Backend = BackendMemory; c.Mongo = MongoConfig{} }, true},
		{"sqlite needs a path", func(c *Config) { c.Backend = BackendSQLite }, false},
		{"mongo needs a database", func(c *Config) { c.Mongo.Database = "" }, false},
		{"mongo needs a timeout", func(c *Config) { c.Mongo.Timeout = 0 }, false},
		{"same collections", func(c *Config) { c.Collections.Reviews = "books" }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := LogConfig{Level: "debug", Development: true}.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = LogConfig{Level: "loud"}.NewLogger()
	assert.Error(t, err)
}
