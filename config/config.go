// Package config loads the catalog tool configuration from an optional YAML file, an
// optional .env file and CATALOG_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CATALOG"

// Supported store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

const (
	configFileName = "catalog"
	configFileType = "yaml"
	defaultEnvFile = ".env"
)

// Config keys.
const (
	KeyBackend            = "backend"
	KeySQLitePath         = "sqlite.path"
	KeySQLiteTablePrefix  = "sqlite.table_prefix"
	KeyMongoURI           = "mongo.uri"
	KeyMongoDatabase      = "mongo.database"
	KeyMongoTimeout       = "mongo.timeout"
	KeyCollectionProducts = "collections.products"
	KeyCollectionReviews  = "collections.reviews"
	KeyLogLevel           = "log.level"
	KeyLogDevelopment     = "log.development"
)

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path        string `mapstructure:"path"`
	TablePrefix string `mapstructure:"table_prefix"`
}

// MongoConfig configures the MongoDB store.
type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CollectionsConfig names the catalog collections.
type CollectionsConfig struct {
	Products string `mapstructure:"products"`
	Reviews  string `mapstructure:"reviews"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Config is the complete tool configuration.
type Config struct {
	Backend     string            `mapstructure:"backend"`
	SQLite      SQLiteConfig      `mapstructure:"sqlite"`
	Mongo       MongoConfig       `mapstructure:"mongo"`
	Collections CollectionsConfig `mapstructure:"collections"`
	Log         LogConfig         `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyBackend, BackendSQLite)
	v.SetDefault(KeySQLitePath, "bookstore.db")
	v.SetDefault(KeySQLiteTablePrefix, "")
	v.SetDefault(KeyMongoURI, "mongodb://localhost:27017")
	v.SetDefault(KeyMongoDatabase, "bookstore")
	v.SetDefault(KeyMongoTimeout, 10*time.Second)
	v.SetDefault(KeyCollectionProducts, "books")
	v.SetDefault(KeyCollectionReviews, "reviews")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogDevelopment, false)
}

// New returns a viper instance with the defaults and environment bindings applied.
// Callers may bind command line flags to it before calling Decode.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadEnvFile loads variables from envFile without overriding the environment. An
// empty envFile means .env in the working directory, which may be absent.
func LoadEnvFile(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = defaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	return nil
}

// ReadFile merges the YAML file at path into v. An empty path searches catalog.yaml
// in the working directory, and a missing file there is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Decode unmarshals and validates the configuration held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads envFile, then the config file at path, then the environment.
func Load(path, envFile string) (*Config, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	v := New()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate checks that the selected backend is fully configured.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("%s is required for the sqlite backend", KeySQLitePath)
		}
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("%s and %s are required for the mongo backend", KeyMongoURI, KeyMongoDatabase)
		}
		if c.Mongo.Timeout <= 0 {
			return fmt.Errorf("%s must be positive", KeyMongoTimeout)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Collections.Products == "" || c.Collections.Reviews == "" {
		return fmt.Errorf("collection names must not be empty")
	}
	if c.Collections.Products == c.Collections.Reviews {
		return fmt.Errorf("products and reviews must be different collections")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}
	return nil
}

// NewLogger builds the zap logger described by c.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
