package patterns

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-bookstore/core/persistence"
	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"go.uber.org/zap"
)

// Collections names the collections holding the catalog.
type Collections struct {
	Products string `mapstructure:"products"`
	Reviews  string `mapstructure:"reviews"`
}

// DefaultCollections returns the collection names of the sample bookstore.
func DefaultCollections() Collections {
	return Collections{Products: "books", Reviews: "reviews"}
}

// Service is the part of the persistence service the catalog needs.
type Service interface {
	Collection(name string) (persistence.PersistenceCollectionInterface, error)
	Drop(ctx context.Context, name string) error
	EnsureIndex(ctx context.Context, collection, field string) error
}

// Catalog bundles every pattern over one products and one reviews collection.
type Catalog struct {
	service  Service
	names    Collections
	products persistence.PersistenceCollectionInterface
	reviews  persistence.PersistenceCollectionInterface
	logger   *zap.Logger

	*Normalizer
	*ReferenceEmbedder
}

// NewCatalog opens the catalog collections on service.
func NewCatalog(service Service, names Collections, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	products, err := service.Collection(names.Products)
	if err != nil {
		return nil, fmt.Errorf("failed to open products collection: %w", err)
	}
	reviews, err := service.Collection(names.Reviews)
	if err != nil {
		return nil, fmt.Errorf("failed to open reviews collection: %w", err)
	}
	return &Catalog{
		service:           service,
		names:             names,
		products:          products,
		reviews:           reviews,
		logger:            logger,
		Normalizer:        NewNormalizer(products, logger.Named("normalizer")),
		ReferenceEmbedder: NewReferenceEmbedder(products, reviews, logger.Named("reference")),
	}, nil
}

// Products returns the products collection.
func (c *Catalog) Products() persistence.PersistenceCollectionInterface { return c.products }

// Reviews returns the reviews collection.
func (c *Catalog) Reviews() persistence.PersistenceCollectionInterface { return c.reviews }

// EmbedAll embeds the product reference into every review, in natural order.
func (c *Catalog) EmbedAll(ctx context.Context) (persistence.UpdateResult, error) {
	found, err := c.reviews.Find(ctx, nil)
	if err != nil {
		return persistence.UpdateResult{}, fmt.Errorf("failed to list reviews: %w", err)
	}
	var total persistence.UpdateResult
	for _, review := range found.Data {
		id, _ := review.ID()
		res, err := c.EmbedProduct(ctx, id)
		if err != nil {
			return total, err
		}
		total.MatchedCount += res.MatchedCount
		total.ModifiedCount += res.ModifiedCount
	}
	return total, nil
}

// ProductTypeRollup groups the catalog products by type.
func (c *Catalog) ProductTypeRollup(ctx context.Context) ([]schema.Document, error) {
	return ProductTypeRollup(ctx, c.products)
}

// ReviewStarsRollup buckets the catalog reviews by rating.
func (c *Catalog) ReviewStarsRollup(ctx context.Context) ([]schema.Document, error) {
	return ReviewStarsRollup(ctx, c.reviews)
}

// List returns the documents of the named catalog collection matching filter.
func (c *Catalog) List(ctx context.Context, collection string, filter *query.QueryFilter) ([]schema.Document, error) {
	var coll persistence.PersistenceCollectionInterface
	switch collection {
	case c.names.Products:
		coll = c.products
	case c.names.Reviews:
		coll = c.reviews
	default:
		return nil, fmt.Errorf("%q is not a catalog collection", collection)
	}
	found, err := coll.Find(ctx, &query.QueryDSL{Filters: filter})
	if err != nil {
		return nil, err
	}
	return found.Data, nil
}
