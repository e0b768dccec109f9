package patterns

import (
	"context"
	"errors"
	"fmt"

	"github.com/asaidimu/go-bookstore/core/persistence"
	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ErrProductNotFound is returned when a review refers to a product that does not exist.
var ErrProductNotFound = errors.New("referenced product not found")

const (
	embedProduct = "product"
	embedReview  = "review"
)

// productSnapshot lists the product fields copied into a review.
var productSnapshot = []string{schema.FieldProductType, schema.FieldTitle}

// reviewFields lists the flat review fields moved under the embedded review object.
var reviewFields = []string{"user_id", "reviewTitle", "reviewBody", "date", "stars"}

// ReferenceEmbedder denormalizes a snapshot of the reviewed product into each review
// and nests the review's own fields under a single object.
type ReferenceEmbedder struct {
	products persistence.PersistenceCollectionInterface
	reviews  persistence.PersistenceCollectionInterface
	logger   *zap.Logger
}

// NewReferenceEmbedder creates an embedder reading products and rewriting reviews.
func NewReferenceEmbedder(products, reviews persistence.PersistenceCollectionInterface, logger *zap.Logger) *ReferenceEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceEmbedder{products: products, reviews: reviews, logger: logger}
}

// EmbedProduct rewrites the review identified by reviewID. A missing review yields
// zero counts. Replaying it against an embedded review changes nothing.
func (e *ReferenceEmbedder) EmbedProduct(ctx context.Context, reviewID any) (persistence.UpdateResult, error) {
	review, err := e.reviews.FindOne(ctx, query.ByID(reviewID))
	if err != nil {
		return persistence.UpdateResult{}, fmt.Errorf("failed to read review %v: %w", reviewID, err)
	}
	if review == nil {
		e.logger.Info("No review matched, nothing to embed", zap.Any("review", reviewID))
		return persistence.UpdateResult{}, nil
	}

	productID, ok := review.Get(schema.FieldProductID)
	if !ok {
		productID, ok = review.Get(embedProduct + "." + schema.FieldProductID)
	}
	if !ok {
		return persistence.UpdateResult{}, fmt.Errorf("%w: review %v carries no %s", ErrProductNotFound, reviewID, schema.FieldProductID)
	}

	dsl := query.NewQueryBuilder().Where(schema.FieldProductID).Eq(productID).Limit(1).Build()
	found, err := e.products.Find(ctx, &dsl)
	if err != nil {
		return persistence.UpdateResult{}, fmt.Errorf("failed to read product %v: %w", productID, err)
	}
	if len(found.Data) == 0 {
		return persistence.UpdateResult{}, fmt.Errorf("%w: %s %v of review %v", ErrProductNotFound, schema.FieldProductID, productID, reviewID)
	}
	product := found.Data[0]

	result, err := e.reviews.UpdateOne(ctx, query.ByID(reviewID), EmbedPipeline(product))
	if err != nil {
		return persistence.UpdateResult{}, fmt.Errorf("failed to embed product into review %v: %w", reviewID, err)
	}
	e.logger.Info("Embedded product into review",
		zap.Any("review", reviewID),
		zap.Any("product", productID),
		zap.Int64("modified", result.ModifiedCount),
	)
	return result, nil
}

// EmbedPipeline builds the update nesting the review fields and snapshotting product.
// Review fields read their flat location first and fall back to the embedded one.
func EmbedPipeline(product schema.Document) query.Pipeline {
	set := []query.FieldAssignment{
		query.Assign(embedProduct+"."+schema.FieldProductID, query.Coalesce(
			query.FieldRef(schema.FieldProductID),
			query.FieldRef(embedProduct+"."+schema.FieldProductID),
		)),
	}
	for _, f := range productSnapshot {
		target := embedProduct + "." + f
		value := query.FieldRef(target)
		if v, ok := product.Get(f); ok {
			value = query.Literal(v)
		}
		set = append(set, query.Assign(target, value))
	}
	set = append(set, lo.Map(reviewFields, func(f string, _ int) query.FieldAssignment {
		target := embedReview + "." + f
		return query.Assign(target, query.Coalesce(query.FieldRef(f), query.FieldRef(target)))
	})...)

	return query.Pipeline{
		query.SetFields(set...),
		query.UnsetFields(append([]string{schema.FieldProductID}, reviewFields...)...),
	}
}
