package patterns

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-bookstore/core/persistence"
	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
)

// ProductTypeRollupSpec counts products per type and averages their number of authors.
var ProductTypeRollupSpec = query.GroupSpec{
	By: schema.FieldProductType,
	Aggregations: []query.AggregationConfiguration{
		{Type: query.AggregationTypeCount, Alias: "count"},
		{Type: query.AggregationTypeAvg, Field: schema.FieldAuthors, Alias: "averageNumberOfAuthors", Size: true},
	},
}

// ReviewStarsRollupSpec buckets embedded review ratings and collects the reviewers.
var ReviewStarsRollupSpec = query.BucketSpec{
	GroupBy:    "review.stars",
	Boundaries: []float64{0, 1, 2, 3, 4, 5, 6},
	Default:    "other",
	Aggregations: []query.AggregationConfiguration{
		{Type: query.AggregationTypeCount, Alias: "count"},
		{Type: query.AggregationTypePush, Field: "review.user_id", Alias: "user_id"},
	},
}

// ProductTypeRollup runs ProductTypeRollupSpec over every product. Products must be
// normalized first: a scalar authors value fails with query.ErrNotSequence.
func ProductTypeRollup(ctx context.Context, products persistence.PersistenceCollectionInterface) ([]schema.Document, error) {
	rows, err := products.Group(ctx, nil, ProductTypeRollupSpec)
	if err != nil {
		return nil, fmt.Errorf("product type rollup: %w", err)
	}
	return rows, nil
}

// ReviewStarsRollup runs ReviewStarsRollupSpec over every review. Reviews that have
// not been embedded yet land in the default bucket.
func ReviewStarsRollup(ctx context.Context, reviews persistence.PersistenceCollectionInterface) ([]schema.Document, error) {
	rows, err := reviews.Bucket(ctx, nil, ReviewStarsRollupSpec)
	if err != nil {
		return nil, fmt.Errorf("review stars rollup: %w", err)
	}
	return rows, nil
}
