package patterns

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-bookstore/core/schema"
	"go.uber.org/zap"
)

// SampleProducts returns the three legacy-shaped products of the bookstore: a book
// with details, an ebook with a scalar authors and an audiobook with a scalar author.
func SampleProducts() []schema.Document {
	return []schema.Document{
		{
			"_id":        1,
			"title":      "MongoDB, The Definitive Guide",
			"details":    "Learn how to develop with MongoDB and manage it in production.",
			"authors":    []any{"Shannon Bradshaw", "Eoin Brazil", "Kristina Chodorow"},
			"product_id": 34538756,
		},
		{
			"_id":        2,
			"title":      "MongoDB Applied Design Patterns",
			"desc":       "Practical use cases with the leading NoSQL database.",
			"authors":    "Rick Copeland",
			"product_id": 44538756,
		},
		{
			"_id":        3,
			"title":      "Mastering MongoDB 6.x",
			"desc":       "Expert techniques to run high-volume and fault-tolerant database solutions.",
			"author":     "Alex Giamas",
			"product_id": 54538756,
		},
	}
}

// SampleReviews returns the two flat reviews referring to the sample products.
func SampleReviews() []schema.Document {
	return []schema.Document{
		{
			"_id":         1,
			"product_id":  34538756,
			"user_id":     1001,
			"reviewTitle": "A must read",
			"reviewBody":  "Covers everything from schema design to sharding.",
			"date":        "2023-06-12",
			"stars":       5,
		},
		{
			"_id":         2,
			"product_id":  54538756,
			"user_id":     1002,
			"reviewTitle": "Good narration",
			"reviewBody":  "Dense material but well structured.",
			"date":        "2023-09-02",
			"stars":       4,
		},
	}
}

// Seed drops both collections and re-inserts the sample documents, then indexes the
// product reference on stores that support it.
func (c *Catalog) Seed(ctx context.Context) error {
	for _, name := range []string{c.names.Products, c.names.Reviews} {
		if err := c.service.Drop(ctx, name); err != nil {
			return fmt.Errorf("failed to reset %s: %w", name, err)
		}
	}
	if _, err := c.products.Insert(ctx, SampleProducts()...); err != nil {
		return fmt.Errorf("failed to seed %s: %w", c.names.Products, err)
	}
	if _, err := c.reviews.Insert(ctx, SampleReviews()...); err != nil {
		return fmt.Errorf("failed to seed %s: %w", c.names.Reviews, err)
	}
	if err := c.service.EnsureIndex(ctx, c.names.Products, schema.FieldProductID); err != nil {
		return err
	}
	c.logger.Info("Seeded catalog",
		zap.String("products", c.names.Products),
		zap.String("reviews", c.names.Reviews),
	)
	return nil
}
