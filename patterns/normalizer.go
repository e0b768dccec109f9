// Package patterns implements the catalog schema-design patterns on top of the
// persistence service: subtype unification of product documents, the extended
// reference from reviews to products, and the computed rollups.
package patterns

import (
	"context"
	"errors"
	"fmt"

	"github.com/asaidimu/go-bookstore/core/persistence"
	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"go.uber.org/zap"
)

// ErrUnknownProductType is returned for a subtype hint outside the closed product set.
var ErrUnknownProductType = errors.New("unknown product type")

// checkHint rejects subtype hints outside the closed product set.
func checkHint(t schema.ProductType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownProductType, t)
	}
	return nil
}

// Target names one document to normalize and the subtype it must end up with.
type Target struct {
	ID   any                `json:"id"`
	Type schema.ProductType `json:"type"`
}

// ReferenceTargets returns the three sample products in their seeded order.
func ReferenceTargets() []Target {
	return []Target{
		{ID: 1, Type: schema.ProductTypeBook},
		{ID: 2, Type: schema.ProductTypeEbook},
		{ID: 3, Type: schema.ProductTypeAudiobook},
	}
}

// Step is one atomic update applied to a product during normalization.
type Step struct {
	Name     string
	Pipeline query.Pipeline
}

// StepResult records the store outcome of one step.
type StepResult struct {
	Step   string                   `json:"step"`
	Result persistence.UpdateResult `json:"result"`
}

// NormalizeResult summarizes the normalization of one document. MatchedCount is zero
// when the document does not exist; ModifiedCount counts the steps that changed it.
type NormalizeResult struct {
	ID            any                `json:"id"`
	Type          schema.ProductType `json:"type"`
	MatchedCount  int64              `json:"matchedCount"`
	ModifiedCount int64              `json:"modifiedCount"`
	Steps         []StepResult       `json:"steps"`
}

// NormalizationSteps returns the ordered steps converging a product of type t onto
// the unified shape. Each step is safe to replay against its own output.
func NormalizationSteps(t schema.ProductType) ([]Step, error) {
	if err := checkHint(t); err != nil {
		return nil, err
	}

	legacy := schema.LegacyFieldDesc
	if t == schema.ProductTypeBook {
		legacy = schema.LegacyFieldDetails
	}

	steps := []Step{
		{
			Name: "assign-type",
			Pipeline: query.Pipeline{
				query.SetFields(query.Assign(schema.FieldProductType, query.Literal(string(t)))),
			},
		},
		{
			// An absent legacy field leaves description as it is.
			Name: "rename-description",
			Pipeline: query.Pipeline{
				query.SetFields(query.Assign(schema.FieldDescription, query.Coalesce(
					query.FieldRef(legacy),
					query.FieldRef(schema.FieldDescription),
				))),
				query.UnsetFields(legacy),
			},
		},
	}

	switch t {
	case schema.ProductTypeEbook:
		steps = append(steps, Step{
			Name:     "wrap-authors",
			Pipeline: query.Pipeline{wrapAuthors(query.FieldRef(schema.FieldAuthors))},
		})
	case schema.ProductTypeAudiobook:
		steps = append(steps,
			Step{
				Name: "wrap-authors",
				Pipeline: query.Pipeline{wrapAuthors(query.Coalesce(
					query.FieldRef(schema.LegacyFieldAuthor),
					query.FieldRef(schema.FieldAuthors),
				))},
			},
			Step{
				Name:     "drop-author",
				Pipeline: query.Pipeline{query.UnsetFields(schema.LegacyFieldAuthor)},
			},
		)
	}
	return steps, nil
}

// wrapAuthors keeps a stored authors sequence and otherwise replaces it with a
// one-element sequence holding source. The check runs against the stored value.
func wrapAuthors(source query.Expression) query.Stage {
	return query.ConditionalSet(schema.FieldAuthors,
		query.KindCheck{Field: schema.FieldAuthors, Kind: schema.KindSequence},
		query.FieldRef(schema.FieldAuthors),
		query.SequenceOf(source),
	)
}

// Normalizer converges product documents onto the unified product schema.
type Normalizer struct {
	products persistence.PersistenceCollectionInterface
	logger   *zap.Logger
}

// NewNormalizer creates a normalizer over the products collection.
func NewNormalizer(products persistence.PersistenceCollectionInterface, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{products: products, logger: logger}
}

// Normalize runs every step for hint against the document identified by id, in
// order. A missing document is reported through a zero MatchedCount. A store failure
// stops the sequence and leaves the document in a state a later run completes.
func (n *Normalizer) Normalize(ctx context.Context, id any, hint schema.ProductType) (NormalizeResult, error) {
	result := NormalizeResult{ID: id, Type: hint, Steps: []StepResult{}}
	steps, err := NormalizationSteps(hint)
	if err != nil {
		return result, err
	}

	log := n.logger.With(zap.Any("id", id), zap.String("type", string(hint)))
	filter := query.ByID(id)
	for i, step := range steps {
		res, err := n.products.UpdateOne(ctx, filter, step.Pipeline)
		if err != nil {
			log.Error("Normalization step failed", zap.String("step", step.Name), zap.Error(err))
			return result, fmt.Errorf("failed to normalize product %v at step %s: %w", id, step.Name, err)
		}
		result.Steps = append(result.Steps, StepResult{Step: step.Name, Result: res})
		if i == 0 {
			result.MatchedCount = res.MatchedCount
			if res.MatchedCount == 0 {
				log.Info("No product matched, nothing to normalize")
				return result, nil
			}
		}
		result.ModifiedCount += res.ModifiedCount
	}

	log.Info("Normalized product", zap.Int64("modifiedSteps", result.ModifiedCount))
	return result, nil
}

// Run normalizes every target in order and stops at the first failure, returning the
// results gathered up to that point.
func (n *Normalizer) Run(ctx context.Context, targets []Target) ([]NormalizeResult, error) {
	results := make([]NormalizeResult, 0, len(targets))
	for _, target := range targets {
		res, err := n.Normalize(ctx, target.ID, target.Type)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
