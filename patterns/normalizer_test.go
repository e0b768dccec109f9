package patterns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/asaidimu/go-bookstore/core/persistence"
	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/asaidimu/go-bookstore/memory"
	"github.com/asaidimu/go-bookstore/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errStoreUnavailable = errors.New("store unavailable")

// flakyInteractor fails every update after the first healthyUpdates calls.
type flakyInteractor struct {
	persistence.DatabaseInteractor
	healthyUpdates int
	updates        int
}

func (f *flakyInteractor) UpdateDocument(ctx context.Context, collection string, filter *query.QueryFilter, pipeline query.Pipeline) (persistence.UpdateResult, error) {
	f.updates++
	if f.updates > f.healthyUpdates {
		return persistence.UpdateResult{}, errStoreUnavailable
	}
	return f.DatabaseInteractor.UpdateDocument(ctx, collection, filter, pipeline)
}

type backend struct {
	name string
	open func(t *testing.T) persistence.DatabaseInteractor
}

var backends = []backend{
	{"memory", func(t *testing.T) persistence.DatabaseInteractor {
		return memory.NewMemoryInteractor(zaptest.NewLogger(t))
	}},
	{"sqlite", func(t *testing.T) persistence.DatabaseInteractor {
		db, err := sqlite.Open(":memory:")
		require.NoError(t, err)
		return sqlite.NewSQLiteInteractor(db, zaptest.NewLogger(t), nil)
	}},
}

func newCatalog(t *testing.T, interactor persistence.DatabaseInteractor) *Catalog {
	t.Helper()
	logger := zaptest.NewLogger(t)
	service, err := persistence.NewPersistence(interactor, logger)
	require.NoError(t, err)
	t.Cleanup(func() { service.Close(context.Background()) })
	catalog, err := NewCatalog(service, DefaultCollections(), logger)
	require.NoError(t, err)
	return catalog
}

func insertProducts(t *testing.T, c *Catalog, docs ...schema.Document) {
	t.Helper()
	_, err := c.Products().Insert(context.Background(), docs...)
	require.NoError(t, err)
}

func findProduct(t *testing.T, c *Catalog, id any) schema.Document {
	t.Helper()
	doc, err := c.Products().FindOne(context.Background(), query.ByID(id))
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc
}

func assertDocument(t *testing.T, expected string, doc schema.Document) {
	t.Helper()
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, expected, string(b))
}

func TestNormalize_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		input    schema.Document
		hint     schema.ProductType
		expected string
	}{
		{
			name:     "book renames details",
			input:    schema.Document{"_id": 1, "details": "X"},
			hint:     schema.ProductTypeBook,
			expected: `{"_id":1,"product_type":"book","description":"X"}`,
		},
		{
			name:     "ebook wraps scalar authors",
			input:    schema.Document{"_id": 2, "desc": "Y", "authors": "Ann"},
			hint:     schema.ProductTypeEbook,
			expected: `{"_id":2,"product_type":"ebook","description":"Y","authors":["Ann"]}`,
		},
		{
			name:     "audiobook moves author into authors",
			input:    schema.Document{"_id": 3, "desc": "Z", "author": "Bob"},
			hint:     schema.ProductTypeAudiobook,
			expected: `{"_id":3,"product_type":"audiobook","description":"Z","authors":["Bob"]}`,
		},
		{
			name:     "ebook keeps an authors sequence",
			input:    schema.Document{"_id": 4, "desc": "W", "authors": []any{"A", "B"}},
			hint:     schema.ProductTypeEbook,
			expected: `{"_id":4,"product_type":"ebook","description":"W","authors":["A","B"]}`,
		},
		{
			name:     "audiobook prefers an existing authors sequence",
			input:    schema.Document{"_id": 5, "desc": "V", "authors": []any{"A"}, "author": "B"},
			hint:     schema.ProductTypeAudiobook,
			expected: `{"_id":5,"product_type":"audiobook","description":"V","authors":["A"]}`,
		},
		{
			name:     "malformed authors is wrapped",
			input:    schema.Document{"_id": 6, "desc": "U", "authors": 7},
			hint:     schema.ProductTypeEbook,
			expected: `{"_id":6,"product_type":"ebook","description":"U","authors":[7]}`,
		},
		{
			name:     "hint overrides a stored type",
			input:    schema.Document{"_id": 7, "product_type": "ebook", "details": "T"},
			hint:     schema.ProductTypeBook,
			expected: `{"_id":7,"product_type":"book","description":"T"}`,
		},
		{
			name:     "ebook without authors stays without authors",
			input:    schema.Document{"_id": 8, "desc": "S"},
			hint:     schema.ProductTypeEbook,
			expected: `{"_id":8,"product_type":"ebook","description":"S"}`,
		},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					ctx := context.Background()
					c := newCatalog(t, b.open(t))
					insertProducts(t, c, tt.input)
					id := tt.input[schema.IDField]

					res, err := c.Normalize(ctx, id, tt.hint)
					require.NoError(t, err)
					assert.Equal(t, int64(1), res.MatchedCount)
					once := findProduct(t, c, id)
					assertDocument(t, tt.expected, once)

					// Replays change nothing.
					res, err = c.Normalize(ctx, id, tt.hint)
					require.NoError(t, err)
					assert.Equal(t, int64(1), res.MatchedCount)
					assert.Zero(t, res.ModifiedCount)
					twice := findProduct(t, c, id)
					equal, err := schema.Equal(once, twice)
					require.NoError(t, err)
					assert.True(t, equal)
				})
			}
		})
	}
}

func TestNormalize_ReferenceProducts(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t, memory.NewMemoryInteractor(zaptest.NewLogger(t)))
	insertProducts(t, c, SampleProducts()...)

	results, err := c.Run(ctx, ReferenceTargets())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(2), results[0].ModifiedCount)
	assert.Equal(t, int64(3), results[1].ModifiedCount)
	assert.Equal(t, int64(4), results[2].ModifiedCount)
	assert.Len(t, results[2].Steps, 4)

	products, err := c.List(ctx, "books", nil)
	require.NoError(t, err)
	require.Len(t, products, 3)
	for i, p := range products {
		assert.Equal(t, string(ReferenceTargets()[i].Type), p[schema.FieldProductType])
		for _, legacy := range []string{schema.LegacyFieldDetails, schema.LegacyFieldDesc, schema.LegacyFieldAuthor} {
			assert.NotContains(t, p, legacy)
		}
		assert.Contains(t, p, schema.FieldDescription)
		assert.Equal(t, schema.KindSequence, p.FieldKind(schema.FieldAuthors))
	}
}

func TestNormalize_NoMatch(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t, memory.NewMemoryInteractor(zaptest.NewLogger(t)))
	insertProducts(t, c, schema.Document{"_id": 1, "details": "X"})

	res, err := c.Normalize(ctx, 42, schema.ProductTypeBook)
	require.NoError(t, err)
	assert.Zero(t, res.MatchedCount)
	assert.Zero(t, res.ModifiedCount)
	assert.Len(t, res.Steps, 1)

	assertDocument(t, `{"_id":1,"details":"X"}`, findProduct(t, c, 1))
}

func TestNormalize_UnknownType(t *testing.T) {
	c := newCatalog(t, memory.NewMemoryInteractor(zaptest.NewLogger(t)))
	insertProducts(t, c, schema.Document{"_id": 1, "details": "X"})

	_, err := c.Normalize(context.Background(), 1, "vinyl")
	assert.ErrorIs(t, err, ErrUnknownProductType)
	assertDocument(t, `{"_id":1,"details":"X"}`, findProduct(t, c, 1))

	_, err = NormalizationSteps("")
	assert.ErrorIs(t, err, ErrUnknownProductType)
}

func TestRun_StopsAtStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyInteractor{
		DatabaseInteractor: memory.NewMemoryInteractor(zaptest.NewLogger(t)),
		healthyUpdates:     3,
	}
	c := newCatalog(t, store)
	insertProducts(t, c, SampleProducts()...)

	// The book takes two updates, the ebook fails on its second.
	results, err := c.Run(ctx, ReferenceTargets())
	assert.ErrorIs(t, err, errStoreUnavailable)
	require.Len(t, results, 1)

	partial := findProduct(t, c, 2)
	assert.Equal(t, "ebook", partial[schema.FieldProductType])
	assert.Contains(t, partial, schema.LegacyFieldDesc)

	store.healthyUpdates = store.updates + 100
	results, err = c.Run(ctx, ReferenceTargets())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assertDocument(t, `{
		"_id":2,
		"title":"MongoDB Applied Design Patterns",
		"description":"Practical use cases with the leading NoSQL database.",
		"authors":["Rick Copeland"],
		"product_id":44538756,
		"product_type":"ebook"
	}`, findProduct(t, c, 2))
}

func TestNormalizationSteps(t *testing.T) {
	names := func(steps []Step) []string {
		out := make([]string, len(steps))
		for i, s := range steps {
			out[i] = s.Name
		}
		return out
	}

	steps, err := NormalizationSteps(schema.ProductTypeBook)
	require.NoError(t, err)
	assert.Equal(t, []string{"assign-type", "rename-description"}, names(steps))
	assert.Equal(t, []string{"details", "description"}, steps[1].Pipeline.ReferencedFields())

	steps, err = NormalizationSteps(schema.ProductTypeEbook)
	require.NoError(t, err)
	assert.Equal(t, []string{"assign-type", "rename-description", "wrap-authors"}, names(steps))

	steps, err = NormalizationSteps(schema.ProductTypeAudiobook)
	require.NoError(t, err)
	assert.Equal(t, []string{"assign-type", "rename-description", "wrap-authors", "drop-author"}, names(steps))
	for _, s := range steps {
		assert.NoError(t, s.Pipeline.Validate())
	}
}

func TestNormalize_ForeignLegacyFields(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			c := newCatalog(t, b.open(t))
			insertProducts(t, c,
				schema.Document{"_id": 1, "desc": "X"},
				schema.Document{"_id": 2, "desc": "Y", "author": "Ann"},
			)

			// Only the legacy names of the hinted subtype are migrated.
			_, err := c.Normalize(ctx, 1, schema.ProductTypeBook)
			require.NoError(t, err)
			assertDocument(t, `{"_id":1,"desc":"X","product_type":"book"}`, findProduct(t, c, 1))

			_, err = c.Normalize(ctx, 2, schema.ProductTypeEbook)
			require.NoError(t, err)
			assertDocument(t, `{"_id":2,"author":"Ann","description":"Y","product_type":"ebook"}`, findProduct(t, c, 2))
		})
	}
}
