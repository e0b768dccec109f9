package query

import (
	"encoding/json"
	"testing"

	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertJSONDocument compares a document against its expected JSON rendering.
func assertJSONDocument(t *testing.T, expected string, doc schema.Document) {
	t.Helper()
	actual, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, expected, string(actual))
}

func TestDataProcessor_Group(t *testing.T) {
	p := NewDataProcessor(nil)
	rows := []schema.Document{
		{"_id": 1, "product_type": "book", "authors": []any{"Kristina Chodorow", "Shannon Bradshaw"}},
		{"_id": 2, "product_type": "ebook", "authors": []any{"Rick Copeland"}},
		{"_id": 3, "product_type": "audiobook", "authors": []any{"Alex Giamas"}},
		{"_id": 4, "product_type": "book", "authors": []any{"Kyle Banker"}},
	}

	t.Run("count and average sequence size", func(t *testing.T) {
		out, err := p.Group(rows, GroupSpec{
			By: "product_type",
			Aggregations: []AggregationConfiguration{
				{Type: AggregationTypeCount, Alias: "count"},
				{Type: AggregationTypeAvg, Field: "authors", Alias: "averageNumberOfAuthors", Size: true},
			},
		})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assertJSONDocument(t, `{"_id":"audiobook","count":1,"averageNumberOfAuthors":1}`, out[0])
		assertJSONDocument(t, `{"_id":"book","count":2,"averageNumberOfAuthors":1.5}`, out[1])
		assertJSONDocument(t, `{"_id":"ebook","count":1,"averageNumberOfAuthors":1}`, out[2])
	})

	t.Run("sum min max push", func(t *testing.T) {
		out, err := p.Group(rows, GroupSpec{
			By: "product_type",
			Aggregations: []AggregationConfiguration{
				{Type: AggregationTypeSum, Field: "_id", Alias: "sum"},
				{Type: AggregationTypeMin, Field: "_id", Alias: "min"},
				{Type: AggregationTypeMax, Field: "_id", Alias: "max"},
				{Type: AggregationTypePush, Field: "_id", Alias: "ids"},
			},
		})
		require.NoError(t, err)
		assertJSONDocument(t, `{"_id":"book","sum":5,"min":1,"max":4,"ids":[1,4]}`, out[1])
	})

	t.Run("missing group field groups under null", func(t *testing.T) {
		out, err := p.Group(append(rows, schema.Document{"_id": 5}), GroupSpec{
			By:           "product_type",
			Aggregations: []AggregationConfiguration{{Type: AggregationTypeCount, Alias: "count"}},
		})
		require.NoError(t, err)
		require.Len(t, out, 4)
		assertJSONDocument(t, `{"_id":null,"count":1}`, out[0])
	})

	t.Run("numeric keys order by value", func(t *testing.T) {
		out, err := p.Group([]schema.Document{
			{"_id": 1, "rank": 10},
			{"_id": 2, "rank": -1},
			{"_id": 3, "rank": "top"},
			{"_id": 4, "rank": -2.5},
			{"_id": 5, "rank": int64(10)},
			{"_id": 6},
		}, GroupSpec{
			By:           "rank",
			Aggregations: []AggregationConfiguration{{Type: AggregationTypeCount, Alias: "count"}},
		})
		require.NoError(t, err)
		keys := make([]any, 0, len(out))
		for _, row := range out {
			keys = append(keys, row["_id"])
		}
		assert.Equal(t, []any{nil, -2.5, -1, 10, "top"}, keys)
		assertJSONDocument(t, `{"_id":10,"count":2}`, out[3])
	})

	t.Run("size of a scalar fails", func(t *testing.T) {
		_, err := p.Group([]schema.Document{{"_id": 1, "product_type": "ebook", "authors": "Rick"}}, GroupSpec{
			By:           "product_type",
			Aggregations: []AggregationConfiguration{{Type: AggregationTypeAvg, Field: "authors", Alias: "n", Size: true}},
		})
		assert.ErrorIs(t, err, ErrNotSequence)
	})

	t.Run("invalid specs", func(t *testing.T) {
		_, err := p.Group(rows, GroupSpec{})
		assert.Error(t, err)
		_, err = p.Group(rows, GroupSpec{By: "product_type", Aggregations: []AggregationConfiguration{{Type: AggregationTypeSum, Alias: "s"}}})
		assert.Error(t, err)
		_, err = p.Group(rows, GroupSpec{By: "product_type", Aggregations: []AggregationConfiguration{{Type: "median", Field: "_id", Alias: "m"}}})
		assert.Error(t, err)
	})
}

func TestDataProcessor_Bucket(t *testing.T) {
	p := NewDataProcessor(nil)
	rows := []schema.Document{
		{"_id": 1, "review": map[string]any{"stars": 5, "user_id": 1001}},
		{"_id": 2, "review": map[string]any{"stars": 4, "user_id": 1002}},
		{"_id": 3, "review": map[string]any{"stars": 5, "user_id": 1003}},
		{"_id": 4, "review": map[string]any{"stars": "n/a", "user_id": 1004}},
	}
	spec := BucketSpec{
		GroupBy:    "review.stars",
		Boundaries: []float64{0, 1, 2, 3, 4, 5, 6},
		Default:    "other",
		Aggregations: []AggregationConfiguration{
			{Type: AggregationTypeCount, Alias: "count"},
			{Type: AggregationTypePush, Field: "review.user_id", Alias: "user_id"},
		},
	}

	out, err := p.Bucket(rows, spec)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assertJSONDocument(t, `{"_id":4,"count":1,"user_id":[1002]}`, out[0])
	assertJSONDocument(t, `{"_id":5,"count":2,"user_id":[1001,1003]}`, out[1])
	assertJSONDocument(t, `{"_id":"other","count":1,"user_id":[1004]}`, out[2])

	t.Run("no default", func(t *testing.T) {
		noDefault := spec
		noDefault.Default = nil
		_, err := p.Bucket(rows, noDefault)
		assert.Error(t, err)
	})

	t.Run("upper boundary is exclusive", func(t *testing.T) {
		out, err := p.Bucket([]schema.Document{{"_id": 1, "review": map[string]any{"stars": 6}}}, spec)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "other", out[0]["_id"])
	})

	t.Run("invalid boundaries", func(t *testing.T) {
		bad := spec
		bad.Boundaries = []float64{3, 1}
		_, err := p.Bucket(rows, bad)
		assert.Error(t, err)
		bad.Boundaries = []float64{1}
		_, err = p.Bucket(rows, bad)
		assert.Error(t, err)
	})
}
