package mongodb

import (
	"testing"

	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func cond(field string, op query.ComparisonOperator, value any) query.QueryFilter {
	return query.QueryFilter{Condition: &query.FilterCondition{Field: field, Operator: op, Value: value}}
}

func TestFilterToBSON(t *testing.T) {
	ptr := func(f query.QueryFilter) *query.QueryFilter { return &f }

	tests := []struct {
		name    string
		filter  *query.QueryFilter
		want    bson.M
		wantErr bool
	}{
		{name: "nil", filter: nil, want: bson.M{}},
		{name: "eq", filter: ptr(cond("product_id", query.ComparisonOperatorEq, 34538756)), want: bson.M{"product_id": bson.M{"$eq": 34538756}}},
		{name: "neq", filter: ptr(cond("product_type", query.ComparisonOperatorNeq, "book")), want: bson.M{"product_type": bson.M{"$ne": "book"}}},
		{name: "nested gte", filter: ptr(cond("review.stars", query.ComparisonOperatorGte, 4)), want: bson.M{"review.stars": bson.M{"$gte": 4}}},
		{name: "in", filter: ptr(cond("_id", query.ComparisonOperatorIn, []int{1, 2})), want: bson.M{"_id": bson.M{"$in": bson.A{1, 2}}}},
		{name: "nin scalar", filter: ptr(cond("_id", query.ComparisonOperatorNin, 3)), want: bson.M{"_id": bson.M{"$nin": bson.A{3}}}},
		{name: "exists", filter: ptr(cond("desc", query.ComparisonOperatorExists, nil)), want: bson.M{"desc": bson.M{"$exists": true}}},
		{name: "nexists", filter: ptr(cond("desc", query.ComparisonOperatorNotExists, nil)), want: bson.M{"desc": bson.M{"$exists": false}}},
		{
			name: "group",
			filter: &query.QueryFilter{Group: &query.FilterGroup{Operator: query.LogicalOperatorNor, Conditions: []query.QueryFilter{
				cond("a", query.ComparisonOperatorLt, 1),
				cond("b", query.ComparisonOperatorExists, nil),
			}}},
			want: bson.M{"$nor": bson.A{
				bson.M{"a": bson.M{"$lt": 1}},
				bson.M{"b": bson.M{"$exists": true}},
			}},
		},
		{name: "custom operator", filter: ptr(cond("a", "is_even", nil)), wantErr: true},
		{name: "bad path", filter: ptr(cond("a..b", query.ComparisonOperatorEq, 1)), wantErr: true},
		{name: "empty group", filter: &query.QueryFilter{Group: &query.FilterGroup{Operator: query.LogicalOperatorAnd}}, wantErr: true},
		{name: "empty filter", filter: &query.QueryFilter{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterToBSON(tt.filter)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipelineToBSON(t *testing.T) {
	present := func(f string) bson.D {
		return bson.D{{Key: "$ne", Value: bson.A{bson.D{{Key: "$type", Value: "$" + f}}, "missing"}}}
	}
	guarded := func(f string) bson.D {
		return bson.D{{Key: "$cond", Value: bson.D{
			{Key: "if", Value: present(f)},
			{Key: "then", Value: "$" + f},
			{Key: "else", Value: "$$REMOVE"},
		}}}
	}

	t.Run("set unset and cond", func(t *testing.T) {
		got, err := PipelineToBSON(query.Pipeline{
			query.SetFields(
				query.Assign("product_type", query.Literal("ebook")),
				query.Assign("description", query.FieldRef("desc")),
			),
			query.UnsetFields("desc", "details"),
			query.ConditionalSet("authors",
				query.KindCheck{Field: "authors", Kind: schema.KindSequence},
				query.FieldRef("authors"),
				query.FieldRef("author"),
			),
		})
		require.NoError(t, err)
		want := mongo.Pipeline{
			{{Key: "$set", Value: bson.D{
				{Key: "product_type", Value: bson.D{{Key: "$literal", Value: "ebook"}}},
				{Key: "description", Value: guarded("desc")},
			}}},
			{{Key: "$unset", Value: bson.A{"desc", "details"}}},
			{{Key: "$set", Value: bson.D{{Key: "authors", Value: bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: bson.D{{Key: "$isArray", Value: "$authors"}}},
				{Key: "then", Value: guarded("authors")},
				{Key: "else", Value: guarded("author")},
			}}}}}}},
		}
		assert.Equal(t, want, got)
	})

	t.Run("missing and scalar checks", func(t *testing.T) {
		assert.Equal(t,
			bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$desc"}}, "missing"}}},
			kindPredicate(query.KindCheck{Field: "desc", Kind: schema.KindMissing}),
		)
		assert.Equal(t,
			bson.D{{Key: "$and", Value: bson.A{
				present("a"),
				bson.D{{Key: "$not", Value: bson.A{bson.D{{Key: "$isArray", Value: "$a"}}}}},
			}}},
			kindPredicate(query.KindCheck{Field: "a", Kind: schema.KindScalar}),
		)
	})

	t.Run("sequence drops missing items", func(t *testing.T) {
		got := expression(query.SequenceOf(query.FieldRef("author"), query.Literal("x")))
		assert.Equal(t, bson.D{{Key: "$concatArrays", Value: bson.A{
			bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: present("author")},
				{Key: "then", Value: bson.A{"$author"}},
				{Key: "else", Value: bson.A{}},
			}}},
			bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: true},
				{Key: "then", Value: bson.A{bson.D{{Key: "$literal", Value: "x"}}}},
				{Key: "else", Value: bson.A{}},
			}}},
		}}}, got)

		assert.Equal(t, bson.D{{Key: "$literal", Value: bson.A{}}}, expression(query.SequenceOf()))
		assert.Equal(t, true, presence(query.SequenceOf()))
	})

	t.Run("coalesce falls through to remove", func(t *testing.T) {
		got := expression(query.Coalesce(query.FieldRef("a"), query.FieldRef("b")))
		assert.Equal(t, bson.D{{Key: "$cond", Value: bson.D{
			{Key: "if", Value: present("a")},
			{Key: "then", Value: "$a"},
			{Key: "else", Value: bson.D{{Key: "$cond", Value: bson.D{
				{Key: "if", Value: present("b")},
				{Key: "then", Value: "$b"},
				{Key: "else", Value: "$$REMOVE"},
			}}}},
		}}}, got)

		got = expression(query.Coalesce(query.FieldRef("a"), query.Literal(0), query.FieldRef("b")))
		assert.Equal(t, bson.D{{Key: "$cond", Value: bson.D{
			{Key: "if", Value: present("a")},
			{Key: "then", Value: "$a"},
			{Key: "else", Value: bson.D{{Key: "$literal", Value: 0}}},
		}}}, got)
	})

	t.Run("invalid pipelines", func(t *testing.T) {
		_, err := PipelineToBSON(query.Pipeline{})
		assert.ErrorIs(t, err, query.ErrInvalidStage)
	})
}

func TestCheckIDUntouched(t *testing.T) {
	assert.NoError(t, checkIDUntouched(query.Pipeline{query.UnsetFields("desc")}))
	assert.ErrorIs(t, checkIDUntouched(query.Pipeline{
		query.SetFields(query.Assign("_id", query.Literal(1))),
	}), query.ErrInvalidStage)
	assert.ErrorIs(t, checkIDUntouched(query.Pipeline{query.UnsetFields("_id")}), query.ErrInvalidStage)
}

func TestToDocument(t *testing.T) {
	doc := toDocument(bson.M{
		"_id":     int32(1),
		"review":  bson.D{{Key: "stars", Value: int32(4)}},
		"authors": bson.A{"a", bson.M{"name": "b"}},
	})
	assert.Equal(t, schema.Document{
		"_id":     int32(1),
		"review":  map[string]any{"stars": int32(4)},
		"authors": []any{"a", map[string]any{"name": "b"}},
	}, doc)
}
