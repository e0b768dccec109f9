package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func seeded(t *testing.T) *MemoryInteractor {
	t.Helper()
	m := NewMemoryInteractor(zaptest.NewLogger(t))
	_, err := m.InsertDocuments(context.Background(), "books", []schema.Document{
		{"_id": 1, "title": "MongoDB, The Definitive Guide", "details": "A book"},
		{"_id": 2, "title": "MongoDB Applied Design Patterns", "desc": "An ebook", "authors": "Rick Copeland"},
	})
	require.NoError(t, err)
	return m
}

func TestMemoryInteractor_InsertAndSelect(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	exists, err := m.CollectionExists(ctx, "books")
	require.NoError(t, err)
	assert.True(t, exists)

	rows, err := m.SelectDocuments(ctx, "books", nil, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0]["_id"])

	rows, err = m.SelectDocuments(ctx, "books", query.ByID(float64(2)), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Rick Copeland", rows[0]["authors"])

	rows, err = m.SelectDocuments(ctx, "books", nil, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = m.SelectDocuments(ctx, "missing", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryInteractor_Isolation(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	rows, err := m.SelectDocuments(ctx, "books", query.ByID(1), 0)
	require.NoError(t, err)
	rows[0]["title"] = "changed"

	rows, err = m.SelectDocuments(ctx, "books", query.ByID(1), 0)
	require.NoError(t, err)
	assert.Equal(t, "MongoDB, The Definitive Guide", rows[0]["title"])
}

func TestMemoryInteractor_InsertRules(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	_, err := m.InsertDocuments(ctx, "books", []schema.Document{{"_id": float64(1)}})
	assert.ErrorContains(t, err, "duplicate identifier")

	inserted, err := m.InsertDocuments(ctx, "books", []schema.Document{{"title": "no id"}})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	id, ok := inserted[0].ID()
	assert.True(t, ok)
	assert.NotEmpty(t, id)
}

func TestMemoryInteractor_UpdateDocument(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	rename := query.Pipeline{
		query.ConditionalSet("description",
			query.KindCheck{Field: "details", Kind: schema.KindMissing},
			query.FieldRef("description"),
			query.FieldRef("details"),
		),
		query.UnsetFields("details"),
	}

	result, err := m.UpdateDocument(ctx, "books", query.ByID(1), rename)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.MatchedCount)
	assert.Equal(t, int64(1), result.ModifiedCount)

	result, err = m.UpdateDocument(ctx, "books", query.ByID(1), rename)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.MatchedCount)
	assert.Equal(t, int64(0), result.ModifiedCount)

	rows, err := m.SelectDocuments(ctx, "books", query.ByID(1), 0)
	require.NoError(t, err)
	b, err := json.Marshal(rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":1,"title":"MongoDB, The Definitive Guide","description":"A book"}`, string(b))

	result, err = m.UpdateDocument(ctx, "books", query.ByID(99), rename)
	require.NoError(t, err)
	assert.Zero(t, result.MatchedCount)

	_, err = m.UpdateDocument(ctx, "books", query.ByID(1), query.Pipeline{
		query.SetFields(query.Assign("_id", query.Literal(7))),
	})
	assert.ErrorIs(t, err, query.ErrInvalidStage)
}

func TestMemoryInteractor_DropAndContext(t *testing.T) {
	m := seeded(t)
	require.NoError(t, m.DropCollection(context.Background(), "books"))
	exists, err := m.CollectionExists(context.Background(), "books")
	require.NoError(t, err)
	assert.False(t, exists)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.SelectDocuments(ctx, "books", nil, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, m.Close(context.Background()))
}
