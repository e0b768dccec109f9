package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/asaidimu/go-bookstore/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_SQLiteWorkflow(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CATALOG_LOG_LEVEL", "error")
	store := []string{"--backend", "sqlite", "--db", filepath.Join(t.TempDir(), "bookstore.db")}
	run := func(args ...string) string {
		t.Helper()
		out, err := execute(t, append(append([]string{}, store...), args...)...)
		require.NoError(t, err, out)
		return out
	}

	assert.Equal(t, "seeded 3 products and 2 reviews\n", run("seed"))

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(run("normalize", "--json")), &results))
	require.Len(t, results, 3)
	assert.Equal(t, "audiobook", results[2]["type"])
	assert.Equal(t, float64(4), results[2]["modifiedCount"])

	// A second run finds nothing left to change.
	require.NoError(t, json.Unmarshal([]byte(run("normalize", "--json", "--id", "2", "--type", "ebook")), &results))
	require.Len(t, results, 1)
	assert.Equal(t, float64(1), results[0]["matchedCount"])
	assert.Equal(t, float64(0), results[0]["modifiedCount"])

	var embedded map[string]any
	require.NoError(t, json.Unmarshal([]byte(run("embed-reviews", "--json")), &embedded))
	assert.Equal(t, float64(2), embedded["matchedCount"])

	var rollup []map[string]any
	require.NoError(t, json.Unmarshal([]byte(run("rollup", "products", "--json")), &rollup))
	require.Len(t, rollup, 3)
	assert.Equal(t, "book", rollup[1]["_id"])
	assert.Equal(t, float64(3), rollup[1]["averageNumberOfAuthors"])

	var products []schema.Product
	require.NoError(t, json.Unmarshal([]byte(run("show", "products", "--typed", "--json")), &products))
	require.Len(t, products, 3)
	for _, p := range products {
		assert.True(t, p.ProductType.Valid())
		assert.NotEmpty(t, p.Authors)
		assert.NotEmpty(t, p.Description)
	}

	var reviews []schema.Review
	require.NoError(t, json.Unmarshal([]byte(run("show", "reviews", "--typed", "--json")), &reviews))
	require.Len(t, reviews, 2)
	assert.Equal(t, schema.ProductTypeBook, reviews[0].Product.ProductType)
}

func TestCLI_Errors(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CATALOG_LOG_LEVEL", "error")

	_, err := execute(t, "--backend", "memory", "show", "users")
	assert.Error(t, err)

	_, err = execute(t, "--backend", "memory", "normalize", "--id", "1")
	assert.Error(t, err)

	_, err = execute(t, "--backend", "memory", "normalize", "--id", "1", "--type", "vinyl")
	assert.Error(t, err)

	_, err = execute(t, "--backend", "cassandra", "seed")
	assert.Error(t, err)

	out, err := execute(t, "--backend", "memory", "rollup", "reviews")
	require.NoError(t, err)
	assert.Empty(t, out, "an empty store has no buckets")
}

func TestParseID(t *testing.T) {
	assert.Equal(t, float64(1), parseID("1"))
	assert.Equal(t, "abc", parseID("abc"))
	assert.Equal(t, "x", parseID(`"x"`))
	assert.Equal(t, "[1]", parseID("[1]"))
}

func TestCLI_MemoryBackendIsPerProcess(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CATALOG_LOG_LEVEL", "error")

	assert.Contains(t, newRootCmd().PersistentFlags().Lookup("backend").Usage, "discarded when the command exits")

	_, err := execute(t, "--backend", "memory", "seed")
	require.NoError(t, err)

	out, err := execute(t, "--backend", "memory", "show", "products", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out, "a new process starts from an empty store")
}
