package retrieve

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kgm3 "github.com/Mineru98/kg-m3-go"
)

func TestNewPgVectorValidation(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{}

	_, err := NewPgVector(ctx, "", nil, PgVectorConfig{On: []string{"text"}, Dimensions: 3}, nil)
	assert.Error(t, err)

	_, err = NewPgVector(ctx, "", embedder, PgVectorConfig{Dimensions: 3}, nil)
	assert.Error(t, err)

	_, err = NewPgVector(ctx, "", embedder, PgVectorConfig{On: []string{"text"}}, nil)
	assert.Error(t, err)
}

// pgTestDSN returns the test database DSN from the environment, or skips
// the test when KGM3_TEST_POSTGRES_DSN is not set.
func pgTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("KGM3_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KGM3_TEST_POSTGRES_DSN not set, skipping Postgres integration tests")
	}
	return dsn
}

// newTestPgVector drops any leftover table and opens a fresh store backed
// by a fixed-vector embedder.
func newTestPgVector(t *testing.T) (*PgVector, *fakeEmbedder) {
	t.Helper()
	dsn := pgTestDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "DROP TABLE IF EXISTS kgm3_documents")
	pool.Close()
	require.NoError(t, err)

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"alpha":   {1, 0, 0},
		"beta":    {0, 1, 0},
		"gamma":   {0.6, 0.8, 0},
		"delta":   {0, 0, 1},
		"epsilon": {0, 1, 0},
		"q":       {1, 0, 0},
		"q2":      {0, 0, 1},
	}}
	store, err := NewPgVector(ctx, dsn, embedder, PgVectorConfig{
		On:         []string{"text"},
		Dimensions: 3,
		BatchSize:  2,
	}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, embedder
}

func TestPgVectorIndexAndSearch(t *testing.T) {
	store, _ := newTestPgVector(t)
	ctx := context.Background()

	docs := []kgm3.Document{
		{"id": "a", "text": "alpha", "lang": "en"},
		{"id": "b", "text": "beta"},
		{"id": "g", "text": "gamma"},
	}
	require.NoError(t, store.Index(ctx, docs))

	results, err := store.Search(ctx, "q", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, docs[0], results[0].Document)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, docs[2], results[1].Document)
	assert.InDelta(t, 0.6, results[1].Score, 1e-5)

	// k beyond the corpus returns everything.
	all, err := store.Search(ctx, "q", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPgVectorUpsertReplaces(t *testing.T) {
	store, _ := newTestPgVector(t)
	ctx := context.Background()

	require.NoError(t, store.Index(ctx, []kgm3.Document{
		{"id": "a", "text": "alpha"},
		{"id": "b", "text": "beta"},
	}))
	require.NoError(t, store.Index(ctx, []kgm3.Document{
		{"id": "a", "text": "delta"},
	}))

	all, err := store.Search(ctx, "q2", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "delta", all[0].Document["text"])
	assert.InDelta(t, 1.0, all[0].Score, 1e-5)
}

func TestPgVectorMissingKey(t *testing.T) {
	store, _ := newTestPgVector(t)
	ctx := context.Background()

	require.NoError(t, store.Index(ctx, []kgm3.Document{
		{"id": "a", "text": "alpha"},
		{"text": "epsilon"},
	}))

	all, err := store.Search(ctx, "q", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)

	var found bool
	for _, r := range all {
		if r.Document["text"] == "epsilon" {
			found = true
			assert.NotContains(t, r.Document, "id")
		}
	}
	assert.True(t, found, "document without a key field should still be indexed")
}

func TestPgVectorSearchEdgeCases(t *testing.T) {
	store, embedder := newTestPgVector(t)
	ctx := context.Background()

	assert.Error(t, store.Index(ctx, nil))

	require.NoError(t, store.Index(ctx, []kgm3.Document{{"id": "a", "text": "alpha"}}))

	results, err := store.Search(ctx, "q", 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	embedder.err = assert.AnError
	_, err = store.Search(ctx, "q", 2)
	assert.ErrorIs(t, err, assert.AnError)
}
