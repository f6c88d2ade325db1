package retrieve

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kgm3 "github.com/Mineru98/kg-m3-go"
)

// fakeEmbedder serves fixed vectors keyed by the exact text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	short   bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", text)
		}
		out = append(out, vec)
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func newTestDenseRetriever(t *testing.T) (*Dense, *fakeEmbedder) {
	t.Helper()
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {0, 1},
		"gamma": {0.5, 0.5},
		"q":     {1, 0},
	}}
	d, err := NewDense(embedder, DenseConfig{On: []string{"text"}})
	require.NoError(t, err)
	return d, embedder
}

func denseDocs() []kgm3.Document {
	return []kgm3.Document{
		{"id": "a", "text": "alpha", "lang": "en"},
		{"id": "b", "text": "beta"},
		{"id": "g", "text": "gamma"},
	}
}

func TestNewDenseValidation(t *testing.T) {
	_, err := NewDense(nil, DenseConfig{On: []string{"text"}})
	assert.Error(t, err)

	_, err = NewDense(&fakeEmbedder{}, DenseConfig{})
	assert.Error(t, err)
}

func TestDenseSearch(t *testing.T) {
	d, _ := newTestDenseRetriever(t)
	require.NoError(t, d.Index(context.Background(), denseDocs()))

	results, err := d.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, denseDocs()[0], results[0].Document)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, denseDocs()[2], results[1].Document)
	assert.Equal(t, 0.5, results[1].Score)
}

func TestDenseSearchBeforeIndex(t *testing.T) {
	d, _ := newTestDenseRetriever(t)
	_, err := d.Search(context.Background(), "q", 2)
	assert.Error(t, err)
}

func TestDenseIndexEmpty(t *testing.T) {
	d, _ := newTestDenseRetriever(t)
	assert.Error(t, d.Index(context.Background(), nil))
}

func TestDenseKBounds(t *testing.T) {
	d, _ := newTestDenseRetriever(t)
	require.NoError(t, d.Index(context.Background(), denseDocs()))

	results, err := d.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = d.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDenseEmbedderFailures(t *testing.T) {
	d, embedder := newTestDenseRetriever(t)

	embedder.err = assert.AnError
	assert.ErrorIs(t, d.Index(context.Background(), denseDocs()), assert.AnError)

	embedder.err = nil
	embedder.short = true
	assert.ErrorIs(t, d.Index(context.Background(), denseDocs()), kgm3.ErrShapeMismatch)

	embedder.short = false
	require.NoError(t, d.Index(context.Background(), denseDocs()))
	embedder.err = assert.AnError
	_, err := d.Search(context.Background(), "q", 2)
	assert.ErrorIs(t, err, assert.AnError)
}
