package retrieve

import (
	"context"
	"fmt"

	kgm3 "github.com/Mineru98/kg-m3-go"
	"github.com/Mineru98/kg-m3-go/models"
	"github.com/Mineru98/kg-m3-go/utils"
)

var _ kgm3.Retriever = (*Dense)(nil)

// Embedder produces one embedding per text, in input order. rank.Ranker
// satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DenseConfig controls which document fields are embedded.
type DenseConfig struct {
	On []string
}

// Dense is an exhaustive in-memory dense retriever: every document
// embedding is kept in a flat slice and scored against the query by dot
// product. Suited to collections that fit comfortably in memory; larger
// corpora belong in PgVector.
type Dense struct {
	embedder  Embedder
	on        []string
	documents []kgm3.Document
	rows      [][]float32
}

// NewDense builds an empty index around an embedder.
func NewDense(embedder Embedder, cfg DenseConfig) (*Dense, error) {
	if embedder == nil {
		return nil, fmt.Errorf("dense retriever: embedder is required")
	}
	if len(cfg.On) == 0 {
		return nil, fmt.Errorf("dense retriever: at least one document field is required")
	}
	return &Dense{embedder: embedder, on: cfg.On}, nil
}

// Index replaces the index with the given collection.
func (d *Dense) Index(ctx context.Context, documents []kgm3.Document) error {
	if len(documents) == 0 {
		return fmt.Errorf("dense retriever: no documents to index")
	}

	contents := make([]string, len(documents))
	for i, doc := range documents {
		contents[i] = joinFields(doc, d.on)
	}

	rows, err := d.embedder.Embed(ctx, contents)
	if err != nil {
		return fmt.Errorf("embedding documents: %w", err)
	}
	if len(rows) != len(documents) {
		return fmt.Errorf("embedder returned %d rows for %d documents: %w",
			len(rows), len(documents), kgm3.ErrShapeMismatch)
	}

	docs := make([]kgm3.Document, len(documents))
	copy(docs, documents)
	d.documents = docs
	d.rows = rows
	return nil
}

// Search returns the k nearest documents by dot product, best first.
func (d *Dense) Search(ctx context.Context, query string, k int) ([]kgm3.SearchResult, error) {
	if len(d.rows) == 0 {
		return nil, fmt.Errorf("dense retriever: index documents before searching")
	}
	if k <= 0 {
		return []kgm3.SearchResult{}, nil
	}

	queryRows, err := d.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scores := models.Similarity(queryRows, d.rows)[0]
	indices, top := utils.TopK(scores, k)

	results := make([]kgm3.SearchResult, len(indices))
	for i, idx := range indices {
		results[i] = kgm3.SearchResult{Document: d.documents[idx], Score: top[i]}
	}
	return results, nil
}
