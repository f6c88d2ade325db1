// Package kgm3 provides the shared types of the kg-m3 dense embedding
// library: documents, tokenized feature batches, and the capability
// interfaces the encoder core is built against.
package kgm3

import (
	"context"
	"errors"
)

// ErrShapeMismatch reports inputs whose dimensions violate an operation's
// contract: a passage batch that is not a multiple of the query batch,
// ragged negative groups, a grouped batch not divisible by its group size.
var ErrShapeMismatch = errors.New("shape mismatch")

// Feature field names produced by tokenizers and consumed by backbones.
const (
	FieldInputIDs      = "input_ids"
	FieldAttentionMask = "attention_mask"
)

// Document represents a searchable document with key-value fields
type Document map[string]string

// SearchResult represents a single search result with its relevance score
type SearchResult struct {
	Document Document
	Score    float64
}

// FeatureBatch holds tokenized model inputs as named integer fields.
// Every field shares the same leading batch dimension, and every row of a
// field shares the same sequence length. A nil or empty batch encodes to
// nothing.
type FeatureBatch map[string][][]int64

// BatchSize returns the shared leading dimension of the batch. The
// attention mask is authoritative when present.
func (f FeatureBatch) BatchSize() int {
	if rows, ok := f[FieldAttentionMask]; ok {
		return len(rows)
	}
	for _, rows := range f {
		return len(rows)
	}
	return 0
}

// Slice returns the sub-batch [lo, hi) across every field. Row storage is
// shared with the receiver.
func (f FeatureBatch) Slice(lo, hi int) FeatureBatch {
	out := make(FeatureBatch, len(f))
	for name, rows := range f {
		out[name] = rows[lo:hi]
	}
	return out
}

// Encoder produces one dense vector per batch row. A nil or empty feature
// batch yields (nil, nil). subBatch bounds how many rows go through the
// underlying model per pass; values <= 0 disable sub-batching. Splitting
// never changes the result, only the peak memory.
type Encoder interface {
	Encode(ctx context.Context, features FeatureBatch, subBatch int) ([][]float32, error)
}

// Backbone is the pretrained encoder capability. Forward returns the
// last-layer hidden states, one [seq_len][hidden_size] matrix per row.
// How the weights got there (quantization, adapters) is the
// implementation's business.
type Backbone interface {
	Forward(ctx context.Context, features FeatureBatch) ([][][]float32, error)
	Close() error
}

// Tokenizer converts raw texts into model features. Implementations
// truncate to maxLength and pad each call's batch independently, so two
// calls may produce different sequence lengths.
type Tokenizer interface {
	Tokenize(texts []string, maxLength int) (FeatureBatch, error)
}

// ParameterPersister saves model parameters under dir. Implementations
// must move parameters to host memory before writing.
type ParameterPersister interface {
	SaveParameters(dir string) error
}

// Retriever indexes documents and answers top-k searches.
type Retriever interface {
	Index(ctx context.Context, documents []Document) error
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)
}
