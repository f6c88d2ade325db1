// Package models implements the dense embedding encoder and its scoring
// functions, plus the ONNX Runtime backbone adapter and a replicated
// serving decorator.
package models

import (
	"context"
	"fmt"

	kgm3 "github.com/Mineru98/kg-m3-go"
	"github.com/Mineru98/kg-m3-go/utils"
)

var _ kgm3.Encoder = (*Dense)(nil)

// DenseConfig is fixed at construction and never mutated afterwards.
type DenseConfig struct {
	// Normalize L2-normalizes every embedding.
	Normalize bool
	// Temperature divides similarity scores before they are used as
	// logits. Zero selects 1.0. Whenever Normalize is false the
	// temperature is forced to 1.0: scaling is only meaningful on the
	// unit-norm manifold.
	Temperature float64
}

// Dense pools transformer hidden states into one embedding per input and
// scores query/passage pairs by temperature-scaled dot product.
type Dense struct {
	backbone kgm3.Backbone
	cfg      DenseConfig
}

// NewDense wraps a backbone with pooling, normalization, and scoring.
func NewDense(backbone kgm3.Backbone, cfg DenseConfig) (*Dense, error) {
	if backbone == nil {
		return nil, fmt.Errorf("dense: backbone is required")
	}
	if cfg.Temperature < 0 {
		return nil, fmt.Errorf("dense: temperature must not be negative, got %v", cfg.Temperature)
	}
	if cfg.Temperature == 0 || !cfg.Normalize {
		cfg.Temperature = 1.0
	}
	return &Dense{backbone: backbone, cfg: cfg}, nil
}

// Config returns the encoder configuration.
func (m *Dense) Config() DenseConfig {
	return m.cfg
}

// Encode embeds every row of features. A nil or empty batch returns
// (nil, nil). With subBatch > 0 the batch is processed in contiguous
// chunks of that size; the result is identical to a single pass, chunking
// only bounds peak memory. A failing chunk aborts the whole call.
func (m *Dense) Encode(ctx context.Context, features kgm3.FeatureBatch, subBatch int) ([][]float32, error) {
	n := features.BatchSize()
	if n == 0 {
		return nil, nil
	}
	if subBatch <= 0 || subBatch >= n {
		return m.encode(ctx, features)
	}

	out := make([][]float32, 0, n)
	for lo := 0; lo < n; lo += subBatch {
		hi := lo + subBatch
		if hi > n {
			hi = n
		}
		rows, err := m.encode(ctx, features.Slice(lo, hi))
		if err != nil {
			return nil, fmt.Errorf("encoding rows [%d:%d): %w", lo, hi, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// encode is one backbone pass: first-position pooling plus optional L2
// normalization. Every row is freshly allocated.
func (m *Dense) encode(ctx context.Context, features kgm3.FeatureBatch) ([][]float32, error) {
	hidden, err := m.backbone.Forward(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("model inference failed: %w", err)
	}

	out := make([][]float32, len(hidden))
	for i, states := range hidden {
		if len(states) == 0 {
			return nil, fmt.Errorf("row %d has no sequence positions: %w", i, kgm3.ErrShapeMismatch)
		}
		row := make([]float32, len(states[0]))
		copy(row, states[0])
		if m.cfg.Normalize {
			row = utils.Normalize(row)
		}
		out[i] = row
	}
	return out, nil
}

// EncodeGrouped embeds a flattened grouped batch laid out row-major
// (row = entity*groupSize + member, member 0 the positive) and restacks
// the result to [entities][groupSize][dim]. The flatten/encode/restack
// form keeps sub-batching equivalence across the group axis.
func (m *Dense) EncodeGrouped(ctx context.Context, features kgm3.FeatureBatch, groupSize, subBatch int) ([][][]float32, error) {
	n := features.BatchSize()
	if n == 0 {
		return nil, nil
	}
	if groupSize <= 0 {
		return nil, fmt.Errorf("group size %d must be positive: %w", groupSize, kgm3.ErrShapeMismatch)
	}
	if n%groupSize != 0 {
		return nil, fmt.Errorf("batch of %d rows does not divide into groups of %d: %w", n, groupSize, kgm3.ErrShapeMismatch)
	}

	flat, err := m.Encode(ctx, features, subBatch)
	if err != nil {
		return nil, err
	}

	grouped := make([][][]float32, n/groupSize)
	for i := range grouped {
		grouped[i] = flat[i*groupSize : (i+1)*groupSize]
	}
	return grouped, nil
}

// Score divides the query/passage similarity matrix by the temperature.
// The result is already shaped [len(queries)][len(passages)], ready to be
// used as classification logits.
func (m *Dense) Score(queries, passages [][]float32) [][]float64 {
	return scale(Similarity(queries, passages), m.cfg.Temperature)
}

// ScorePaired is Score over per-query candidate sets.
func (m *Dense) ScorePaired(queries [][]float32, passages [][][]float32) [][]float64 {
	return scale(SimilarityPaired(queries, passages), m.cfg.Temperature)
}

func scale(scores [][]float64, temperature float64) [][]float64 {
	if temperature == 1.0 {
		return scores
	}
	for i := range scores {
		for j := range scores[i] {
			scores[i][j] /= temperature
		}
	}
	return scores
}

// Similarity computes the dense similarity matrix Q · Pᵗ.
// queries: [n_queries, dim], passages: [n_passages, dim].
// Returns [n_queries][n_passages].
func Similarity(queries, passages [][]float32) [][]float64 {
	scores := make([][]float64, len(queries))
	for i, q := range queries {
		row := make([]float64, len(passages))
		for j, p := range passages {
			row[j] = utils.Dot(q, p)
		}
		scores[i] = row
	}
	return scores
}

// SimilarityPaired scores each query against its own candidate set.
// queries: [batch, dim], passages: [batch, n, dim]. Returns [batch][n],
// row i holding Q_i · P_iᵗ.
func SimilarityPaired(queries [][]float32, passages [][][]float32) [][]float64 {
	if len(queries) != len(passages) {
		panic("queries and passages must have the same batch size")
	}

	scores := make([][]float64, len(queries))
	for i, q := range queries {
		row := make([]float64, len(passages[i]))
		for j, p := range passages[i] {
			row[j] = utils.Dot(q, p)
		}
		scores[i] = row
	}
	return scores
}
