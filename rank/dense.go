// Package rank implements inference-time candidate ranking with a dense
// encoder: embed once, score by temperature-scaled dot product, keep the
// top k.
package rank

import (
	"context"
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	kgm3 "github.com/Mineru98/kg-m3-go"
	"github.com/Mineru98/kg-m3-go/utils"
)

// Serving defaults.
const (
	DefaultBatchSize = 256
	DefaultMaxLength = 8192
	DefaultTextField = "text"
	DefaultTopK      = 5
)

// EncodeScorer is the model surface the ranker needs: batched encoding
// plus similarity scoring. models.Dense and models.Replicated both
// satisfy it.
type EncodeScorer interface {
	kgm3.Encoder
	Score(queries, passages [][]float32) [][]float64
}

// Config controls batching and candidate handling.
type Config struct {
	// BatchSize bounds how many texts are tokenized and encoded per
	// pass; <= 0 selects DefaultBatchSize.
	BatchSize int
	// MaxLength truncates tokenized rows; <= 0 selects DefaultMaxLength.
	MaxLength int
	// TextField names the document field to embed during reranking;
	// empty selects DefaultTextField.
	TextField string
	// CacheSize caps the embedding cache entry count; <= 0 disables
	// caching.
	CacheSize int
}

// Ranker embeds texts and ranks candidates against a query. Embedding is
// deterministic for a fixed model, which is what makes the cache safe.
type Ranker struct {
	model EncodeScorer
	tok   kgm3.Tokenizer
	cfg   Config
	cache *lru.Cache[string, []float32]
}

// New builds a ranker around an encoder and its tokenizer.
func New(model EncodeScorer, tok kgm3.Tokenizer, cfg Config) (*Ranker, error) {
	if model == nil {
		return nil, fmt.Errorf("rank: model is required")
	}
	if tok == nil {
		return nil, fmt.Errorf("rank: tokenizer is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.TextField == "" {
		cfg.TextField = DefaultTextField
	}

	r := &Ranker{model: model, tok: tok, cfg: cfg}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("rank: building embedding cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Embed returns one embedding per text, in input order. Cached rows are
// served without touching the model; the rest are tokenized and encoded
// in batches of Config.BatchSize. An empty input returns (nil, nil).
func (r *Ranker) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	missing := make([]int, 0, len(texts))
	for i, text := range texts {
		if r.cache != nil {
			if row, ok := r.cache.Get(cacheKey(text)); ok {
				out[i] = copyRow(row)
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for i, idx := range missing {
		pending[i] = texts[idx]
	}

	rows, err := utils.BatchProcess(pending, r.cfg.BatchSize, func(batch []string) ([][]float32, error) {
		features, err := r.tok.Tokenize(batch, r.cfg.MaxLength)
		if err != nil {
			return nil, fmt.Errorf("tokenization failed: %w", err)
		}
		embedded, err := r.model.Encode(ctx, features, 0)
		if err != nil {
			return nil, fmt.Errorf("encoding failed: %w", err)
		}
		return embedded, nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) != len(pending) {
		return nil, fmt.Errorf("encoder returned %d rows for %d texts: %w",
			len(rows), len(pending), kgm3.ErrShapeMismatch)
	}

	for i, idx := range missing {
		out[idx] = rows[i]
		if r.cache != nil {
			r.cache.Add(cacheKey(texts[idx]), copyRow(rows[i]))
		}
	}
	return out, nil
}

// EmbedOne embeds a single text.
func (r *Ranker) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	rows, err := r.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// SelectTopK scores the query against every text and returns the top-k
// original indices with their scores, best first. k is clamped to the
// text count; k <= 0 or no texts returns empty results.
func (r *Ranker) SelectTopK(ctx context.Context, query string, texts []string, k int) ([]int, []float64, error) {
	if k <= 0 || len(texts) == 0 {
		return nil, nil, nil
	}

	queryRow, err := r.EmbedOne(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding query: %w", err)
	}
	docRows, err := r.Embed(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding candidates: %w", err)
	}

	scores := r.model.Score([][]float32{queryRow}, docRows)[0]
	indices, top := utils.TopK(scores, k)
	return indices, top, nil
}

// Rerank orders candidate documents by similarity to the query and keeps
// the best k, preserving every document field. k <= 0 selects
// DefaultTopK; no candidates returns an empty result.
func (r *Ranker) Rerank(ctx context.Context, query string, candidates []kgm3.Document, k int) ([]kgm3.SearchResult, error) {
	if len(candidates) == 0 {
		return []kgm3.SearchResult{}, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	texts := make([]string, len(candidates))
	for i, doc := range candidates {
		texts[i] = doc[r.cfg.TextField]
	}

	indices, scores, err := r.SelectTopK(ctx, query, texts, k)
	if err != nil {
		return nil, err
	}

	results := make([]kgm3.SearchResult, len(indices))
	for i, idx := range indices {
		results[i] = kgm3.SearchResult{Document: candidates[idx], Score: scores[i]}
	}
	return results, nil
}

// cacheKey digests the text so long inputs do not bloat the cache.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return string(sum[:])
}

func copyRow(row []float32) []float32 {
	out := make([]float32, len(row))
	copy(out, row)
	return out
}
