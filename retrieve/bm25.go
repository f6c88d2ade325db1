package retrieve

import (
	"context"
	"fmt"
	"math"

	kgm3 "github.com/Mineru98/kg-m3-go"
	"github.com/Mineru98/kg-m3-go/tokenizer"
	"github.com/Mineru98/kg-m3-go/utils"
)

var _ kgm3.Retriever = (*BM25)(nil)

// SparseVector maps feature ids to weights.
type SparseVector map[int]float64

// BM25Config controls the analyzer and the Okapi BM25 parameters.
type BM25Config struct {
	// On names the document fields to match against.
	On []string
	// MinN and MaxN bound the character n-gram lengths; <= 0 selects
	// DefaultMinN/DefaultMaxN.
	MinN int
	MaxN int
	// Analyzer is tokenizer.AnalyzerChar or tokenizer.AnalyzerCharWB;
	// empty selects char_wb.
	Analyzer string
	// K1 saturates term frequency; <= 0 selects DefaultK1.
	K1 float64
	// B controls length normalization; <= 0 selects DefaultB.
	B float64
	// Epsilon is added to every term weight before the IDF factor.
	Epsilon float64
}

// BM25 is an in-memory BM25 retriever over character n-grams. Documents
// are held as a transposed sparse matrix, one L2-normalized weight
// column per n-gram, so a search only touches the query's features.
type BM25 struct {
	cfg       BM25Config
	ngram     *tokenizer.CharNGram
	documents []kgm3.Document
	matrix    []SparseVector // transposed: [feature][doc] -> weight
	lengths   []float64
	fitted    bool
}

// NewBM25 builds an unfitted retriever; Index fits it.
func NewBM25(cfg BM25Config) (*BM25, error) {
	if len(cfg.On) == 0 {
		return nil, fmt.Errorf("bm25: at least one document field is required")
	}
	if cfg.MinN <= 0 {
		cfg.MinN = DefaultMinN
	}
	if cfg.MaxN <= 0 {
		cfg.MaxN = DefaultMaxN
	}
	if cfg.MaxN < cfg.MinN {
		return nil, fmt.Errorf("bm25: n-gram range [%d, %d] is inverted", cfg.MinN, cfg.MaxN)
	}
	if cfg.Analyzer == "" {
		cfg.Analyzer = tokenizer.AnalyzerCharWB
	}
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultK1
	}
	if cfg.B <= 0 {
		cfg.B = DefaultB
	}
	return &BM25{cfg: cfg}, nil
}

// Index replaces the whole index: the vocabulary is refitted on the new
// collection and every document is reweighted against it.
func (bm *BM25) Index(_ context.Context, documents []kgm3.Document) error {
	if len(documents) == 0 {
		return fmt.Errorf("bm25: no documents to index")
	}

	contents := make([]string, len(documents))
	for i, doc := range documents {
		contents[i] = joinFields(doc, bm.cfg.On)
	}

	bm.ngram = tokenizer.NewCharNGram(bm.cfg.MinN, bm.cfg.MaxN, bm.cfg.Analyzer)
	bm.ngram.FitVocabulary(contents)

	bm.documents = make([]kgm3.Document, len(documents))
	copy(bm.documents, documents)

	// Raw term frequencies, transposed.
	bm.matrix = make([]SparseVector, bm.ngram.VocabularySize())
	for i := range bm.matrix {
		bm.matrix[i] = make(SparseVector)
	}
	bm.lengths = make([]float64, len(documents))

	var totalLen float64
	for docIdx, content := range contents {
		var docLen float64
		for featureIdx, count := range bm.ngram.Transform(content) {
			bm.matrix[featureIdx][docIdx] = count
			docLen += count
		}
		bm.lengths[docIdx] = docLen
		totalLen += docLen
	}
	avgLen := totalLen / float64(len(documents))
	if avgLen == 0 {
		avgLen = 1
	}

	for featureIdx, column := range bm.matrix {
		df := len(column)
		if df == 0 {
			continue
		}
		idf := math.Log((float64(len(documents))-float64(df)+0.5)/(float64(df)+0.5) + 1)
		for docIdx, tf := range column {
			norm := bm.cfg.K1 * (1 - bm.cfg.B + bm.cfg.B*(bm.lengths[docIdx]/avgLen))
			bm.matrix[featureIdx][docIdx] = ((tf*(bm.cfg.K1+1))/(tf+norm) + bm.cfg.Epsilon) * idf
		}
	}

	bm.normalizeDocuments()
	bm.fitted = true
	return nil
}

func (bm *BM25) normalizeDocuments() {
	norms := make([]float64, len(bm.documents))
	for _, column := range bm.matrix {
		for docIdx, value := range column {
			norms[docIdx] += value * value
		}
	}
	for i, norm := range norms {
		if norm > 0 {
			norms[i] = math.Sqrt(norm)
		} else {
			norms[i] = 1
		}
	}
	for _, column := range bm.matrix {
		for docIdx := range column {
			column[docIdx] /= norms[docIdx]
		}
	}
}

// Search returns the k best-scoring documents, best first. Documents
// sharing no n-gram with the query are left out even when fewer than k
// match.
func (bm *BM25) Search(_ context.Context, query string, k int) ([]kgm3.SearchResult, error) {
	if !bm.fitted {
		return nil, fmt.Errorf("bm25: index documents before searching")
	}
	if k <= 0 {
		return []kgm3.SearchResult{}, nil
	}

	scores := make([]float64, len(bm.documents))
	for featureIdx, queryValue := range bm.ngram.Transform(query) {
		for docIdx, docValue := range bm.matrix[featureIdx] {
			scores[docIdx] += queryValue * docValue
		}
	}

	indices, top := utils.TopK(scores, k)
	results := make([]kgm3.SearchResult, 0, len(indices))
	for i, idx := range indices {
		if top[i] <= 0 {
			continue
		}
		results = append(results, kgm3.SearchResult{Document: bm.documents[idx], Score: top[i]})
	}
	return results, nil
}
