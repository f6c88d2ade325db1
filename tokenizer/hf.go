// Package tokenizer provides the HuggingFace tokenizer bridge used by
// the dense models and a pure-Go character n-gram analyzer for the
// sparse retrievers.
package tokenizer

import (
	"fmt"

	"github.com/daulet/tokenizers"

	kgm3 "github.com/Mineru98/kg-m3-go"
)

var _ kgm3.Tokenizer = (*HF)(nil)

// HFConfig selects model-family specifics of a HuggingFace tokenizer.
type HFConfig struct {
	// PadID fills rows up to the batch length. XLM-RoBERTa vocabularies
	// use 1, BERT vocabularies 0.
	PadID int64
}

// HF wraps a HuggingFace tokenizer.json file.
type HF struct {
	tokenizer *tokenizers.Tokenizer
	padID     int64
}

// NewHF loads a tokenizer.json file.
func NewHF(path string, cfg HFConfig) (*HF, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &HF{tokenizer: tk, padID: cfg.PadID}, nil
}

// Tokenize encodes texts with special tokens, truncates every row to
// maxLength ids, and pads to the longest row in the batch. The returned
// attention mask carries 1 over real tokens and 0 over padding.
func (t *HF) Tokenize(texts []string, maxLength int) (kgm3.FeatureBatch, error) {
	if maxLength <= 0 {
		return nil, fmt.Errorf("max length must be positive, got %d", maxLength)
	}

	rows := make([][]int64, len(texts))
	longest := 0
	for i, text := range texts {
		encoding := t.tokenizer.EncodeWithOptions(text, true)
		ids := encoding.IDs
		if len(ids) > maxLength {
			ids = ids[:maxLength]
		}
		row := make([]int64, len(ids))
		for j, id := range ids {
			row[j] = int64(id)
		}
		rows[i] = row
		if len(row) > longest {
			longest = len(row)
		}
	}

	inputIDs := make([][]int64, len(texts))
	attentionMask := make([][]int64, len(texts))
	for i, row := range rows {
		padded := make([]int64, longest)
		mask := make([]int64, longest)
		copy(padded, row)
		for j := len(row); j < longest; j++ {
			padded[j] = t.padID
		}
		for j := range row {
			mask[j] = 1
		}
		inputIDs[i] = padded
		attentionMask[i] = mask
	}

	return kgm3.FeatureBatch{
		kgm3.FieldInputIDs:      inputIDs,
		kgm3.FieldAttentionMask: attentionMask,
	}, nil
}

// VocabularySize returns the vocabulary size.
func (t *HF) VocabularySize() int {
	return int(t.tokenizer.VocabSize())
}

// Close releases the native tokenizer.
func (t *HF) Close() error {
	if t.tokenizer != nil {
		t.tokenizer.Close()
		t.tokenizer = nil
	}
	return nil
}
