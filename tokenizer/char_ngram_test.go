package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharNGramCharAnalyzer(t *testing.T) {
	ngram := NewCharNGram(2, 2, AnalyzerChar)

	// The char analyzer keeps whitespace inside the n-grams.
	tokens := ngram.Tokenize("ab cd")
	assert.Equal(t, []string{"ab", "b ", " c", "cd"}, tokens)
}

func TestCharNGramCharWBAnalyzer(t *testing.T) {
	ngram := NewCharNGram(2, 2, AnalyzerCharWB)

	// Each word is padded with boundary spaces before n-gramming.
	tokens := ngram.Tokenize("ab cd")
	assert.Equal(t, []string{" a", "ab", "b ", " c", "cd", "d "}, tokens)
}

func TestCharNGramSizeRange(t *testing.T) {
	ngram := NewCharNGram(1, 2, AnalyzerChar)

	tokens := ngram.Tokenize("abc")
	assert.Equal(t, []string{"a", "b", "c", "ab", "bc"}, tokens)
}

func TestCharNGramLowercases(t *testing.T) {
	ngram := NewCharNGram(2, 2, AnalyzerChar)
	assert.Equal(t, ngram.Tokenize("abc"), ngram.Tokenize("ABC"))

	ngram.Lowercase = false
	assert.Equal(t, []string{"AB", "BC"}, ngram.Tokenize("ABC"))
}

func TestCharNGramMultibyte(t *testing.T) {
	ngram := NewCharNGram(2, 2, AnalyzerChar)

	// N-grams count runes, not bytes.
	tokens := ngram.Tokenize("héllo")
	assert.Equal(t, []string{"hé", "él", "ll", "lo"}, tokens)
}

func TestCharNGramVocabulary(t *testing.T) {
	ngram := NewCharNGram(2, 2, AnalyzerChar)
	ngram.FitVocabulary([]string{"abab", "bc"})

	// First-seen order: ab, ba, bc.
	require.Equal(t, 3, ngram.VocabularySize())
	assert.Equal(t, 0, ngram.Vocabulary["ab"])
	assert.Equal(t, 1, ngram.Vocabulary["ba"])
	assert.Equal(t, 2, ngram.Vocabulary["bc"])

	counts := ngram.Transform("abab")
	assert.Equal(t, map[int]float64{0: 2, 1: 1}, counts)

	// Unfitted n-grams are dropped.
	counts = ngram.Transform("xyab")
	assert.Equal(t, map[int]float64{0: 1}, counts)

	// Refitting replaces the vocabulary.
	ngram.FitVocabulary([]string{"zz"})
	require.Equal(t, 1, ngram.VocabularySize())
	assert.Empty(t, ngram.Transform("abab"))
}
