package tokenizer

import "strings"

// Analyzer names for CharNGram.
const (
	// AnalyzerChar slides over the raw text, whitespace included.
	AnalyzerChar = "char"
	// AnalyzerCharWB n-grams each whitespace-delimited word padded with
	// a boundary space on both sides.
	AnalyzerCharWB = "char_wb"
)

// CharNGram splits text into character n-grams of lengths MinN..MaxN.
// It carries the fitted vocabulary used by the sparse retrievers.
type CharNGram struct {
	MinN       int
	MaxN       int
	Analyzer   string
	Lowercase  bool
	Vocabulary map[string]int
}

// NewCharNGram returns a lowercasing n-gram analyzer with an empty
// vocabulary.
func NewCharNGram(minN, maxN int, analyzer string) *CharNGram {
	return &CharNGram{
		MinN:       minN,
		MaxN:       maxN,
		Analyzer:   analyzer,
		Lowercase:  true,
		Vocabulary: make(map[string]int),
	}
}

// Tokenize converts text into n-gram tokens.
func (t *CharNGram) Tokenize(text string) []string {
	if t.Lowercase {
		text = strings.ToLower(text)
	}
	if t.Analyzer != AnalyzerCharWB {
		return t.ngrams(text)
	}

	var tokens []string
	for _, word := range strings.Fields(text) {
		tokens = append(tokens, t.ngrams(" "+word+" ")...)
	}
	return tokens
}

func (t *CharNGram) ngrams(text string) []string {
	runes := []rune(text)
	var out []string
	for n := t.MinN; n <= t.MaxN; n++ {
		for i := 0; i+n <= len(runes); i++ {
			out = append(out, string(runes[i:i+n]))
		}
	}
	return out
}

// FitVocabulary assigns ids to every n-gram seen in texts, in first-seen
// order. Refitting replaces the vocabulary.
func (t *CharNGram) FitVocabulary(texts []string) {
	t.Vocabulary = make(map[string]int)
	for _, text := range texts {
		for _, token := range t.Tokenize(text) {
			if _, ok := t.Vocabulary[token]; !ok {
				t.Vocabulary[token] = len(t.Vocabulary)
			}
		}
	}
}

// Transform counts the known n-grams of text by vocabulary id. Tokens
// outside the fitted vocabulary are dropped.
func (t *CharNGram) Transform(text string) map[int]float64 {
	counts := make(map[int]float64)
	for _, token := range t.Tokenize(text) {
		if idx, ok := t.Vocabulary[token]; ok {
			counts[idx]++
		}
	}
	return counts
}

// VocabularySize returns the number of fitted n-grams.
func (t *CharNGram) VocabularySize() int {
	return len(t.Vocabulary)
}
