package train

import (
	"fmt"

	kgm3 "github.com/Mineru98/kg-m3-go"
)

// Triple is one raw KG training example. Head and Tail hold the entity
// name group (positive first, then negatives); HeadDesc and TailDesc the
// matching description groups; LinkDesc the relation description. All
// four groups must share one size across the whole batch.
type Triple struct {
	Head     []string
	HeadDesc []string
	LinkDesc string
	Tail     []string
	TailDesc []string
}

// Collate tokenizes a batch of triples into a KGBatch. Each grouped
// field is tokenized in a single call over all batch*group rows, so
// every member shares the batch's padding length and the grouped
// encoding path stays equivalent to a per-member one.
func Collate(tok kgm3.Tokenizer, triples []Triple, maxLength int) (KGBatch, error) {
	if tok == nil {
		return KGBatch{}, fmt.Errorf("collate: tokenizer is required")
	}
	if len(triples) == 0 {
		return KGBatch{}, fmt.Errorf("collate: empty batch: %w", kgm3.ErrShapeMismatch)
	}

	group := len(triples[0].Head)
	if group < 2 {
		return KGBatch{}, fmt.Errorf("collate: groups need a positive and at least one negative, got %d members: %w",
			group, kgm3.ErrShapeMismatch)
	}

	heads := make([]string, 0, len(triples)*group)
	headDescs := make([]string, 0, len(triples)*group)
	links := make([]string, 0, len(triples))
	tails := make([]string, 0, len(triples)*group)
	tailDescs := make([]string, 0, len(triples)*group)
	for i, t := range triples {
		if len(t.Head) != group || len(t.HeadDesc) != group || len(t.Tail) != group || len(t.TailDesc) != group {
			return KGBatch{}, fmt.Errorf("collate: triple %d has ragged groups (%d head, %d head desc, %d tail, %d tail desc, want %d): %w",
				i, len(t.Head), len(t.HeadDesc), len(t.Tail), len(t.TailDesc), group, kgm3.ErrShapeMismatch)
		}
		heads = append(heads, t.Head...)
		headDescs = append(headDescs, t.HeadDesc...)
		links = append(links, t.LinkDesc)
		tails = append(tails, t.Tail...)
		tailDescs = append(tailDescs, t.TailDesc...)
	}

	batch := KGBatch{GroupSize: group}
	var err error
	if batch.Head, err = tok.Tokenize(heads, maxLength); err != nil {
		return KGBatch{}, fmt.Errorf("tokenizing heads: %w", err)
	}
	if batch.HeadDesc, err = tok.Tokenize(headDescs, maxLength); err != nil {
		return KGBatch{}, fmt.Errorf("tokenizing head descriptions: %w", err)
	}
	if batch.LinkDesc, err = tok.Tokenize(links, maxLength); err != nil {
		return KGBatch{}, fmt.Errorf("tokenizing link descriptions: %w", err)
	}
	if batch.Tail, err = tok.Tokenize(tails, maxLength); err != nil {
		return KGBatch{}, fmt.Errorf("tokenizing tails: %w", err)
	}
	if batch.TailDesc, err = tok.Tokenize(tailDescs, maxLength); err != nil {
		return KGBatch{}, fmt.Errorf("tokenizing tail descriptions: %w", err)
	}
	return batch, nil
}
