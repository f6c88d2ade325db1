// Package train implements the composite contrastive objective for KG
// triples: an entity-reconstruction retrieval loss plus forward and
// backward relational InfoNCE losses, and the collator that turns raw
// triples into tokenized training batches.
package train

import (
	"fmt"
	"math"

	kgm3 "github.com/Mineru98/kg-m3-go"
	"github.com/Mineru98/kg-m3-go/utils"
)

// DefaultNCETemperature is the reference estimator's temperature. It is
// independent of the model's scoring temperature.
const DefaultNCETemperature = 0.1

// InfoNCE is the paired-negatives InfoNCE estimator: every anchor is
// scored against its own positive (logit index 0) and its own negative
// set only. Inputs are L2-normalized internally.
type InfoNCE struct {
	// Temperature divides the logits; values <= 0 select
	// DefaultNCETemperature.
	Temperature float64
}

// Loss computes the mean InfoNCE loss over the batch.
// query, positive: [batch, dim]; negatives: [batch, n_neg, dim] with a
// uniform, non-empty negative set per row.
func (l InfoNCE) Loss(query, positive [][]float32, negatives [][][]float32) (float64, error) {
	b := len(query)
	if b == 0 {
		return 0, fmt.Errorf("info-nce: empty anchor batch: %w", kgm3.ErrShapeMismatch)
	}
	if len(positive) != b || len(negatives) != b {
		return 0, fmt.Errorf("info-nce: %d anchors, %d positives, %d negative sets: %w",
			b, len(positive), len(negatives), kgm3.ErrShapeMismatch)
	}

	temperature := l.Temperature
	if temperature <= 0 {
		temperature = DefaultNCETemperature
	}

	logits := make([][]float64, b)
	for i := 0; i < b; i++ {
		if len(negatives[i]) == 0 {
			return 0, fmt.Errorf("info-nce: row %d has no negatives: %w", i, kgm3.ErrShapeMismatch)
		}
		if len(negatives[i]) != len(negatives[0]) {
			return 0, fmt.Errorf("info-nce: ragged negative sets (row 0 has %d, row %d has %d): %w",
				len(negatives[0]), i, len(negatives[i]), kgm3.ErrShapeMismatch)
		}

		anchor := utils.Normalize(query[i])
		row := make([]float64, 1+len(negatives[i]))
		row[0] = utils.Dot(anchor, utils.Normalize(positive[i])) / temperature
		for j, negative := range negatives[i] {
			row[j+1] = utils.Dot(anchor, utils.Normalize(negative)) / temperature
		}
		logits[i] = row
	}

	// The positive sits at index 0 of every row.
	return crossEntropyMean(logits, make([]int, b)), nil
}

// crossEntropyMean is the mean softmax cross-entropy over rows, in the
// max-subtraction log-sum-exp form. Rows must be non-empty and targets
// in range; callers validate.
func crossEntropyMean(logits [][]float64, targets []int) float64 {
	var total float64
	for i, row := range logits {
		maxLogit := row[0]
		for _, v := range row[1:] {
			if v > maxLogit {
				maxLogit = v
			}
		}
		var sumExp float64
		for _, v := range row {
			sumExp += math.Exp(v - maxLogit)
		}
		total += maxLogit + math.Log(sumExp) - row[targets[i]]
	}
	return total / float64(len(logits))
}
