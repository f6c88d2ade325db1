package train

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kgm3 "github.com/Mineru98/kg-m3-go"
)

func TestInfoNCESinglePair(t *testing.T) {
	nce := InfoNCE{Temperature: 1}
	loss, err := nce.Loss(
		[][]float32{{1, 0}},
		[][]float32{{1, 0}},
		[][][]float32{{{0, 1}}},
	)
	require.NoError(t, err)
	// Logits [1, 0] with the positive at index 0.
	assert.InDelta(t, math.Log(math.E+1)-1, loss, 1e-6)
}

func TestInfoNCEDefaultTemperature(t *testing.T) {
	loss, err := InfoNCE{}.Loss(
		[][]float32{{1, 0}},
		[][]float32{{1, 0}},
		[][][]float32{{{0, 1}}},
	)
	require.NoError(t, err)
	// The same pair at the default temperature 0.1 gives logits [10, 0].
	assert.InDelta(t, math.Log(1+math.Exp(-10)), loss, 1e-6)
}

func TestInfoNCEScaleInvariance(t *testing.T) {
	nce := InfoNCE{Temperature: 1}
	reference, err := nce.Loss(
		[][]float32{{1, 0}, {0, 1}},
		[][]float32{{1, 0}, {0, 1}},
		[][][]float32{{{0, 1}}, {{1, 0}}},
	)
	require.NoError(t, err)

	scaled, err := nce.Loss(
		[][]float32{{42, 0}, {0, 0.5}},
		[][]float32{{0.25, 0}, {0, 9}},
		[][][]float32{{{0, 7}}, {{3, 0}}},
	)
	require.NoError(t, err)
	assert.InDelta(t, reference, scaled, 1e-6)
}

func TestInfoNCEMeanOverRows(t *testing.T) {
	nce := InfoNCE{Temperature: 1}
	loss, err := nce.Loss(
		[][]float32{{1, 0}, {0, 1}},
		[][]float32{{1, 0}, {0, 1}},
		[][][]float32{{{0, 1}}, {{0, 1}}},
	)
	require.NoError(t, err)
	// Row 0 has logits [1, 0], row 1 the degenerate [1, 1].
	expected := ((math.Log(math.E+1) - 1) + math.Log(2)) / 2
	assert.InDelta(t, expected, loss, 1e-6)
}

func TestInfoNCEShapeErrors(t *testing.T) {
	nce := InfoNCE{Temperature: 1}

	_, err := nce.Loss(nil, nil, nil)
	assert.ErrorIs(t, err, kgm3.ErrShapeMismatch)

	_, err = nce.Loss(
		[][]float32{{1, 0}, {0, 1}},
		[][]float32{{1, 0}},
		[][][]float32{{{0, 1}}, {{1, 0}}},
	)
	assert.ErrorIs(t, err, kgm3.ErrShapeMismatch)

	_, err = nce.Loss(
		[][]float32{{1, 0}},
		[][]float32{{1, 0}},
		[][][]float32{{}},
	)
	assert.ErrorIs(t, err, kgm3.ErrShapeMismatch)

	_, err = nce.Loss(
		[][]float32{{1, 0}, {0, 1}},
		[][]float32{{1, 0}, {0, 1}},
		[][][]float32{{{0, 1}}, {{1, 0}, {1, 1}}},
	)
	assert.ErrorIs(t, err, kgm3.ErrShapeMismatch)
}
