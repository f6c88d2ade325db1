package kgm3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureBatchSize(t *testing.T) {
	features := FeatureBatch{
		FieldInputIDs:      {{1, 2}, {3, 4}, {5, 6}},
		FieldAttentionMask: {{1, 1}, {1, 1}, {1, 0}},
	}
	assert.Equal(t, 3, features.BatchSize())

	assert.Equal(t, 0, FeatureBatch(nil).BatchSize())
	assert.Equal(t, 0, FeatureBatch{}.BatchSize())

	// Without an attention mask any field determines the size.
	assert.Equal(t, 2, FeatureBatch{"token_type_ids": {{0}, {0}}}.BatchSize())
}

func TestFeatureBatchSlice(t *testing.T) {
	features := FeatureBatch{
		FieldInputIDs:      {{1}, {2}, {3}, {4}},
		FieldAttentionMask: {{1}, {1}, {1}, {1}},
	}

	sub := features.Slice(1, 3)
	require.Equal(t, 2, sub.BatchSize())
	assert.Equal(t, [][]int64{{2}, {3}}, sub[FieldInputIDs])
	assert.Len(t, sub[FieldAttentionMask], 2)
}
