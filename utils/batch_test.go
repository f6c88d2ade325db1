package utils

import (
	"errors"
	"testing"
)

func TestBatchify(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	batchSize := 3

	batches := Batchify(items, batchSize)

	expectedBatches := 4
	if len(batches) != expectedBatches {
		t.Errorf("Expected %d batches, got %d", expectedBatches, len(batches))
	}

	expectedLengths := []int{3, 3, 3, 1}
	for i, batch := range batches {
		if len(batch) != expectedLengths[i] {
			t.Errorf("Batch %d: expected length %d, got %d", i, expectedLengths[i], len(batch))
		}
	}
}

func TestBatchifyEmpty(t *testing.T) {
	items := []int{}
	batchSize := 3

	batches := Batchify(items, batchSize)

	if len(batches) != 0 {
		t.Errorf("Expected 0 batches for empty input, got %d", len(batches))
	}
}

func TestBatchifyPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for batch size <= 0")
		}
	}()

	items := []int{1, 2, 3}
	Batchify(items, 0)
}

func TestBatchProcess(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	doubled, err := BatchProcess(items, 2, func(batch []int) ([]int, error) {
		out := make([]int, len(batch))
		for i, v := range batch {
			out[i] = v * 2
		}
		return out, nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []int{2, 4, 6, 8, 10}
	for i, v := range doubled {
		if v != expected[i] {
			t.Errorf("Result %d: expected %d, got %d", i, expected[i], v)
		}
	}
}

func TestBatchProcessError(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	sentinel := errors.New("worker failed")

	_, err := BatchProcess(items, 2, func(batch []int) ([]int, error) {
		if batch[0] >= 3 {
			return nil, sentinel
		}
		return batch, nil
	})

	if !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped worker error, got %v", err)
	}
}
