package utils

import "fmt"

// Batchify splits a slice into contiguous batches of specified size
func Batchify[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		panic("batch size must be positive")
	}

	batches := make([][]T, 0, (len(items)+batchSize-1)/batchSize)
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}

// BatchProcess runs worker over each batch in order and concatenates the
// results. The first failing batch aborts the whole call.
func BatchProcess[T any, R any](
	items []T,
	batchSize int,
	worker func(batch []T) ([]R, error),
) ([]R, error) {
	batches := Batchify(items, batchSize)
	results := make([]R, 0, len(items))

	for i, batch := range batches {
		batchResults, err := worker(batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d failed: %w", i, err)
		}
		results = append(results, batchResults...)
	}

	return results, nil
}
