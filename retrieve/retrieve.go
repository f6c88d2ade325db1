// Package retrieve implements first-stage retrievers over document
// collections: an in-memory character n-gram BM25, an exhaustive
// in-memory dense index, and a Postgres pgvector index for corpora that
// outgrow memory.
package retrieve

import (
	"strings"

	kgm3 "github.com/Mineru98/kg-m3-go"
)

// Sparse analyzer defaults.
const (
	DefaultMinN = 3
	DefaultMaxN = 5
	DefaultK1   = 1.5
	DefaultB    = 0.75
)

// joinFields concatenates the document fields named by on, space
// separated, skipping absent fields.
func joinFields(doc kgm3.Document, on []string) string {
	parts := make([]string, 0, len(on))
	for _, field := range on {
		if value, ok := doc[field]; ok {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, " ")
}
