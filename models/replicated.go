package models

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	kgm3 "github.com/Mineru98/kg-m3-go"
)

var _ kgm3.Encoder = (*Replicated)(nil)

// Replicated fans one encode call out over replicas of the same dense
// encoder, one contiguous chunk per replica, and reassembles the rows in
// their original order. Output is identical to running a single replica
// over the whole batch; a failing replica aborts the whole call.
type Replicated struct {
	replicas []*Dense
}

// NewReplicated builds the decorator. Replicas must share one
// configuration, otherwise chunk placement would change the output.
func NewReplicated(replicas []*Dense) (*Replicated, error) {
	if len(replicas) == 0 {
		return nil, fmt.Errorf("replicated: at least one replica is required")
	}
	cfg := replicas[0].Config()
	for i, replica := range replicas[1:] {
		if replica.Config() != cfg {
			return nil, fmt.Errorf("replicated: replica %d configuration differs from replica 0", i+1)
		}
	}
	return &Replicated{replicas: replicas}, nil
}

// Encode implements kgm3.Encoder. subBatch applies within each replica's
// chunk.
func (r *Replicated) Encode(ctx context.Context, features kgm3.FeatureBatch, subBatch int) ([][]float32, error) {
	n := features.BatchSize()
	if n == 0 {
		return nil, nil
	}
	if len(r.replicas) == 1 {
		return r.replicas[0].Encode(ctx, features, subBatch)
	}

	chunk := (n + len(r.replicas) - 1) / len(r.replicas)
	type span struct {
		lo, hi  int
		replica int
	}
	spans := make([]span, 0, len(r.replicas))
	for i, lo := 0, 0; lo < n; i, lo = i+1, lo+chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		spans = append(spans, span{lo: lo, hi: hi, replica: i})
	}

	parts := make([][][]float32, len(spans))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range spans {
		i, s := i, s
		g.Go(func() error {
			rows, err := r.replicas[s.replica].Encode(gctx, features.Slice(s.lo, s.hi), subBatch)
			if err != nil {
				return fmt.Errorf("replica %d rows [%d:%d): %w", s.replica, s.lo, s.hi, err)
			}
			parts[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, n)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}

// Score delegates to the first replica; scoring is a pure function of the
// shared configuration.
func (r *Replicated) Score(queries, passages [][]float32) [][]float64 {
	return r.replicas[0].Score(queries, passages)
}
