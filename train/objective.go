package train

import (
	"context"
	"fmt"

	kgm3 "github.com/Mineru98/kg-m3-go"
	"github.com/Mineru98/kg-m3-go/models"
	"github.com/Mineru98/kg-m3-go/utils"
)

// Config controls the training objective.
type Config struct {
	// SubBatchSize bounds how many rows go through the backbone per
	// pass while encoding a training batch; <= 0 disables sub-batching.
	SubBatchSize int
	// NCETemperature is the temperature of the two relational InfoNCE
	// terms. Zero selects DefaultNCETemperature.
	NCETemperature float64
}

// Objective is the composite loss over KG triples: the unweighted mean
// of an entity-reconstruction term and two directional relational terms.
// It never mutates encoder parameters; gradient bookkeeping is the
// backbone's concern.
type Objective struct {
	model *models.Dense
	nce   InfoNCE
	cfg   Config
}

// NewObjective binds the loss to a dense encoder.
func NewObjective(model *models.Dense, cfg Config) (*Objective, error) {
	if model == nil {
		return nil, fmt.Errorf("objective: model is required")
	}
	if cfg.NCETemperature == 0 {
		cfg.NCETemperature = DefaultNCETemperature
	}
	if cfg.NCETemperature < 0 {
		return nil, fmt.Errorf("objective: nce temperature must be positive, got %v", cfg.NCETemperature)
	}
	return &Objective{model: model, nce: InfoNCE{Temperature: cfg.NCETemperature}, cfg: cfg}, nil
}

// ReconstructionLoss scores every query against every passage and asks
// each query to retrieve the head of its own passage block. Passages are
// laid out in contiguous blocks of r = len(passages)/len(queries) rows,
// block order matching query order, so query i's positive is passage
// i*r. A passage count that is not an exact multiple of the query count
// is rejected rather than silently truncated.
func (o *Objective) ReconstructionLoss(queries, passages [][]float32) (float64, error) {
	if len(queries) == 0 {
		return 0, fmt.Errorf("reconstruction: empty query batch: %w", kgm3.ErrShapeMismatch)
	}
	if len(passages) == 0 || len(passages)%len(queries) != 0 {
		return 0, fmt.Errorf("reconstruction: %d passages is not a positive multiple of %d queries: %w",
			len(passages), len(queries), kgm3.ErrShapeMismatch)
	}

	ratio := len(passages) / len(queries)
	targets := make([]int, len(queries))
	for i := range targets {
		targets[i] = i * ratio
	}

	return crossEntropyMean(o.model.Score(queries, passages), targets), nil
}

// KGEmbedLoss returns the two directional relational losses.
// head, tail: [batch, group, dim] with the positive at group index 0 and
// at least one negative per group; link: [batch, dim].
// Forward: anchor head_pos + link against the positive tail and the tail
// negatives. Backward: anchor tail_pos - link against the positive head
// and the head negatives.
func (o *Objective) KGEmbedLoss(head [][][]float32, link [][]float32, tail [][][]float32) (float64, float64, error) {
	b := len(head)
	if b == 0 || len(link) != b || len(tail) != b {
		return 0, 0, fmt.Errorf("kg loss: %d head groups, %d links, %d tail groups: %w",
			len(head), len(link), len(tail), kgm3.ErrShapeMismatch)
	}

	headPos := make([][]float32, b)
	tailPos := make([][]float32, b)
	headNeg := make([][][]float32, b)
	tailNeg := make([][][]float32, b)
	forwardAnchor := make([][]float32, b)
	backwardAnchor := make([][]float32, b)
	for i := 0; i < b; i++ {
		if len(head[i]) < 2 || len(tail[i]) < 2 {
			return 0, 0, fmt.Errorf("kg loss: row %d needs a positive and at least one negative per group: %w",
				i, kgm3.ErrShapeMismatch)
		}
		headPos[i], headNeg[i] = head[i][0], head[i][1:]
		tailPos[i], tailNeg[i] = tail[i][0], tail[i][1:]
		forwardAnchor[i] = utils.Add(headPos[i], link[i])
		backwardAnchor[i] = utils.Sub(tailPos[i], link[i])
	}

	forward, err := o.nce.Loss(forwardAnchor, tailPos, tailNeg)
	if err != nil {
		return 0, 0, fmt.Errorf("forward term: %w", err)
	}
	backward, err := o.nce.Loss(backwardAnchor, headPos, headNeg)
	if err != nil {
		return 0, 0, fmt.Errorf("backward term: %w", err)
	}
	return forward, backward, nil
}

// KGBatch is one tokenized training batch of triples. Grouped fields
// hold batch*GroupSize rows laid out row-major (row = triple*GroupSize +
// member, member 0 the positive); LinkDesc holds one row per triple.
type KGBatch struct {
	Head      kgm3.FeatureBatch
	HeadDesc  kgm3.FeatureBatch
	LinkDesc  kgm3.FeatureBatch
	Tail      kgm3.FeatureBatch
	TailDesc  kgm3.FeatureBatch
	GroupSize int
}

// Step encodes one batch and returns the composite loss: queries are the
// positive head and tail entities, passages the flattened description
// groups (so the reconstruction ratio equals GroupSize), and the two
// relational terms run over the entity groups. Final loss is the
// unweighted mean of the three terms.
func (o *Objective) Step(ctx context.Context, batch KGBatch) (float64, error) {
	head, err := o.model.EncodeGrouped(ctx, batch.Head, batch.GroupSize, o.cfg.SubBatchSize)
	if err != nil {
		return 0, fmt.Errorf("encoding heads: %w", err)
	}
	headDesc, err := o.model.EncodeGrouped(ctx, batch.HeadDesc, batch.GroupSize, o.cfg.SubBatchSize)
	if err != nil {
		return 0, fmt.Errorf("encoding head descriptions: %w", err)
	}
	link, err := o.model.Encode(ctx, batch.LinkDesc, o.cfg.SubBatchSize)
	if err != nil {
		return 0, fmt.Errorf("encoding link descriptions: %w", err)
	}
	tail, err := o.model.EncodeGrouped(ctx, batch.Tail, batch.GroupSize, o.cfg.SubBatchSize)
	if err != nil {
		return 0, fmt.Errorf("encoding tails: %w", err)
	}
	tailDesc, err := o.model.EncodeGrouped(ctx, batch.TailDesc, batch.GroupSize, o.cfg.SubBatchSize)
	if err != nil {
		return 0, fmt.Errorf("encoding tail descriptions: %w", err)
	}

	b := len(head)
	if b == 0 {
		return 0, fmt.Errorf("step: empty batch: %w", kgm3.ErrShapeMismatch)
	}
	if len(headDesc) != b || len(link) != b || len(tail) != b || len(tailDesc) != b {
		return 0, fmt.Errorf("step: fields disagree on batch size (%d heads, %d head descs, %d links, %d tails, %d tail descs): %w",
			b, len(headDesc), len(link), len(tail), len(tailDesc), kgm3.ErrShapeMismatch)
	}

	queries := make([][]float32, 0, 2*b)
	for _, group := range head {
		queries = append(queries, group[0])
	}
	for _, group := range tail {
		queries = append(queries, group[0])
	}

	passages := make([][]float32, 0, 2*b*batch.GroupSize)
	for _, group := range headDesc {
		passages = append(passages, group...)
	}
	for _, group := range tailDesc {
		passages = append(passages, group...)
	}

	reconstruction, err := o.ReconstructionLoss(queries, passages)
	if err != nil {
		return 0, err
	}
	forward, backward, err := o.KGEmbedLoss(head, link, tail)
	if err != nil {
		return 0, err
	}

	return (reconstruction + forward + backward) / 3, nil
}
