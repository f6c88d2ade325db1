package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	kgm3 "github.com/Mineru98/kg-m3-go"
	"github.com/Mineru98/kg-m3-go/utils"
)

var _ kgm3.Retriever = (*PgVector)(nil)

// DefaultIndexBatchSize bounds how many documents are embedded and
// upserted per round trip.
const DefaultIndexBatchSize = 64

const (
	pgVectorSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS kgm3_documents (
	id        TEXT PRIMARY KEY,
	fields    JSONB NOT NULL,
	embedding vector(%d) NOT NULL
);
CREATE INDEX IF NOT EXISTS kgm3_documents_embedding_idx
	ON kgm3_documents USING hnsw (embedding vector_cosine_ops);`

	pgVectorUpsert = `
INSERT INTO kgm3_documents (id, fields, embedding)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET fields = EXCLUDED.fields, embedding = EXCLUDED.embedding`

	pgVectorSearch = `
SELECT fields, embedding <=> $1 AS distance
FROM kgm3_documents
ORDER BY distance
LIMIT $2`
)

// PgVectorConfig controls document identity and embedding layout.
type PgVectorConfig struct {
	// Key names the document field holding the stable id; documents
	// without it get a random id on every Index call. Empty selects
	// "id".
	Key string
	// On names the document fields to embed.
	On []string
	// Dimensions is the embedding width declared to Postgres.
	Dimensions int
	// BatchSize bounds documents per upsert round trip; <= 0 selects
	// DefaultIndexBatchSize.
	BatchSize int
}

// PgVector stores embeddings in Postgres behind a pgvector HNSW index
// and searches by cosine distance. Scores are 1 - distance, so higher is
// better like the in-memory retrievers.
type PgVector struct {
	pool     *pgxpool.Pool
	embedder Embedder
	cfg      PgVectorConfig
	log      *slog.Logger
}

// NewPgVector connects to Postgres, registers the pgvector codecs, and
// creates the schema when missing.
func NewPgVector(ctx context.Context, dsn string, embedder Embedder, cfg PgVectorConfig, log *slog.Logger) (*PgVector, error) {
	if embedder == nil {
		return nil, fmt.Errorf("pgvector: embedder is required")
	}
	if len(cfg.On) == 0 {
		return nil, fmt.Errorf("pgvector: at least one document field is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("pgvector: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Key == "" {
		cfg.Key = "id"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultIndexBatchSize
	}
	if log == nil {
		log = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: parsing dsn: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(pgVectorSchema, cfg.Dimensions)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: creating schema: %w", err)
	}

	return &PgVector{pool: pool, embedder: embedder, cfg: cfg, log: log}, nil
}

// Index embeds and upserts documents in batches. Re-indexing a document
// with the same key replaces its fields and embedding.
func (p *PgVector) Index(ctx context.Context, documents []kgm3.Document) error {
	if len(documents) == 0 {
		return fmt.Errorf("pgvector: no documents to index")
	}

	start := time.Now()
	for _, chunk := range utils.Batchify(documents, p.cfg.BatchSize) {
		if err := p.indexBatch(ctx, chunk); err != nil {
			return err
		}
	}
	p.log.Info("indexed documents",
		slog.Int("count", len(documents)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (p *PgVector) indexBatch(ctx context.Context, documents []kgm3.Document) error {
	contents := make([]string, len(documents))
	for i, doc := range documents {
		contents[i] = joinFields(doc, p.cfg.On)
	}

	rows, err := p.embedder.Embed(ctx, contents)
	if err != nil {
		return fmt.Errorf("embedding documents: %w", err)
	}
	if len(rows) != len(documents) {
		return fmt.Errorf("embedder returned %d rows for %d documents: %w",
			len(rows), len(documents), kgm3.ErrShapeMismatch)
	}

	batch := &pgx.Batch{}
	for i, doc := range documents {
		id := doc[p.cfg.Key]
		if id == "" {
			id = uuid.NewString()
		}
		fields, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encoding document %q: %w", id, err)
		}
		batch.Queue(pgVectorUpsert, id, fields, pgvector.NewVector(rows[i]))
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range documents {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upserting documents: %w", err)
		}
	}
	return nil
}

// Search embeds the query and returns the k nearest documents by cosine
// distance, best first.
func (p *PgVector) Search(ctx context.Context, query string, k int) ([]kgm3.SearchResult, error) {
	if k <= 0 {
		return []kgm3.SearchResult{}, nil
	}

	start := time.Now()
	queryRows, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := p.pool.Query(ctx, pgVectorSearch, pgvector.NewVector(queryRows[0]), k)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search query: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (kgm3.SearchResult, error) {
		var fields []byte
		var distance float64
		if err := row.Scan(&fields, &distance); err != nil {
			return kgm3.SearchResult{}, err
		}
		var doc kgm3.Document
		if err := json.Unmarshal(fields, &doc); err != nil {
			return kgm3.SearchResult{}, fmt.Errorf("decoding document fields: %w", err)
		}
		return kgm3.SearchResult{Document: doc, Score: 1 - distance}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pgvector: collecting results: %w", err)
	}

	p.log.Debug("search completed",
		slog.Int("k", k),
		slog.Int("hits", len(results)),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

// Close releases the connection pool.
func (p *PgVector) Close() error {
	p.pool.Close()
	return nil
}
