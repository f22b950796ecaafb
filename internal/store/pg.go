package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/pauldeveaux/portfolio/db"
	"github.com/pauldeveaux/portfolio/internal/document"
)

// VectorDimension is the embedding width stored in the chunks table.
// Must match the vector(768) column in db/migrations.
const VectorDimension = 768

// pgBackend stores chunks in PostgreSQL with pgvector similarity search.
type pgBackend struct {
	pool       *pgxpool.Pool
	collection string
}

// newPGBackend runs migrations, opens a pool with pgvector types
// registered, and verifies connectivity.
func newPGBackend(ctx context.Context, connURL, collection string) (*pgBackend, error) {
	if err := db.Migrate(connURL); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &pgBackend{pool: pool, collection: collection}, nil
}

func (b *pgBackend) Name() string { return "pgvector" }

func (b *pgBackend) Upsert(ctx context.Context, chunks []document.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	const upsertSQL = `
		INSERT INTO chunks (id, collection, document_id, chunk_index, title, category, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			collection = EXCLUDED.collection,
			document_id = EXCLUDED.document_id,
			chunk_index = EXCLUDED.chunk_index,
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(upsertSQL,
			chunkKey(c), b.collection, c.DocumentID, c.Index, c.Title, c.Category, c.Text,
			pgvector.NewVector(vectors[i]))
	}

	results := b.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upserting chunk batch: %w", err)
		}
	}
	return nil
}

func (b *pgBackend) Query(ctx context.Context, vector []float32, k int) (RetrievalResult, error) {
	const querySQL = `
		SELECT content, document_id, chunk_index, title, category,
		       1 - (embedding <=> $1) AS similarity
		FROM chunks
		WHERE collection = $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := b.pool.Query(ctx, querySQL, pgvector.NewVector(vector), b.collection, k)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	var result RetrievalResult
	for rows.Next() {
		var c document.Chunk
		var similarity float64
		if err := rows.Scan(&c.Text, &c.DocumentID, &c.Index, &c.Title, &c.Category, &similarity); err != nil {
			return RetrievalResult{}, fmt.Errorf("scanning result row: %w", err)
		}
		result.Chunks = append(result.Chunks, c)
		result.Scores = append(result.Scores, float32(similarity))
	}
	if err := rows.Err(); err != nil {
		return RetrievalResult{}, fmt.Errorf("reading result rows: %w", err)
	}
	return result, nil
}

func (b *pgBackend) Clear(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, `DELETE FROM chunks WHERE collection = $1`, b.collection); err != nil {
		return fmt.Errorf("clearing collection %q: %w", b.collection, err)
	}
	return nil
}

func (b *pgBackend) Close() {
	b.pool.Close()
}
