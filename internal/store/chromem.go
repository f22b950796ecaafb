package store

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/firebase/genkit/go/ai"
	chromem "github.com/philippgille/chromem-go"

	"github.com/pauldeveaux/portfolio/internal/document"
)

// chromemBackend is the in-process fallback vector index. It keeps the same
// collection name and query contract as the PostgreSQL backend, so callers
// cannot tell which one is active.
type chromemBackend struct {
	db   *chromem.DB
	coll *chromem.Collection
	name string
}

func newChromemBackend(name string, embedder ai.Embedder) (*chromemBackend, error) {
	db := chromem.NewDB()
	coll, err := db.CreateCollection(name, nil, newEmbeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("creating collection %q: %w", name, err)
	}
	return &chromemBackend{db: db, coll: coll, name: name}, nil
}

func (b *chromemBackend) Name() string { return "chromem" }

func (b *chromemBackend) Upsert(ctx context.Context, chunks []document.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        chunkKey(c),
			Content:   c.Text,
			Embedding: vectors[i],
			Metadata: map[string]string{
				"document_id": c.DocumentID,
				"chunk_index": strconv.Itoa(c.Index),
				"title":       c.Title,
				"category":    c.Category,
			},
		}
	}

	if err := b.coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents to collection %q: %w", b.name, err)
	}
	return nil
}

func (b *chromemBackend) Query(ctx context.Context, vector []float32, k int) (RetrievalResult, error) {
	// chromem rejects nResults larger than the collection size.
	if count := b.coll.Count(); k > count {
		k = count
	}
	if k == 0 {
		return RetrievalResult{}, nil
	}

	hits, err := b.coll.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("querying collection %q: %w", b.name, err)
	}

	var result RetrievalResult
	for _, hit := range hits {
		index, _ := strconv.Atoi(hit.Metadata["chunk_index"])
		result.Chunks = append(result.Chunks, document.Chunk{
			Text:       hit.Content,
			DocumentID: hit.Metadata["document_id"],
			Index:      index,
			Category:   hit.Metadata["category"],
			Title:      hit.Metadata["title"],
		})
		result.Scores = append(result.Scores, hit.Similarity)
	}
	return result, nil
}

func (b *chromemBackend) Clear(_ context.Context) error {
	return b.db.DeleteCollection(b.name)
}

func (b *chromemBackend) Close() {}

// newEmbeddingFunc bridges a Genkit ai.Embedder to chromem's EmbeddingFunc.
// Upserts pass precomputed vectors, so chromem only calls this for
// documents added without one.
func newEmbeddingFunc(embedder ai.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
			Input: []*ai.Document{ai.DocumentFromText(text, nil)},
		})
		if err != nil {
			return nil, fmt.Errorf("embed failed: %w", err)
		}
		if len(resp.Embeddings) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		return resp.Embeddings[0].Embedding, nil
	}
}
