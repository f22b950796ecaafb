// Package store implements the document store: it owns the embedding model
// handle, the chunker, and the vector index, and exposes ingestion and
// similarity search to the rest of the assistant.
//
// The vector index has two interchangeable backends behind one contract: a
// remote PostgreSQL/pgvector index and an in-process chromem-go index used
// as a transparent fallback when PostgreSQL is unreachable. Callers see the
// same collection name and query behavior either way.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/pauldeveaux/portfolio/internal/document"
	"github.com/pauldeveaux/portfolio/internal/log"
)

// ErrUnavailable indicates no vector index backend is connected. Searches
// racing a reconnect surface this error rather than partial results.
var ErrUnavailable = errors.New("document store unavailable")

// DefaultK is the number of chunks returned when the caller passes k < 1.
const DefaultK = 5

// RetrievalResult holds retrieved chunks with parallel similarity scores.
// Scores[i] belongs to Chunks[i]; ordering is best match first.
type RetrievalResult struct {
	Chunks []document.Chunk
	Scores []float32
}

// backend is the vector index contract shared by the remote PostgreSQL
// index and the in-process fallback. Both accept chunks with precomputed
// embeddings and answer k-nearest-neighbor queries by vector.
type backend interface {
	// Upsert stores all chunks with their vectors in one batch.
	Upsert(ctx context.Context, chunks []document.Chunk, vectors [][]float32) error

	// Query returns the k most similar chunks, best first.
	Query(ctx context.Context, vector []float32, k int) (RetrievalResult, error)

	// Clear removes every entry in the collection.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close()

	// Name identifies the backend for logging.
	Name() string
}

// Config holds document store settings.
type Config struct {
	// Collection names the logical chunk collection, identical across
	// backends so a fallback is transparent to callers.
	Collection string

	// ChunkSize and ChunkOverlap are counted in runes, the unit the
	// embedding provider tokenizes from.
	ChunkSize    int
	ChunkOverlap int

	// PostgresURL enables the remote backend when non-empty.
	PostgresURL string

	// ConnectTimeout bounds the remote connection attempt.
	ConnectTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = "portfolio_documents"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 500
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 50
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

// DocumentStore ingests portfolio documents and serves similarity searches.
//
// Construct exactly one DocumentStore per process per collection in the
// application bootstrap and inject it by reference; this keeps one embedder
// handle and one index connection alive without hidden global state.
//
// DocumentStore is safe for concurrent searches from multiple sessions.
type DocumentStore struct {
	cfg      Config
	embedder ai.Embedder
	splitter *Splitter
	logger   log.Logger

	mu      sync.RWMutex
	backend backend
}

// New creates a DocumentStore. Call Connect before the first search.
func New(cfg Config, embedder ai.Embedder, logger log.Logger) *DocumentStore {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.NewNop()
	}
	return &DocumentStore{
		cfg:      cfg,
		embedder: embedder,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:   logger,
	}
}

// Connect attaches the store to its vector index. The remote PostgreSQL
// backend is tried first; on any connection failure the store falls back to
// an in-process index with the same collection name and query contract.
// Safe to call concurrently with in-flight searches.
func (s *DocumentStore) Connect(ctx context.Context) error {
	next, err := s.dial(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.backend
	s.backend = next
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	s.logger.Info("document store connected",
		"backend", next.Name(),
		"collection", s.cfg.Collection)
	return nil
}

func (s *DocumentStore) dial(ctx context.Context) (backend, error) {
	if s.cfg.PostgresURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		pg, err := newPGBackend(dialCtx, s.cfg.PostgresURL, s.cfg.Collection)
		cancel()
		if err == nil {
			return pg, nil
		}
		s.logger.Warn("pgvector backend unreachable, falling back to in-process index",
			"error", err)
	}

	mem, err := newChromemBackend(s.cfg.Collection, s.embedder)
	if err != nil {
		return nil, fmt.Errorf("creating fallback index: %w", err)
	}
	return mem, nil
}

// ClearCollection deletes every entry in the active collection and then
// re-establishes the connection. Deletion errors are logged, not fatal:
// a full reindex follows either way.
func (s *DocumentStore) ClearCollection(ctx context.Context) error {
	s.mu.Lock()
	current := s.backend
	s.backend = nil
	s.mu.Unlock()

	if current != nil {
		if err := current.Clear(ctx); err != nil {
			s.logger.Warn("clearing collection failed, continuing with reconnect",
				"collection", s.cfg.Collection,
				"error", err)
		}
		current.Close()
	}

	return s.Connect(ctx)
}

// AddDocuments cleans, splits, and indexes documents, batching all chunks
// of all documents into a single upsert. Returns the total chunk count.
// A failed upsert surfaces as an error with no partial rollback.
func (s *DocumentStore) AddDocuments(ctx context.Context, docs []document.Document) (int, error) {
	var chunks []document.Chunk
	var texts []string

	for _, doc := range docs {
		cleaned := document.Clean(doc.Text)
		for i, piece := range s.splitter.Split(cleaned) {
			chunks = append(chunks, document.Chunk{
				Text:       piece,
				DocumentID: doc.ID,
				Index:      i,
				Category:   doc.Category,
				Title:      doc.Title,
			})
			texts = append(texts, piece)
		}
	}

	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := s.embedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	s.mu.RLock()
	b := s.backend
	s.mu.RUnlock()
	if b == nil {
		return 0, fmt.Errorf("adding documents: %w", ErrUnavailable)
	}

	if err := b.Upsert(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("upserting %d chunks: %w", len(chunks), err)
	}

	s.logger.Info("documents indexed",
		"documents", len(docs),
		"chunks", len(chunks),
		"backend", b.Name())
	return len(chunks), nil
}

// SimilaritySearch embeds the query and returns the k best-matching chunks
// with parallel scores, best first. k < 1 selects DefaultK.
func (s *DocumentStore) SimilaritySearch(ctx context.Context, query string, k int) (RetrievalResult, error) {
	if k < 1 {
		k = DefaultK
	}

	vectors, err := s.embedTexts(ctx, []string{query})
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("embedding query: %w", err)
	}

	s.mu.RLock()
	b := s.backend
	s.mu.RUnlock()
	if b == nil {
		return RetrievalResult{}, fmt.Errorf("similarity search: %w", ErrUnavailable)
	}

	result, err := b.Query(ctx, vectors[0], k)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("querying %s backend: %w", b.Name(), err)
	}
	return result, nil
}

// Close releases the active backend.
func (s *DocumentStore) Close() {
	s.mu.Lock()
	b := s.backend
	s.backend = nil
	s.mu.Unlock()
	if b != nil {
		b.Close()
	}
}

// embedTexts embeds all texts in one provider call.
func (s *DocumentStore) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]*ai.Document, len(texts))
	for i, t := range texts {
		input[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding for text %d", i)
		}
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}

// chunkKey builds the stable index key for a chunk.
func chunkKey(c document.Chunk) string {
	return c.DocumentID + "_" + strconv.Itoa(c.Index)
}
