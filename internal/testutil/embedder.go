// Package testutil provides deterministic fakes for the model and embedding
// providers used across package tests.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// MockEmbedder provides deterministic embedding vectors for tests.
//
// By default it derives a unit vector from the content via SHA-256, so
// identical texts always embed identically and distinct texts land far
// apart. Explicit vectors can be registered for precise similarity control.
//
// Thread-safe for concurrent use.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int

	// Fail, when set, is returned from every Embed call.
	Fail error
}

// NewMockEmbedder creates a mock embedder producing vectors of dim floats.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// SetVector registers an explicit vector for a given content string.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// VectorFor returns the vector Embed would produce for content, so a
// test can make two texts deliberately identical in embedding space.
func (e *MockEmbedder) VectorFor(content string) []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if vec, ok := e.vectors[content]; ok {
		return vec
	}
	return deterministicVector(content, e.dim)
}

// Name implements ai.Embedder.
func (e *MockEmbedder) Name() string { return "mock/test-embedder" }

// Register implements ai.Embedder. No-op for tests.
func (e *MockEmbedder) Register(api.Registry) {}

// Embed implements ai.Embedder.
func (e *MockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Fail != nil {
		return nil, e.Fail
	}

	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		text := documentText(doc)
		vec, ok := e.vectors[text]
		if !ok {
			vec = deterministicVector(text, e.dim)
		}
		embeddings[i] = &ai.Embedding{Embedding: vec}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// documentText concatenates all text parts of a document.
func documentText(doc *ai.Document) string {
	var text string
	for _, part := range doc.Content {
		text += part.Text
	}
	return text
}

// deterministicVector derives a unit-length vector from content so that
// identical content has cosine similarity 1 with itself.
func deterministicVector(content string, dim int) []float32 {
	vec := make([]float32, dim)
	sum := sha256.Sum256([]byte(content))

	var norm float64
	for i := range vec {
		// Stretch the 32-byte digest across the vector by re-hashing per lane.
		lane := sha256.Sum256(append(sum[:], byte(i), byte(i>>8)))
		bits := binary.BigEndian.Uint32(lane[:4])
		v := float64(bits)/float64(math.MaxUint32)*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
