// Package document defines the content types flowing through the assistant
// and the text preparation applied to raw CMS records before indexing.
package document

import (
	"errors"
	"time"
)

// ErrInvalidInput indicates a caller-correctable input problem, such as an
// empty aggregation record list. Safe to surface verbatim to API clients.
var ErrInvalidInput = errors.New("invalid input")

// Document is a normalized piece of portfolio content ready for indexing.
// Documents are immutable once created; identity is ID.
type Document struct {
	ID        string
	Title     string
	Text      string
	UpdatedAt *time.Time // nil when the source carries no timestamp
	Category  string
}

// Chunk is a fixed-size slice of a document's cleaned text, the unit stored
// in the vector index. Provenance metadata is kept for citation.
type Chunk struct {
	Text       string
	DocumentID string
	Index      int
	Category   string
	Title      string
}

// Record is one raw field set from a document source: parallel fragment
// lists extracted from a single CMS entry, plus identity and freshness.
type Record struct {
	ID        string
	Titles    []string
	Contents  []string
	Links     []string
	UpdatedAt *time.Time
}
