package app

import (
	"context"
	"fmt"

	"github.com/pauldeveaux/portfolio/internal/cms"
	"github.com/pauldeveaux/portfolio/internal/document"
	"github.com/pauldeveaux/portfolio/internal/log"
)

// Source is the content side of reindexing.
type Source interface {
	FetchAll(ctx context.Context) ([]document.Document, error)
	FetchPersona(ctx context.Context) (cms.Persona, error)
}

// DocumentIndex is the store side of reindexing.
type DocumentIndex interface {
	ClearCollection(ctx context.Context) error
	AddDocuments(ctx context.Context, docs []document.Document) (int, error)
}

// PersonaSetter receives the refreshed persona description.
type PersonaSetter interface {
	SetPersona(persona string)
}

// Indexer rebuilds the vector index from the content source.
type Indexer struct {
	source  Source
	index   DocumentIndex
	persona PersonaSetter
	logger  log.Logger
}

// NewIndexer creates an indexer. persona may be nil to skip persona
// refresh.
func NewIndexer(source Source, index DocumentIndex, persona PersonaSetter, logger log.Logger) *Indexer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Indexer{source: source, index: index, persona: persona, logger: logger}
}

// Reindex fetches all content, clears the collection and indexes the
// fresh documents, returning the number of chunks indexed. Content is
// fetched before clearing so an unreachable source never wipes a
// working index. The persona refresh is best-effort.
func (ix *Indexer) Reindex(ctx context.Context) (int, error) {
	docs, err := ix.source.FetchAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching content: %w", err)
	}

	if ix.persona != nil {
		persona, err := ix.source.FetchPersona(ctx)
		if err != nil {
			ix.logger.Warn("persona refresh failed, keeping current persona", "error", err)
		} else if persona.Description != "" {
			ix.persona.SetPersona(persona.Description)
		}
	}

	if err := ix.index.ClearCollection(ctx); err != nil {
		return 0, fmt.Errorf("clearing collection: %w", err)
	}

	count, err := ix.index.AddDocuments(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("indexing documents: %w", err)
	}

	ix.logger.Info("index rebuilt", "documents", len(docs), "chunks", count)
	return count, nil
}
