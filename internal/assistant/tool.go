package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/pauldeveaux/portfolio/internal/document"
	"github.com/pauldeveaux/portfolio/internal/store"
)

// RetrievalToolName is the tool name exposed to the model.
const RetrievalToolName = "searchPortfolio"

// RetrievalToolDescription tells the model when to call the tool.
const RetrievalToolDescription = "Search the portfolio knowledge base for information " +
	"about experiences, projects, skills, education and contact details. " +
	"Input is a natural-language search query."

// Retriever is the slice of the document store the tool needs.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) (store.RetrievalResult, error)
}

// RetrievalToolInput is the model-facing input schema.
type RetrievalToolInput struct {
	Question string `json:"question" jsonschema_description:"Natural-language search question"`
}

// RetrievalTool bridges the model's tool calls to the document store.
type RetrievalTool struct {
	retriever Retriever
	k         int
}

// NewRetrievalTool creates the portfolio search tool. k <= 0 uses the
// store default.
func NewRetrievalTool(retriever Retriever, k int) *RetrievalTool {
	return &RetrievalTool{retriever: retriever, k: k}
}

// Name returns the tool name used in model tool requests.
func (t *RetrievalTool) Name() string { return RetrievalToolName }

// Run executes a search and formats the hits for the model, returning
// the rendered evidence alongside the raw chunks. No hits yields an
// explicit "no results" sentence rather than an empty string, so the
// model does not hallucinate sources.
func (t *RetrievalTool) Run(ctx context.Context, question string) (string, []document.Chunk, error) {
	result, err := t.retriever.SimilaritySearch(ctx, question, t.k)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrToolExecution, RetrievalToolName, err)
	}

	if len(result.Chunks) == 0 {
		return "No relevant information found in the portfolio.", nil, nil
	}

	blocks := make([]string, 0, len(result.Chunks))
	for _, chunk := range result.Chunks {
		source := chunk.Title
		if source == "" {
			source = chunk.Category
		}
		if source == "" {
			source = chunk.DocumentID
		}
		blocks = append(blocks, "Source: "+source+"\nContent: "+chunk.Text)
	}
	return strings.Join(blocks, "\n\n"), result.Chunks, nil
}
