// Package model wraps Genkit generation behind the small client surface
// the orchestrator consumes: plain generation, generation with the
// portfolio search tool offered, and transcript summarization.
package model

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/pauldeveaux/portfolio/internal/assistant"
	"github.com/pauldeveaux/portfolio/internal/log"
)

// Config holds model client settings.
type Config struct {
	// ModelName is the fully qualified Genkit model name, e.g.
	// "googleai/gemini-2.0-flash".
	ModelName string

	// RateLimiter throttles outbound model calls. Nil gets a default of
	// 5 requests/sec sustained with a burst of 10.
	RateLimiter *rate.Limiter
}

// Client calls the configured Genkit model.
type Client struct {
	g       *genkit.Genkit
	model   string
	limiter *rate.Limiter
	toolRef ai.ToolRef
	logger  log.Logger
}

// New creates a client and registers the portfolio search tool with
// Genkit so the model sees its schema. Tool requests are returned to the
// orchestrator rather than executed inside generation, keeping tool
// errors on the orchestrator's error path.
func New(g *genkit.Genkit, cfg Config, tool *assistant.RetrievalTool, logger log.Logger) *Client {
	if cfg.RateLimiter == nil {
		cfg.RateLimiter = rate.NewLimiter(5, 10)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	toolRef := genkit.DefineTool(
		g,
		tool.Name(),
		assistant.RetrievalToolDescription,
		func(toolCtx *ai.ToolContext, input assistant.RetrievalToolInput) (string, error) {
			evidence, _, err := tool.Run(toolCtx.Context, input.Question)
			return evidence, err
		},
	)

	return &Client{
		g:       g,
		model:   cfg.ModelName,
		limiter: cfg.RateLimiter,
		toolRef: toolRef,
		logger:  logger,
	}
}

// Generate runs one model call over the given messages. With withTools
// set, the search tool is offered and any tool request comes back in the
// response for the orchestrator to execute.
func (c *Client) Generate(ctx context.Context, messages []*ai.Message, withTools bool) (*ai.ModelResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(c.model),
		ai.WithMessages(messages...),
	}
	if withTools {
		opts = append(opts,
			ai.WithTools(c.toolRef),
			ai.WithReturnToolRequests(true),
		)
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generating with %s: %w", c.model, err)
	}
	return resp, nil
}

// Summarize condenses a conversation transcript. Exposed in the shape
// the memory store expects for its Summarizer hook.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	prompt := "Summarize the following conversation between a portfolio " +
		"website visitor and its AI assistant. Keep every fact the " +
		"assistant stated and every preference the visitor expressed. " +
		"Write at most five sentences.\n\n" + transcript

	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("summarizing with %s: %w", c.model, err)
	}
	return resp.Text(), nil
}
