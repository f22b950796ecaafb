// Package app wires configuration, the Genkit runtime, the document
// store, conversation memory and the HTTP server into a running
// application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/pauldeveaux/portfolio/internal/api"
	"github.com/pauldeveaux/portfolio/internal/assistant"
	"github.com/pauldeveaux/portfolio/internal/cms"
	"github.com/pauldeveaux/portfolio/internal/config"
	"github.com/pauldeveaux/portfolio/internal/log"
	"github.com/pauldeveaux/portfolio/internal/memory"
	"github.com/pauldeveaux/portfolio/internal/model"
	"github.com/pauldeveaux/portfolio/internal/store"
)

// App holds all initialized components.
type App struct {
	Config       *config.Config
	Logger       log.Logger
	Genkit       *genkit.Genkit
	Embedder     ai.Embedder
	Store        *store.DocumentStore
	Memory       *memory.Store
	Model        *model.Client
	Prompts      *assistant.PromptBuilder
	Orchestrator *assistant.Orchestrator
	CMS          *cms.Client
	Indexer      *Indexer
	Server       *api.Server
}

// Setup creates and initializes the application. Call Close to release
// resources.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	a := &App{Config: cfg}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				a.Logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.Logger = provideLogger(cfg)

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g
	a.Embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	a.Store, err = provideStore(ctx, cfg, a.Embedder, a.Logger)
	if err != nil {
		return nil, err
	}

	a.Prompts = assistant.NewPromptBuilder(cfg.Persona)
	tool := assistant.NewRetrievalTool(a.Store, cfg.TopK)
	a.Model = model.New(g, model.Config{ModelName: cfg.ModelName}, tool, a.Logger)

	a.Memory = memory.NewStore(memory.Config{
		MaxHistoryTokens: cfg.MaxHistoryTokens,
	}, a.Model.Summarize, a.Logger)

	a.Orchestrator = assistant.New(a.Memory, a.Model, tool, a.Prompts, a.Logger)

	a.CMS = cms.New(cms.Config{
		BaseURL: cfg.CMSBaseURL,
		APIKey:  cfg.CMSAPIKey,
		Timeout: cfg.CMSTimeout,
	}, a.Logger)

	a.Indexer = NewIndexer(a.CMS, a.Store, a.Prompts, a.Logger)

	a.Server, err = api.NewServer(api.ServerConfig{
		Logger:      a.Logger,
		Assistant:   a.Orchestrator,
		Indexer:     a.Indexer,
		AdminSecret: cfg.AdminSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	return a, nil
}

// Serve runs the HTTP server until ctx is canceled, then shuts down
// gracefully.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.ListenAddr,
		Handler:           a.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", "addr", a.Config.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return <-errCh
}

// Close releases resources in reverse initialization order.
func (a *App) Close() error {
	if a.Store != nil {
		a.Store.Close()
	}
	return nil
}

func provideLogger(cfg *config.Config) log.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return log.New(log.Config{
		Level: level,
		JSON:  cfg.LogJSON,
	})
}

// provideGenkit initializes the Genkit runtime with the Google AI plugin.
// GEMINI_API_KEY is read by the plugin from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideStore builds the document store and connects it, preferring the
// PostgreSQL backend and falling back to the in-process index.
func provideStore(ctx context.Context, cfg *config.Config, embedder ai.Embedder, logger log.Logger) (*store.DocumentStore, error) {
	s := store.New(store.Config{
		Collection:   cfg.Collection,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		PostgresURL:  cfg.PostgresURL,
	}, embedder, logger)

	if err := s.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting document store: %w", err)
	}
	return s, nil
}
