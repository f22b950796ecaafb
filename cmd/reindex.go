package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pauldeveaux/portfolio/internal/app"
	"github.com/pauldeveaux/portfolio/internal/config"
)

// runReindex rebuilds the vector index from the CMS and exits.
func runReindex() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	count, err := a.Indexer.Reindex(ctx)
	if err != nil {
		return fmt.Errorf("reindexing: %w", err)
	}

	fmt.Printf("Indexed %d chunks\n", count)
	return nil
}
