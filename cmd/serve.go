package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pauldeveaux/portfolio/internal/app"
	"github.com/pauldeveaux/portfolio/internal/config"
)

// runServe initializes the application and serves HTTP until interrupted.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr, err := parseServeAddr(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}
	cfg.ListenAddr = addr

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

	a.Logger.Info("starting portfolio assistant", "version", Version)
	return a.Serve(ctx)
}
