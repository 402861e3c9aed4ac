package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felo/mailtail/internal/config"
	"github.com/felo/mailtail/internal/handlers"
	"github.com/felo/mailtail/internal/ingest"
	"github.com/felo/mailtail/internal/maildb"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("shutting down after task failure", "error", err)
		os.Exit(1)
	}
	logger.Info("all tasks finished")
}

// run wires the four long-running tasks together: the query endpoint, the
// one-shot bootstrap pass and the two live tailers. The first task error
// cancels the rest and is returned; an interrupt cancels everything and is
// a clean exit. Normal completion of a single task (bootstrap finishing)
// leaves the others running.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := maildb.New(logger)
	ing := ingest.New(db, cfg, logger)
	h := handlers.New(db, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveHTTP(ctx, cfg, h, logger) })
	g.Go(func() error { return ing.Bootstrap(ctx) })
	g.Go(func() error { return ing.TailDeliveryLog(ctx) })
	g.Go(func() error { return ing.TailMailContent(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serveHTTP runs the query endpoint until ctx is cancelled, then shuts it
// down gracefully. TLS is used when the config carries cert paths.
func serveHTTP(ctx context.Context, cfg *config.Config, h *handlers.Handlers, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "tls", cfg.TLS != nil)
		if cfg.TLS != nil {
			errCh <- srv.ListenAndServeTLS(cfg.TLS.Cert, cfg.TLS.Key)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	}
}
