package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/secret-hitler-backend/internal/config"
	"github.com/DoyleJ11/secret-hitler-backend/internal/httpapi"
	"github.com/DoyleJ11/secret-hitler-backend/internal/hub"
	"github.com/DoyleJ11/secret-hitler-backend/internal/store"
	"github.com/DoyleJ11/secret-hitler-backend/internal/ws"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := cfg.Logger()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	snapshots, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, snapshots.Close()) }()

	h := hub.NewHub(ctx, hub.Options{
		Store:        snapshots,
		Logger:       logger,
		TickInterval: cfg.ClockTickInterval,
		InboxSize:    cfg.LobbyInboxSize,
	})

	// Build the router *with* the hub injected
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(h, logger, ws.Options{
			OutboxSize:     cfg.ClientOutboxSize,
			OriginPatterns: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		select {
		case <-h.Done():
		case <-shutdownCtx.Done():
			err = multierr.Append(err, fmt.Errorf("waiting for hub: %w", shutdownCtx.Err()))
		}
		return err
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("no DATABASE_URL, keeping snapshots in memory")
		return store.NewMemory(), nil
	}
	pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	return pg, nil
}
