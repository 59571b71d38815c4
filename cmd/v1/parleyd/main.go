package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/parley-chat/parley/internal/v1/config"
	"github.com/parley-chat/parley/internal/v1/httpapi"
	"github.com/parley-chat/parley/internal/v1/logging"
	"github.com/parley-chat/parley/internal/v1/room"
	"github.com/parley-chat/parley/internal/v1/server"
	"github.com/parley-chat/parley/internal/v1/tracing"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Info("no .env file found, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("boot failed: invalid environment", "error", err)
		return 1
	}

	if err := logging.Initialize(cfg.GoEnv, cfg.LogLevel); err != nil {
		slog.Error("boot failed: logger initialization", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing is a no-op unless a collector endpoint is configured.
	stopTracing, err := tracing.Setup(ctx, cfg)
	if err != nil {
		slog.Error("boot failed: tracer provider", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stopTracing(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// Seed the room registry. Any seed problem aborts before the listener
	// starts.
	defs, err := room.LoadDefinitions(cfg.RoomsFile)
	if err != nil {
		slog.Error("boot failed: rooms seed", "error", err)
		return 1
	}
	manager, err := room.NewManager(defs, cfg.BusCapacity)
	if err != nil {
		slog.Error("boot failed: room registry", "error", err)
		return 1
	}

	listener := server.NewListener(cfg.BindAddr, manager, cfg.WriteTimeout, cfg.SessionBuf)

	ops, err := httpapi.New(ctx, cfg, manager, listener)
	if err != nil {
		slog.Error("boot failed: ops server", "error", err)
		return 1
	}
	opsSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: ops.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return listener.Serve(ctx)
	})

	g.Go(func() error {
		slog.Info("ops server starting", "addr", cfg.HTTPAddr)
		if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := opsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("ops server forced to shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server exited with error", "error", err)
		return 1
	}

	manager.Close()
	slog.Info("server exiting")
	return 0
}
