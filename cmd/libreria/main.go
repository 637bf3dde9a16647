package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"libreria/internal/auth"
	"libreria/internal/backend"
	"libreria/internal/cli"
	apphttp "libreria/internal/http"
	"libreria/internal/log"
	"libreria/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to create backend configuration", "error", err)
		os.Exit(1)
	}

	// An unreachable store at startup is fatal: the dashboard cannot show
	// anything without it.
	res, err := backend.NewFactory(logger.Logger.With(log.FieldComponent, log.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize record store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if err := res.Backend.Ping(ctx); err != nil {
		logger.Error("Record store is not reachable", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Failed to release backend", "error", err)
			}
		}
	}()

	authn, err := auth.New(cfg.AppPassword, cfg.AppPasswordHash, cfg.SessionSecret)
	if err != nil {
		logger.Error("Failed to initialize authentication", "error", err)
		os.Exit(1)
	}

	ledger := services.NewLedgerService(res.Backend, res.Events)
	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:                 ledger,
		Auth:                   authn,
		Health:                 res.Backend,
		LoginAttemptsPerMinute: cfg.LoginAttemptsPerMinute,
		TrustedProxies:         cfg.TrustedProxies,
		Logger:                 logger,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting libreria server", "port", cfg.Port, "backend", cfg.DataBackend, "events", cfg.EventsEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
