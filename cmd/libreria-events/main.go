// Command libreria-events consumes the record event feed and writes it to
// the log as an audit trail of every append and delete.
package main

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"libreria/internal/amqp"
	"libreria/internal/backend"
	"libreria/internal/cli"
	"libreria/internal/config"
	"libreria/internal/log"
	"libreria/internal/services"
	"libreria/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	cfg := config.Load()
	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required to consume record events")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	// The store is optional here: without it only the events are logged.
	var ledger *services.LedgerService
	if bc, err := backend.FromAppConfig(cfg); err != nil {
		logger.Warn("Invalid backend configuration, period reports disabled", "error", err)
	} else {
		bc.AMQPURL = "" // this process only consumes
		res, err := backend.NewFactory(logger.Logger.With(log.FieldComponent, log.ComponentBackend)).CreateBackend(ctx, bc)
		if err != nil {
			logger.Warn("Record store unavailable, period reports disabled", "error", err, "backend", cfg.DataBackend)
		} else {
			if res.Cleanup != nil {
				defer res.Cleanup()
			}
			ledger = services.NewLedgerService(res.Backend, nil)
		}
	}

	client, err := amqp.ConnectWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	audit := worker.NewAuditWorker(ledger, logger)
	if err := audit.StartupCheck(ctx); err != nil {
		logger.Warn("Startup check failed", "error", err)
	}

	logger.Info("Starting libreria-events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Consume(gctx, audit.HandleEvent)
	})

	err = g.Wait()
	s := audit.Stats()
	logger.Info("libreria-events stopped", "appended", s.Appended, "deleted", s.Deleted, "unknown", s.Unknown)
	if err != nil && ctx.Err() == nil {
		logger.Error("Consumer stopped", "error", err)
		os.Exit(1)
	}
}
