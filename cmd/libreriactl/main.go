// Command libreriactl manages the record store from a terminal, using the
// same configuration as the server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"libreria/internal/backend"
	"libreria/internal/cli"
	"libreria/internal/config"
	"libreria/internal/log"
	"libreria/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(envOr("LOG_LEVEL", "warn"))

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	a := &app{out: os.Stdout, in: os.Stdin, now: time.Now}
	a.open = func(ctx context.Context) (*services.LedgerService, func(), error) {
		return openLedger(ctx, logger)
	}

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

// openLedger builds the configured backend. Only backend settings are
// validated: the CLI does not need the web password.
func openLedger(ctx context.Context, logger *log.Logger) (*services.LedgerService, func(), error) {
	cfg := config.Load()
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger.Logger.With(log.FieldComponent, log.ComponentCLI)).CreateBackend(ctx, bc)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s backend: %w", bc.Type, err)
	}
	closer := func() {
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Failed to release backend", "error", err)
			}
		}
	}
	return services.NewLedgerService(res.Backend, res.Events), closer, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
