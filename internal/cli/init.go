// Package cli provides the tripledger commands and their common
// initialization: environment, configuration, logging and the ledger.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tripledger/internal/backend"
	"tripledger/internal/config"
	"tripledger/internal/log"
	"tripledger/internal/services"
	"tripledger/internal/store"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// SetupLogger builds the process logger from configuration and installs it
// as the slog default. --verbose forces debug level.
func SetupLogger(cfg *config.Config, verbose bool, w io.Writer) *log.Logger {
	level := log.ParseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	lc := log.DefaultConfig()
	lc.Level = level
	lc.Component = log.ComponentCLI
	lc.Format = cfg.LogFormat
	lc.Output = w
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ledgerHandle is a loaded ledger and the cleanup of its snapshot store.
type ledgerHandle struct {
	Ledger  *services.LedgerService
	cleanup backend.CleanupFunc
}

func (h *ledgerHandle) Close() error {
	err := h.Ledger.Close()
	if h.cleanup != nil {
		if cerr := h.cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// openLedger creates the configured snapshot backend and loads both
// collections from it. The ledger owns pub, when set: it is closed with the
// ledger, or right away when the ledger cannot be opened.
func openLedger(ctx context.Context, cfg *config.Config, logger *log.Logger, pub services.EventPublisher) (*ledgerHandle, error) {
	slogger := logger.Logger
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		closePublisher(pub, logger)
		return nil, err
	}
	res, err := backend.NewFactory(slogger).CreateBackend(ctx, bcfg)
	if err != nil {
		closePublisher(pub, logger)
		return nil, fmt.Errorf("create snapshot backend: %w", err)
	}

	opts := []services.Option{
		services.WithLogger(slogger),
		services.WithCacheTTL(cfg.ReportCacheTTL),
	}
	if pub != nil {
		opts = append(opts, services.WithPublisher(pub))
	}
	ledger := services.NewLedgerService(
		store.NewExpenses(res.KV, store.WithLogger(slogger)),
		store.NewTrips(res.KV, store.WithLogger(slogger)),
		opts...,
	)
	h := &ledgerHandle{Ledger: ledger, cleanup: res.Cleanup}

	if err := ledger.Load(ctx); err != nil {
		h.Close()
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return h, nil
}

func closePublisher(pub services.EventPublisher, logger *log.Logger) {
	closer, ok := pub.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn("Failed to close publisher", log.FieldError, err)
	}
}
