package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tripledger/internal/amqp"
	apphttp "tripledger/internal/http"
	"tripledger/internal/log"
	"tripledger/internal/services"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and CSV exports",
		Long: `Serve the ledger over HTTP.

Record-created events are published to AMQP when AMQP_URL is set.

Example:
  tripledger serve
  PORT=9000 SNAPSHOT_BACKEND=sqlite tripledger serve --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, addr, cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to :$PORT)")

	return cmd
}

func runServe(parent context.Context, opts *RootOptions, addr string, cmd *cobra.Command) error {
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := SetupLogger(cfg, opts.Verbose, cmd.OutOrStdout())
	if addr == "" {
		addr = cfg.Addr()
	}

	ctx, stop := signalContext(parent)
	defer stop()

	var publisher services.EventPublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Logger)
		if err != nil {
			return WrapExitError(ExitFailure, "connect to AMQP", err)
		}
		publisher = client
		logger.Info("Publishing record events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, record events will not be published")
	}

	h, err := openLedger(ctx, cfg, logger, publisher)
	if err != nil {
		return WrapExitError(ExitFailure, "open ledger", err)
	}
	defer func() {
		if err := h.Close(); err != nil {
			logger.Error("Failed to close ledger", log.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(addr, h.Ledger, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting tripledger server", "addr", addr, log.FieldBackend, cfg.SnapshotBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
