package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tripledger/internal/amqp"
	"tripledger/internal/backend"
	"tripledger/internal/log"
	"tripledger/internal/worker"
)

// WorkerOptions holds flags for the worker command.
type WorkerOptions struct {
	*RootOptions
	SyncInterval time.Duration
	Once         bool
}

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Mirror new records to the configured mirror",
		Long: `Consume record-created events and append each record to the mirror
(MIRROR_BACKEND=sheets for Google Sheets).

On startup, and then every --sync-interval, records missing from the mirror
are appended oldest first, so events lost while the worker was down are
recovered.

Example:
  tripledger worker
  tripledger worker --once --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), opts, cmd)
		},
	}
	cmd.Flags().DurationVar(&opts.SyncInterval, "sync-interval", 5*time.Minute, "interval between catch-up syncs (0 disables)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "run one catch-up sync and exit without consuming events")

	return cmd
}

func runWorker(parent context.Context, opts *WorkerOptions, cmd *cobra.Command) error {
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := SetupLogger(cfg, opts.Verbose, cmd.ErrOrStderr()).WithComponent(log.ComponentWorker)
	out := opts.formatter(cmd)

	if !opts.Once && !cfg.AMQPEnabled() {
		return NewExitError(ExitCommandError, "AMQP_URL is required unless --once is set")
	}
	if !opts.Once && cfg.SnapshotBackend == "memory" {
		return NewExitError(ExitCommandError, "SNAPSHOT_BACKEND=memory is private to one process; the worker needs the file or sqlite backend shared with serve")
	}

	ctx, stop := signalContext(parent)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid backend configuration", err)
	}
	factory := backend.NewFactory(logger.Logger)
	res, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return WrapExitError(ExitFailure, "create snapshot backend", err)
	}
	defer res.Cleanup()

	mirror, err := factory.CreateMirror(ctx, bcfg)
	if err != nil {
		return WrapExitError(ExitFailure, "create mirror", err)
	}
	w := worker.NewMirrorWorker(res.KV, mirror, logger.Logger)

	logger.Info("Performing startup sync check", log.FieldOperation, log.OpStartup)
	n, err := w.SyncPending(ctx)
	if err != nil {
		logger.Error("Startup sync failed", log.FieldError, err)
		if opts.Once {
			return WrapExitError(ExitFailure, "sync pending records", err)
		}
	}
	if opts.Once {
		return out.Success(syncResult{Mirrored: n})
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Logger)
	if err != nil {
		return WrapExitError(ExitFailure, "connect to AMQP", err)
	}
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeRecordEvents(gctx, w.HandleRecordEvent)
	})
	if opts.SyncInterval > 0 {
		g.Go(func() error {
			periodicSync(gctx, w, opts.SyncInterval, logger)
			return nil
		})
	}

	logger.Info("Worker started", "queue", cfg.AMQPQueue, "mirror", cfg.MirrorBackend)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "consume record events", err)
	}
	logger.Info("Worker stopped")
	return nil
}

func periodicSync(ctx context.Context, w *worker.MirrorWorker, every time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.SyncPending(ctx); err != nil {
				logger.Error("Periodic sync failed", log.FieldError, err)
			} else if n > 0 {
				logger.Info("Periodic sync mirrored records", log.FieldRecords, n)
			}
		}
	}
}

type syncResult struct {
	Mirrored int `json:"mirrored"`
}

func (r syncResult) String() string {
	if r.Mirrored == 1 {
		return "Mirrored 1 record"
	}
	return fmt.Sprintf("Mirrored %d records", r.Mirrored)
}
