package backend

import (
	"context"
	"fmt"
	"log/slog"

	"tripledger/internal/log"
	"tripledger/internal/sheets"
	gsheet "tripledger/internal/sheets/google"
	"tripledger/internal/sheets/memory"
	"tripledger/internal/snapshot"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	base   *slog.Logger
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		base:   logger,
		logger: logger.With(log.FieldComponent, log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case FileBackend:
		return f.createFileBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	kv, err := snapshot.NewSQLite(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite snapshot store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{KV: kv, Cleanup: kv.Close}, nil
}

func (f *DefaultFactory) createFileBackend(ctx context.Context, config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	kv, err := snapshot.NewFile(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file snapshot store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized file backend", "data_directory", dataDir)

	return &BackendResult{KV: kv, Cleanup: kv.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	kv := snapshot.NewMemory()

	f.logger.InfoContext(ctx, "Initialized memory backend, snapshots are not durable")

	return &BackendResult{KV: kv, Cleanup: kv.Close}, nil
}

// CreateMirror implements Factory.CreateMirror
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (sheets.RecordMirror, error) {
	if config.Mirror == "" {
		config.Mirror = MemoryMirror
	}
	if err := config.ValidateMirror(); err != nil {
		return nil, err
	}

	switch config.Mirror {
	case SheetsMirror:
		cli, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			ExpensesSheet:   config.GoogleExpensesSheet,
			TripsSheet:      config.GoogleTripsSheet,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
			Logger:          f.base,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Google Sheets mirror", "spreadsheet_id", config.GoogleSpreadsheetID)
		return cli, nil
	default:
		f.logger.InfoContext(ctx, "Initialized memory mirror")
		return memory.New(), nil
	}
}
