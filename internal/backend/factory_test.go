package backend

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"tripledger/internal/config"
	"tripledger/internal/sheets/memory"
	"tripledger/internal/snapshot"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateBackend(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  Config
		want    any
		wantErr string
	}{
		{name: "memory", config: Config{Type: MemoryBackend}, want: &snapshot.Memory{}},
		{name: "file", config: Config{Type: FileBackend, DataDirectory: filepath.Join(dir, "snap")}, want: &snapshot.File{}},
		{name: "sqlite", config: Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "t.db")}, want: &snapshot.SQLite{}},
		{name: "sqlite without path", config: Config{Type: SQLiteBackend}, wantErr: "SQLite database path is required"},
		{name: "unknown", config: Config{Type: "localstorage"}, wantErr: "invalid backend type"},
	}

	f := NewFactory(quietLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateBackend(context.Background(), tt.config)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			defer res.Cleanup()

			switch tt.want.(type) {
			case *snapshot.Memory:
				if _, ok := res.KV.(*snapshot.Memory); !ok {
					t.Fatalf("got %T", res.KV)
				}
			case *snapshot.File:
				if _, ok := res.KV.(*snapshot.File); !ok {
					t.Fatalf("got %T", res.KV)
				}
			case *snapshot.SQLite:
				if _, ok := res.KV.(*snapshot.SQLite); !ok {
					t.Fatalf("got %T", res.KV)
				}
			}

			ctx := context.Background()
			if err := res.KV.Put(ctx, snapshot.KeyTrips, []byte(`[]`)); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if v, ok, err := res.KV.Get(ctx, snapshot.KeyTrips); err != nil || !ok || string(v) != `[]` {
				t.Fatalf("Get = %q %v %v", v, ok, err)
			}
		})
	}
}

func TestCreateMirror(t *testing.T) {
	f := NewFactory(quietLogger())

	m, err := f.CreateMirror(context.Background(), Config{})
	if err != nil {
		t.Fatalf("CreateMirror: %v", err)
	}
	if _, ok := m.(*memory.Mirror); !ok {
		t.Fatalf("got %T, want memory mirror", m)
	}

	_, err = f.CreateMirror(context.Background(), Config{Mirror: SheetsMirror, GoogleSpreadsheetID: "id"})
	if err == nil || !strings.Contains(err.Error(), "GoogleServiceAccountJSON") {
		t.Fatalf("expected credentials error, got %v", err)
	}

	_, err = f.CreateMirror(context.Background(), Config{Mirror: "excel"})
	if err == nil || !strings.Contains(err.Error(), "invalid mirror type") {
		t.Fatalf("expected invalid mirror error, got %v", err)
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	cfg := &config.Config{
		SnapshotBackend:     "sqlite",
		SQLiteDBPath:        "/tmp/x.db",
		SnapshotDir:         "./data",
		MirrorBackend:       "sheets",
		GoogleSpreadsheetID: "sheet",
		GoogleTripsSheet:    "Trips",
	}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if bc.Type != SQLiteBackend || bc.SQLiteDBPath != "/tmp/x.db" || bc.Mirror != SheetsMirror || bc.GoogleTripsSheet != "Trips" {
		t.Fatalf("unexpected config: %+v", bc)
	}

	cfg.SnapshotBackend = "bogus"
	if _, err := FromAppConfig(cfg); err == nil {
		t.Fatal("expected error for invalid backend")
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := strings.Join(GetBackendTypeStrings(), ",")
	if got != "memory,file,sqlite" {
		t.Fatalf("got %q", got)
	}
}
