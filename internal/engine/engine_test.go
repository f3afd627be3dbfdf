package engine

import (
	"io"
	"log/slog"
	"testing"

	"polymarket-surveillance/internal/config"
)

func TestNewWiresEverySubsystem(t *testing.T) {
	cfg := config.Default()
	cfg.Store.DataDir = t.TempDir()
	cfg.Realtime.Enabled = false
	cfg.Status.Enabled = false

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if eng.processor == nil || eng.store == nil || eng.books == nil || eng.status == nil {
		t.Fatal("expected every subsystem to be constructed")
	}
}

func TestStartStopWithRealtimeDisabledIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Store.DataDir = t.TempDir()
	cfg.Realtime.Enabled = false
	cfg.Status.Enabled = false

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	eng.Stop()
}
