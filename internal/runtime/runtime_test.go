package runtime

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/verbatimlabs/verbatim/internal/capture"
	"github.com/verbatimlabs/verbatim/internal/config"
	"github.com/verbatimlabs/verbatim/internal/history"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// One whole session: scripted capture, mock recognition, health/metrics
// HTTP enabled, history persistence. Run must return on its own once the
// source ends and leave a saved session behind.
func TestRunCompletesSessionWithHTTPEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Enabled = true
	cfg.HTTP.Bind = "127.0.0.1"
	cfg.HTTP.Port = 0 // ephemeral, avoids collisions between test runs
	cfg.Bus.Enabled = false
	cfg.Sink.Console = false
	cfg.Sink.Clipboard = false
	cfg.STT.Mode = "mock"
	cfg.Commit.ChunkIntervalMS = 50
	cfg.Commit.MinSpanMS = 100
	cfg.Commit.ArchiveDir = ""
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")

	rt := New(cfg, testLogger())
	rt.Source = &capture.ScriptedSource{
		SampleRate: cfg.Capture.SampleRate,
		BlockMS:    cfg.Capture.BlockMS,
		Cadence:    5 * time.Millisecond,
		Segments: []capture.Segment{
			{Amplitude: 0.5, Duration: 400 * time.Millisecond},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after the source ended")
	}

	store, err := history.Open(context.Background(), cfg.History, testLogger())
	if err != nil {
		t.Fatalf("reopen history store: %v", err)
	}
	defer store.Close()

	sessions, err := store.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 saved session, got %d", len(sessions))
	}
	if sessions[0].Transcript == "" {
		t.Fatal("expected non-empty transcript from actionable audio")
	}
}
