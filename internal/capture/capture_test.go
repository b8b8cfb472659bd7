package capture

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/verbatimlabs/verbatim/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestExecSourceBuildArgs(t *testing.T) {
	src, err := NewExecSource(config.CaptureConfig{
		Command:    "arecord -q -f FLOAT_LE -r {rate} -c 1 -t raw {device}",
		Device:     "hw:1,0",
		SampleRate: 16000,
	}, testLogger())
	if err != nil {
		t.Fatalf("new exec source: %v", err)
	}
	args, err := src.buildArgs()
	if err != nil {
		t.Fatalf("build args: %v", err)
	}
	if args[len(args)-1] != "hw:1,0" {
		t.Fatalf("expected device substitution, got %v", args)
	}
	found := false
	for _, a := range args {
		if a == "16000" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected rate substitution in %v", args)
	}
}

func TestExecSourceDropsEmptyDeviceToken(t *testing.T) {
	src, err := NewExecSource(config.CaptureConfig{
		Command:    "arecord -t raw {device}",
		SampleRate: 16000,
	}, testLogger())
	if err != nil {
		t.Fatalf("new exec source: %v", err)
	}
	args, err := src.buildArgs()
	if err != nil {
		t.Fatalf("build args: %v", err)
	}
	if len(args) != 3 {
		t.Fatalf("expected device token dropped, got %v", args)
	}
}

func TestScriptedSourceEmitsSegments(t *testing.T) {
	src := &ScriptedSource{
		SampleRate: 16000,
		BlockMS:    100,
		Segments: []Segment{
			{Amplitude: 0.5, Duration: 500 * time.Millisecond},
			{Amplitude: 0.0001, Duration: 200 * time.Millisecond},
		},
	}

	var total int
	var blocks int
	err := src.Start(context.Background(), func(block []float32) {
		total += len(block)
		blocks++
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	want := 16000*500/1000 + 16000*200/1000
	if total != want {
		t.Fatalf("expected %d samples, got %d", want, total)
	}
	if blocks != 7 {
		t.Fatalf("expected 7 blocks, got %d", blocks)
	}
}

func TestScriptedSourceStopsOnCancel(t *testing.T) {
	src := &ScriptedSource{
		SampleRate: 16000,
		BlockMS:    100,
		Cadence:    time.Millisecond,
		Segments:   []Segment{{Amplitude: 0.5, Duration: time.Hour}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- src.Start(ctx, func([]float32) {})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("source did not stop after cancel")
	}
}

func TestDecodeBlockS16(t *testing.T) {
	raw := []byte{0x00, 0x40, 0x00, 0xC0} // +16384, -16384
	block := decodeBlock(raw, "s16le")
	if len(block) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(block))
	}
	if block[0] != 0.5 || block[1] != -0.5 {
		t.Fatalf("unexpected samples %v", block)
	}
}
