package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/verbatimlabs/verbatim/internal/config"
	"github.com/verbatimlabs/verbatim/internal/runtime"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
		modelPath   string
		device      string
		chunkSec    float64
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.StringVar(&modelPath, "model", "", "Override stt.model_path")
	flag.StringVar(&device, "device", "", "Override capture.device")
	flag.Float64Var(&chunkSec, "chunk", 0, "Override commit interval in seconds")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	// Logs go to stderr so the live transcript line on stdout stays clean.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if modelPath != "" {
		cfg.STT.ModelPath = modelPath
	}
	if device != "" {
		cfg.Capture.Device = device
	}
	if chunkSec > 0 {
		cfg.Commit.ChunkIntervalMS = int(chunkSec * 1000)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Telemetry.LogLevel),
	}))

	rt := runtime.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
