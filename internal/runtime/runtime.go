// Package runtime wires capture, commit, recognition, and sinks into a
// dictation session and hosts the operational surfaces around it.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/verbatimlabs/verbatim/internal/audio"
	"github.com/verbatimlabs/verbatim/internal/bus"
	"github.com/verbatimlabs/verbatim/internal/capture"
	"github.com/verbatimlabs/verbatim/internal/commit"
	"github.com/verbatimlabs/verbatim/internal/config"
	"github.com/verbatimlabs/verbatim/internal/gate"
	"github.com/verbatimlabs/verbatim/internal/history"
	"github.com/verbatimlabs/verbatim/internal/natsserver"
	"github.com/verbatimlabs/verbatim/internal/protocol"
	"github.com/verbatimlabs/verbatim/internal/sink"
	"github.com/verbatimlabs/verbatim/internal/stt"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger
	ready  atomic.Bool
	wg     sync.WaitGroup

	// Source overrides the configured capture source when set. Used by
	// tests and dry runs.
	Source capture.Source
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{cfg: cfg, logger: logger}
}

// Run executes one dictation session: capture until ctx is cancelled or
// the source ends, then drain, flush, persist, and shut down.
func (r *Runtime) Run(ctx context.Context) error {
	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	httpServer := r.startHTTP(metricsHandler)

	embedded, busClient, err := r.connectBus(ctx)
	if err != nil {
		return err
	}

	store, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}

	recognizer, err := stt.New(r.cfg.STT)
	if err != nil {
		return fmt.Errorf("build recognizer: %w", err)
	}

	source := r.Source
	if source == nil {
		source, err = r.buildSource()
		if err != nil {
			return err
		}
	}

	sessionID := uuid.NewString()
	sinks := r.buildSinks(busClient, sessionID)

	meter := otel.Meter("verbatim/dictation")
	metrics, err := commit.NewMetrics(meter)
	if err != nil {
		r.logger.Warn("commit metrics disabled", slog.String("error", err.Error()))
		metrics = nil
	}

	controller := commit.New(commit.Config{
		SampleRate:         r.cfg.Capture.SampleRate,
		ChunkInterval:      time.Duration(r.cfg.Commit.ChunkIntervalMS) * time.Millisecond,
		Gate:               gate.New(r.cfg.Capture.SampleRate, r.cfg.Commit.MinSpanMS, r.cfg.Commit.SilenceThreshold),
		RecognitionTimeout: time.Duration(r.cfg.Commit.RecognitionTimeoutMS) * time.Millisecond,
	}, recognizer, sinks, r.logger, metrics)

	archive := r.openArchive(sessionID)

	r.publishSessionEvent(busClient, protocol.SubjectSessionStarted, protocol.SessionEvent{
		SessionID:  sessionID,
		SampleRate: r.cfg.Capture.SampleRate,
		Timestamp:  time.Now().UTC(),
	})

	r.ready.Store(true)
	r.logger.Info("session started", slog.String("session_id", sessionID))

	sessionCtx, endSession := context.WithCancel(ctx)
	defer endSession()

	var archiveErr atomic.Bool
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := source.Start(sessionCtx, func(block []float32) {
			controller.Append(block)
			if archive != nil {
				if werr := archive.WriteBlock(block); werr != nil && !archiveErr.Swap(true) {
					r.logger.Warn("session archive write failed", slog.String("error", werr.Error()))
				}
			}
		})
		if err != nil {
			r.logger.Error("capture failed", slog.String("error", err.Error()))
		}
		// End of stream is handled exactly like a stop request.
		endSession()
	}()

	started := time.Now()
	tracer := otel.Tracer("verbatim/runtime")
	spanCtx, span := tracer.Start(sessionCtx, "dictation.session")
	summary, runErr := controller.Run(spanCtx)
	span.End()
	ended := time.Now()

	cleanupCtx, cancelCleanup := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancelCleanup()

	// The HTTP goroutine only exits once Shutdown is called, so it must
	// come before the wait.
	if httpServer != nil {
		if err := httpServer.Shutdown(cleanupCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()
	if runErr != nil {
		r.logger.Warn("final sink error", slog.String("error", runErr.Error()))
	}

	if archive != nil {
		if err := archive.Close(); err != nil {
			r.logger.Warn("session archive close failed", slog.String("error", err.Error()))
		}
	}

	if err := store.SaveSession(cleanupCtx, history.Session{
		ID:         sessionID,
		StartedAt:  started,
		EndedAt:    ended,
		Transcript: summary.Transcript,
		DurationMS: ended.Sub(started).Milliseconds(),
	}, summary.Fragments); err != nil {
		r.logger.Warn("failed to save session history", slog.String("error", err.Error()))
	}
	if err := store.Close(); err != nil {
		r.logger.Warn("failed to close history store", slog.String("error", err.Error()))
	}

	reason := "stopped"
	if !summary.SawActionable {
		reason = "no_speech"
	}
	r.publishSessionEvent(busClient, protocol.SubjectSessionEnded, protocol.SessionEvent{
		SessionID: sessionID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})

	busClient.Close()
	embedded.Shutdown()

	if err := shutdownTelemetry(cleanupCtx); err != nil {
		r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
	}

	r.logger.Info("session complete",
		slog.String("session_id", sessionID),
		slog.Int("fragments", len(summary.Fragments)),
		slog.Int("samples", summary.Samples),
		slog.String("reason", reason))

	return nil
}

func (r *Runtime) buildSource() (capture.Source, error) {
	switch r.cfg.Capture.Mode {
	case "exec":
		return capture.NewExecSource(r.cfg.Capture, r.logger)
	case "scripted":
		// Dry-run source: a short burst of tone followed by silence.
		return &capture.ScriptedSource{
			SampleRate: r.cfg.Capture.SampleRate,
			BlockMS:    r.cfg.Capture.BlockMS,
			Cadence:    time.Duration(r.cfg.Capture.BlockMS) * time.Millisecond,
			Segments: []capture.Segment{
				{Amplitude: 0.3, Duration: 3 * time.Second},
				{Amplitude: 0.0001, Duration: time.Second},
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown capture mode %q", r.cfg.Capture.Mode)
	}
}

func (r *Runtime) buildSinks(busClient *bus.Client, sessionID string) sink.Sink {
	var sinks sink.Multi
	if r.cfg.Sink.Console {
		sinks = append(sinks, sink.NewConsole(os.Stdout))
	}
	if r.cfg.Sink.Clipboard {
		sinks = append(sinks, sink.NewClipboard(r.cfg.Sink.ClipboardCommands, r.logger))
	}
	if busClient != nil {
		sinks = append(sinks, sink.NewBus(busClient.Conn(), sessionID, r.logger))
	}
	return sinks
}

func (r *Runtime) connectBus(ctx context.Context) (*natsserver.EmbeddedServer, *bus.Client, error) {
	if !r.cfg.Bus.Enabled {
		return nil, nil, nil
	}
	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("start embedded bus: %w", err)
	}
	busCfg := r.cfg.Bus
	if embedded != nil {
		busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", r.cfg.Bus.Port)}
	}
	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		embedded.Shutdown()
		return nil, nil, fmt.Errorf("connect bus: %w", err)
	}
	return embedded, client, nil
}

func (r *Runtime) openArchive(sessionID string) *audio.Writer {
	if r.cfg.Commit.ArchiveDir == "" {
		return nil
	}
	path := filepath.Join(r.cfg.Commit.ArchiveDir, sessionID+".wav")
	archive, err := audio.NewWriter(path, r.cfg.Capture.SampleRate)
	if err != nil {
		r.logger.Warn("session archive disabled", slog.String("error", err.Error()))
		return nil
	}
	r.logger.Info("archiving session audio", slog.String("path", path))
	return archive
}

func (r *Runtime) publishSessionEvent(busClient *bus.Client, subject string, evt protocol.SessionEvent) {
	if busClient == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		r.logger.Warn("failed to marshal session event", slog.String("error", err.Error()))
		return
	}
	if err := busClient.Conn().Publish(subject, data); err != nil {
		r.logger.Warn("failed to publish session event", slog.String("error", err.Error()))
	}
}

func (r *Runtime) startHTTP(metricsHandler http.Handler) *http.Server {
	if !r.cfg.HTTP.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if r.ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()
	r.logger.Info("http server started", slog.String("addr", addr))
	return server
}
