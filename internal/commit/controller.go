// Package commit owns the streaming windowing and commit protocol: it
// accumulates captured audio, decides which pending span is safe to send
// for recognition, merges results into a monotonically growing
// transcript, and flushes the remainder when the session stops.
package commit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/verbatimlabs/verbatim/internal/gate"
	"github.com/verbatimlabs/verbatim/internal/sink"
	"github.com/verbatimlabs/verbatim/internal/stt"
)

// State tracks the session lifecycle. Transitions are one-directional:
// Listening -> Draining -> Flushed.
type State int

const (
	Listening State = iota
	Draining
	Flushed
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Draining:
		return "draining"
	case Flushed:
		return "flushed"
	default:
		return "unknown"
	}
}

type Config struct {
	SampleRate         int
	ChunkInterval      time.Duration
	Gate               gate.Gate
	RecognitionTimeout time.Duration // applies to live cycles only, never the final flush
}

// Summary describes a completed session.
type Summary struct {
	Transcript    string
	Fragments     []string
	Samples       int
	SawActionable bool // false means the whole session was silence
}

// Controller runs the commit cycle. The capture producer appends blocks
// concurrently via Append; the cycle reads a stable prefix of the buffer,
// so the lock is only held for length snapshots and appends, never across
// a recognition call.
type Controller struct {
	cfg     Config
	rec     stt.Recognizer
	sink    sink.Sink
	log     *slog.Logger
	metrics *Metrics

	mu            sync.Mutex
	buf           []float32
	watermark     int
	state         State
	fragments     []string
	sawActionable bool
}

// New builds a controller. metrics may be nil.
func New(cfg Config, rec stt.Recognizer, snk sink.Sink, log *slog.Logger, metrics *Metrics) *Controller {
	return &Controller{
		cfg:     cfg,
		rec:     rec,
		sink:    snk,
		log:     log,
		metrics: metrics,
	}
}

// Append adds a captured block to the buffer. Blocks arriving after the
// stop signal are dropped; everything buffered before it is covered by
// the final flush.
func (c *Controller) Append(block []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Listening {
		return
	}
	c.buf = append(c.buf, block...)
}

// Run executes commit cycles on the chunk cadence until ctx is cancelled,
// then drains and flushes. The returned summary always reflects every
// committed fragment, regardless of sink errors.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	ticker := time.NewTicker(c.cfg.ChunkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.flush(context.WithoutCancel(ctx))
		case <-ticker.C:
			c.cycle(ctx, false)
		}
	}
}

// cycle evaluates the pending span once. Exactly one recognition call is
// ever in flight: slow recognition just means a larger span next cycle.
func (c *Controller) cycle(ctx context.Context, final bool) {
	c.mu.Lock()
	snapLen := len(c.buf)
	span := c.buf[c.watermark:snapLen]
	c.mu.Unlock()

	if len(span) == 0 {
		return
	}

	switch c.cfg.Gate.Evaluate(span) {
	case gate.TooShort:
		// Left pending so the samples are re-evaluated next cycle. At
		// flush time there is no next cycle; the tail is dropped as
		// unrecognizable.
		return
	case gate.Silent:
		c.advance(snapLen)
		c.metrics.observeSilent(len(span))
		c.log.Debug("silent span consumed", slog.Int("samples", len(span)))
		return
	}

	c.mu.Lock()
	c.sawActionable = true
	c.mu.Unlock()

	rctx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if !final && c.cfg.RecognitionTimeout > 0 {
		rctx, cancel = context.WithTimeout(rctx, c.cfg.RecognitionTimeout)
	}
	started := time.Now()
	res, err := c.rec.Transcribe(rctx, span, c.cfg.SampleRate, final)
	cancel()
	c.metrics.observeRecognition(time.Since(started))

	// The span is final once evaluated: advance on failure and on empty
	// text as well, so no byte range is ever recognized twice.
	c.advance(snapLen)

	if err != nil {
		c.log.Warn("recognition failed, span skipped",
			slog.String("error", err.Error()),
			slog.Int("samples", len(span)))
		c.metrics.observeFailure()
		return
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		c.log.Debug("no speech in span", slog.Int("samples", len(span)))
		return
	}

	c.mu.Lock()
	c.fragments = append(c.fragments, text)
	full := strings.Join(c.fragments, " ")
	c.mu.Unlock()

	c.metrics.observeCommit()
	c.log.Debug("fragment committed",
		slog.Int("samples", len(span)),
		slog.Int("fragments", len(c.fragments)),
		slog.Float64("confidence", res.Confidence))

	if !final {
		c.sink.Partial(full)
	}
}

func (c *Controller) advance(n int) {
	c.mu.Lock()
	if n > c.watermark {
		c.watermark = n
	}
	c.mu.Unlock()
}

// flush performs the drain-and-flush pass: capture has stopped, one last
// evaluation covers the unevaluated tail, then the transcript is sealed
// and the buffer released. Every sample buffered before the stop signal
// is covered by a prior commit, a silence verdict, or this pass.
func (c *Controller) flush(ctx context.Context) (Summary, error) {
	c.mu.Lock()
	if c.state != Listening {
		state := c.state
		c.mu.Unlock()
		c.log.Warn("flush ignored", slog.String("state", state.String()))
		return Summary{}, nil
	}
	c.state = Draining
	pending := len(c.buf) - c.watermark
	c.mu.Unlock()

	c.log.Info("draining session", slog.Int("pending_samples", pending))
	c.cycle(ctx, true)

	c.mu.Lock()
	c.state = Flushed
	summary := Summary{
		Transcript:    strings.Join(c.fragments, " "),
		Fragments:     append([]string(nil), c.fragments...),
		Samples:       len(c.buf),
		SawActionable: c.sawActionable,
	}
	c.watermark = len(c.buf)
	c.buf = nil
	c.mu.Unlock()

	c.log.Info("session flushed",
		slog.Int("samples", summary.Samples),
		slog.Int("fragments", len(summary.Fragments)))

	return summary, c.sink.Final(summary.Transcript)
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Watermark reports how many samples have been evaluated.
func (c *Controller) Watermark() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watermark
}

// Buffered reports the current buffer length in samples.
func (c *Controller) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Transcript returns the joined transcript committed so far.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.fragments, " ")
}
