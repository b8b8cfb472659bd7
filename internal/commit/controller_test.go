package commit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/verbatimlabs/verbatim/internal/gate"
	"github.com/verbatimlabs/verbatim/internal/stt"
)

const rate = 16000

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	return Config{
		SampleRate:    rate,
		ChunkInterval: 2 * time.Second,
		Gate:          gate.New(rate, 300, 0.005),
	}
}

// fakeRecognizer records every span it is handed and replies from a
// scripted list of results.
type fakeRecognizer struct {
	mu      sync.Mutex
	spans   []int
	finals  []bool
	results []stt.Result
	errs    []error
	calls   int
}

func (f *fakeRecognizer) Transcribe(_ context.Context, samples []float32, _ int, final bool) (stt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spans = append(f.spans, len(samples))
	f.finals = append(f.finals, final)
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return stt.Result{}, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return stt.Result{Text: fmt.Sprintf("frag%d", i+1)}, nil
}

type captureSink struct {
	mu       sync.Mutex
	partials []string
	finals   []string
}

func (s *captureSink) Partial(full string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partials = append(s.partials, full)
}

func (s *captureSink) Final(full string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, full)
	return nil
}

func speech(seconds float64) []float32 {
	n := int(seconds * rate)
	s := make([]float32, n)
	for i := range s {
		if i%2 == 0 {
			s[i] = 0.5
		} else {
			s[i] = -0.5
		}
	}
	return s
}

func quiet(seconds float64) []float32 {
	n := int(seconds * rate)
	s := make([]float32, n)
	for i := range s {
		s[i] = 0.0001
	}
	return s
}

func TestSilentSessionAdvancesWatermarkWithoutRecognition(t *testing.T) {
	rec := &fakeRecognizer{}
	snk := &captureSink{}
	c := New(testConfig(), rec, snk, testLogger(), nil)

	// Four 0.5s blocks of near-silence arrive before the first cycle.
	for i := 0; i < 4; i++ {
		c.Append(quiet(0.5))
	}
	c.cycle(context.Background(), false)

	if got := c.Watermark(); got != 2*rate {
		t.Fatalf("expected watermark %d after first cycle, got %d", 2*rate, got)
	}
	c.Append(quiet(0.5))
	c.cycle(context.Background(), false)

	if got := c.Watermark(); got != int(2.5*rate) {
		t.Fatalf("expected watermark %d after second cycle, got %d", int(2.5*rate), got)
	}
	if rec.calls != 0 {
		t.Fatalf("expected no recognition calls for silence, got %d", rec.calls)
	}
	if c.Transcript() != "" {
		t.Fatalf("expected empty transcript, got %q", c.Transcript())
	}
}

func TestTwoChunksOfSpeechYieldTwoNonOverlappingCalls(t *testing.T) {
	rec := &fakeRecognizer{}
	snk := &captureSink{}
	c := New(testConfig(), rec, snk, testLogger(), nil)

	c.Append(speech(2.0))
	c.cycle(context.Background(), false)
	first := c.Watermark()

	c.Append(speech(2.0))
	c.cycle(context.Background(), false)

	if rec.calls != 2 {
		t.Fatalf("expected exactly 2 recognition calls, got %d", rec.calls)
	}
	if rec.spans[0] != 2*rate || rec.spans[1] != 2*rate {
		t.Fatalf("expected two 2s spans, got %v", rec.spans)
	}
	if first != 2*rate || c.Watermark() != 4*rate {
		t.Fatalf("expected watermarks %d then %d, got %d then %d", 2*rate, 4*rate, first, c.Watermark())
	}
	if got := c.Transcript(); got != "frag1 frag2" {
		t.Fatalf("expected ordered fragments, got %q", got)
	}
	if len(snk.partials) != 2 || snk.partials[1] != "frag1 frag2" {
		t.Fatalf("expected growing partials, got %v", snk.partials)
	}
}

func TestTooShortSpanStaysPending(t *testing.T) {
	rec := &fakeRecognizer{}
	c := New(testConfig(), rec, &captureSink{}, testLogger(), nil)

	c.Append(speech(0.2))
	c.cycle(context.Background(), false)

	if c.Watermark() != 0 {
		t.Fatalf("expected watermark unchanged, got %d", c.Watermark())
	}
	if rec.calls != 0 {
		t.Fatalf("expected no recognition call, got %d", rec.calls)
	}

	// More audio arrives; the pending samples are evaluated together.
	c.Append(speech(0.3))
	c.cycle(context.Background(), false)

	if rec.calls != 1 || rec.spans[0] != int(0.5*rate) {
		t.Fatalf("expected one call over the combined span, got calls=%d spans=%v", rec.calls, rec.spans)
	}
}

func TestEmptyRecognitionStillAdvances(t *testing.T) {
	rec := &fakeRecognizer{results: []stt.Result{{Text: "   "}}}
	c := New(testConfig(), rec, &captureSink{}, testLogger(), nil)

	c.Append(speech(1.0))
	c.cycle(context.Background(), false)

	if c.Watermark() != rate {
		t.Fatalf("expected watermark advanced past unrecognized span, got %d", c.Watermark())
	}
	if c.Transcript() != "" {
		t.Fatalf("expected no fragment for empty text, got %q", c.Transcript())
	}

	// The same range must never be evaluated twice.
	c.cycle(context.Background(), false)
	if rec.calls != 1 {
		t.Fatalf("expected no re-evaluation, got %d calls", rec.calls)
	}
}

func TestRecognitionFailureIsSkippedNotFatal(t *testing.T) {
	rec := &fakeRecognizer{errs: []error{errors.New("decode error")}}
	snk := &captureSink{}
	c := New(testConfig(), rec, snk, testLogger(), nil)

	c.Append(speech(1.0))
	c.cycle(context.Background(), false)

	if c.Watermark() != rate {
		t.Fatalf("expected failed span committed, got watermark %d", c.Watermark())
	}

	c.Append(speech(1.0))
	c.cycle(context.Background(), false)

	if got := c.Transcript(); got != "frag2" {
		t.Fatalf("expected session to continue after failure, got %q", got)
	}
}

func TestFlushCoversBufferedTail(t *testing.T) {
	rec := &fakeRecognizer{}
	snk := &captureSink{}
	c := New(testConfig(), rec, snk, testLogger(), nil)

	c.Append(speech(2.0))
	c.cycle(context.Background(), false)

	// Stop arrives with 0.4s of unevaluated, non-silent audio buffered.
	c.Append(speech(0.4))
	summary, err := c.flush(context.Background())
	if err != nil {
		t.Fatalf("flush: %v", err)
	}

	if rec.calls != 2 {
		t.Fatalf("expected exactly one extra recognition call, got %d total", rec.calls)
	}
	if rec.spans[1] != int(0.4*rate) {
		t.Fatalf("expected 0.4s tail span, got %d samples", rec.spans[1])
	}
	if !rec.finals[1] || rec.finals[0] {
		t.Fatalf("expected only the tail call marked final, got %v", rec.finals)
	}
	if summary.Transcript != "frag1 frag2" {
		t.Fatalf("expected tail appended after prior commits, got %q", summary.Transcript)
	}
	if c.State() != Flushed {
		t.Fatalf("expected Flushed state, got %s", c.State())
	}
	if c.Watermark() != summary.Samples {
		t.Fatalf("expected full coverage: watermark %d vs %d samples", c.Watermark(), summary.Samples)
	}
	if len(snk.finals) != 1 || snk.finals[0] != "frag1 frag2" {
		t.Fatalf("expected exactly one final notification, got %v", snk.finals)
	}
}

func TestFlushDropsTooShortTail(t *testing.T) {
	rec := &fakeRecognizer{}
	c := New(testConfig(), rec, &captureSink{}, testLogger(), nil)

	c.Append(speech(0.1))
	summary, err := c.flush(context.Background())
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if rec.calls != 0 {
		t.Fatalf("expected no recognition for a sub-minimum tail, got %d", rec.calls)
	}
	if c.Watermark() != summary.Samples {
		t.Fatalf("expected coverage of dropped tail, watermark %d vs %d", c.Watermark(), summary.Samples)
	}
	if summary.SawActionable {
		t.Fatal("expected SawActionable false")
	}
}

func TestAppendIgnoredAfterDrain(t *testing.T) {
	c := New(testConfig(), &fakeRecognizer{}, &captureSink{}, testLogger(), nil)
	c.Append(quiet(0.5))
	if _, err := c.flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	c.Append(speech(1.0))
	if got := c.Buffered(); got != 0 {
		t.Fatalf("expected buffer released and appends dropped, got %d", got)
	}
}

func TestWatermarkMonotonicUnderConcurrentAppends(t *testing.T) {
	rec := &fakeRecognizer{}
	c := New(testConfig(), rec, &captureSink{}, testLogger(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			c.Append(speech(0.05))
		}
	}()

	last := 0
	for i := 0; i < 50; i++ {
		c.cycle(context.Background(), false)
		w := c.Watermark()
		if w < last {
			t.Fatalf("watermark regressed: %d -> %d", last, w)
		}
		if b := c.Buffered(); w > b {
			t.Fatalf("watermark %d exceeds buffer length %d", w, b)
		}
		last = w
	}
	<-done
}

func TestRunCommitsAndFlushesOnCancel(t *testing.T) {
	rec := &fakeRecognizer{}
	snk := &captureSink{}
	cfg := testConfig()
	cfg.ChunkInterval = 20 * time.Millisecond
	c := New(cfg, rec, snk, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		summary Summary
		err     error
	}
	out := make(chan result, 1)
	go func() {
		s, err := c.Run(ctx)
		out <- result{s, err}
	}()

	c.Append(speech(1.0))
	time.Sleep(60 * time.Millisecond)
	c.Append(speech(0.5))
	cancel()

	select {
	case res := <-out:
		if res.err != nil {
			t.Fatalf("run: %v", res.err)
		}
		if res.summary.Transcript == "" {
			t.Fatal("expected non-empty transcript")
		}
		if !res.summary.SawActionable {
			t.Fatal("expected actionable audio recorded")
		}
		if len(snk.finals) != 1 {
			t.Fatalf("expected exactly one final, got %d", len(snk.finals))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not flush after cancel")
	}
}
