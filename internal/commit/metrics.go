package commit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the commit-loop instruments. A nil *Metrics disables
// instrumentation entirely.
type Metrics struct {
	committed metric.Int64Counter
	silent    metric.Int64Counter
	failures  metric.Int64Counter
	duration  metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	committed, err := meter.Int64Counter("dictation.chunks.committed",
		metric.WithDescription("Chunks that produced transcript text"))
	if err != nil {
		return nil, err
	}
	silent, err := meter.Int64Counter("dictation.chunks.silent",
		metric.WithDescription("Chunks consumed as silence without recognition"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("dictation.recognition.failures",
		metric.WithDescription("Recognition calls that failed and were skipped"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("dictation.recognition.duration",
		metric.WithDescription("Recognition call latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		committed: committed,
		silent:    silent,
		failures:  failures,
		duration:  duration,
	}, nil
}

func (m *Metrics) observeCommit() {
	if m == nil {
		return
	}
	m.committed.Add(context.Background(), 1)
}

func (m *Metrics) observeSilent(_ int) {
	if m == nil {
		return
	}
	m.silent.Add(context.Background(), 1)
}

func (m *Metrics) observeFailure() {
	if m == nil {
		return
	}
	m.failures.Add(context.Background(), 1)
}

func (m *Metrics) observeRecognition(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Record(context.Background(), d.Seconds())
}
