package capture

import (
	"context"
	"time"
)

// Segment is one stretch of synthetic audio at a constant peak amplitude.
type Segment struct {
	Amplitude float32
	Duration  time.Duration
}

// ScriptedSource replays configured amplitude segments as sample blocks.
// Used by tests and dry runs in place of a live microphone. A zero Cadence
// emits blocks as fast as the consumer accepts them.
type ScriptedSource struct {
	SampleRate int
	BlockMS    int
	Cadence    time.Duration
	Segments   []Segment
}

func (s *ScriptedSource) Start(ctx context.Context, fn BlockFunc) error {
	blockSamples := s.SampleRate * s.BlockMS / 1000
	for _, seg := range s.Segments {
		remaining := int(float64(s.SampleRate) * seg.Duration.Seconds())
		for remaining > 0 {
			n := blockSamples
			if n > remaining {
				n = remaining
			}
			block := make([]float32, n)
			for i := range block {
				if i%2 == 0 {
					block[i] = seg.Amplitude
				} else {
					block[i] = -seg.Amplitude
				}
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			fn(block)
			remaining -= n
			if s.Cadence > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(s.Cadence):
				}
			}
		}
	}
	return nil
}
