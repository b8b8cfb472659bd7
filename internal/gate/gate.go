// Package gate decides whether a span of pending audio is worth sending
// to the recognizer. Silence is cheap to detect here and expensive to
// transcribe, so sub-threshold spans are consumed without a recognition
// call.
package gate

// Verdict classifies a pending span of audio samples.
type Verdict int

const (
	// TooShort means the span is below the minimum length. It stays
	// pending; the commit watermark must not advance.
	TooShort Verdict = iota
	// Silent means the span never exceeds the amplitude threshold. The
	// watermark advances past it, but no recognition call is made.
	Silent
	// Actionable means the span should be forwarded to the recognizer.
	Actionable
)

func (v Verdict) String() string {
	switch v {
	case TooShort:
		return "too_short"
	case Silent:
		return "silent"
	case Actionable:
		return "actionable"
	default:
		return "unknown"
	}
}

// Gate holds the span-length and amplitude thresholds.
type Gate struct {
	MinSpan   int     // minimum span length in samples
	Threshold float32 // peak amplitude below which a span counts as silent
}

// New builds a gate for the given sample rate. minSpanMS is the shortest
// span worth evaluating (0.3s in the reference setup).
func New(sampleRate, minSpanMS int, threshold float64) Gate {
	return Gate{
		MinSpan:   sampleRate * minSpanMS / 1000,
		Threshold: float32(threshold),
	}
}

// Evaluate classifies a span of mono samples.
func (g Gate) Evaluate(span []float32) Verdict {
	if len(span) < g.MinSpan {
		return TooShort
	}
	if Peak(span) < g.Threshold {
		return Silent
	}
	return Actionable
}

// Peak returns the maximum absolute amplitude in the span.
func Peak(span []float32) float32 {
	var peak float32
	for _, s := range span {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
