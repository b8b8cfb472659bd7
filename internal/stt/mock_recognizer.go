package stt

import (
	"context"
	"fmt"
)

type mockRecognizer struct{}

// NewMockRecognizer returns a recognizer that reports span shape instead
// of text. Useful for exercising the pipeline without a model.
func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(_ context.Context, samples []float32, sampleRate int, final bool) (Result, error) {
	mode := "partial"
	if final {
		mode = "final"
	}
	return Result{
		Text:       fmt.Sprintf("[%s span %.1fs]", mode, float64(len(samples))/float64(sampleRate)),
		Confidence: 0,
	}, nil
}
