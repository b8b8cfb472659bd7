package stt

import (
	"context"
	"fmt"

	"github.com/verbatimlabs/verbatim/internal/config"
)

// Result captures recognizer output for one span of audio.
type Result struct {
	Text       string
	Language   string
	Confidence float64
}

// Recognizer abstracts STT backends. Implementations receive the full
// pending span and the session sample rate; final marks the flush pass at
// session end.
type Recognizer interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, final bool) (Result, error)
}

// New builds a recognizer for the configured mode.
func New(cfg config.STTConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockRecognizer(), nil
	case "exec":
		return NewExecRecognizer(cfg)
	case "openai":
		return NewOpenAIRecognizer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}
