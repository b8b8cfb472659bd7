package stt

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/verbatimlabs/verbatim/internal/audio"
	"github.com/verbatimlabs/verbatim/internal/config"
)

// openaiRecognizer sends spans to the hosted Whisper API.
type openaiRecognizer struct {
	client *openai.Client
	cfg    config.STTConfig
}

func NewOpenAIRecognizer(cfg config.STTConfig) Recognizer {
	return &openaiRecognizer{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
	}
}

func (r *openaiRecognizer) Transcribe(ctx context.Context, samples []float32, sampleRate int, _ bool) (Result, error) {
	tmp, err := os.CreateTemp("", "verbatim_openai_*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("create temp wav: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)
	if err := audio.EncodeFile(path, samples, sampleRate); err != nil {
		return Result{}, err
	}

	model := r.cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: path,
		Language: r.cfg.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai transcription: %w", err)
	}
	return Result{Text: resp.Text, Language: resp.Language}, nil
}
