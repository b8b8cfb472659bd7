package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/verbatimlabs/verbatim/internal/audio"
	"github.com/verbatimlabs/verbatim/internal/config"
)

// execRecognizer shells out to a local transcription command (whisper-cli
// style) with the span written to a temp WAV file. Voice-activity options
// from config are passed through unchanged.
type execRecognizer struct {
	cmd []string
	cfg config.STTConfig
	mu  sync.Mutex
}

type execResult struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

func NewExecRecognizer(cfg config.STTConfig) (Recognizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("stt command is empty")
	}
	return &execRecognizer{cmd: args, cfg: cfg}, nil
}

func (r *execRecognizer) Transcribe(ctx context.Context, samples []float32, sampleRate int, final bool) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tmp, err := os.CreateTemp("", "verbatim_stt_*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("create temp wav: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)
	if err := audio.EncodeFile(path, samples, sampleRate); err != nil {
		return Result{}, err
	}

	args := append([]string{}, r.cmd...)
	base := args[0]
	cmdArgs := args[1:]
	cmdArgs = append(cmdArgs, "--audio", path)
	if r.cfg.ModelPath != "" {
		cmdArgs = append(cmdArgs, "--model", r.cfg.ModelPath)
	}
	if r.cfg.Language != "" {
		cmdArgs = append(cmdArgs, "--language", r.cfg.Language)
	}
	if r.cfg.BeamSize > 0 {
		cmdArgs = append(cmdArgs, "--beam-size", strconv.Itoa(r.cfg.BeamSize))
	}
	if r.cfg.MinSilenceMS > 0 {
		cmdArgs = append(cmdArgs, "--min-silence-ms", strconv.Itoa(r.cfg.MinSilenceMS))
	}
	if r.cfg.SpeechPadMS > 0 {
		cmdArgs = append(cmdArgs, "--speech-pad-ms", strconv.Itoa(r.cfg.SpeechPadMS))
	}
	if final {
		cmdArgs = append(cmdArgs, "--final")
	}

	command := execCommand(ctx, base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Result{}, fmt.Errorf("stt command failed: %w: %s", err, stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, fmt.Errorf("decode stt response: %w", err)
	}
	return Result{Text: resp.Text, Language: resp.Language, Confidence: resp.Confidence}, nil
}
