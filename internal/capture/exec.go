package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/verbatimlabs/verbatim/internal/config"
)

// ExecSource reads raw PCM from the stdout of an external capture command
// (arecord, parec, sox, ffmpeg). The command template may contain {rate}
// and {device} placeholders; a {device} token is dropped entirely when no
// device is configured, so the command's default input is used.
type ExecSource struct {
	cfg config.CaptureConfig
	log *slog.Logger
}

func NewExecSource(cfg config.CaptureConfig, log *slog.Logger) (*ExecSource, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("capture command is empty")
	}
	return &ExecSource{cfg: cfg, log: log}, nil
}

func (s *ExecSource) buildArgs() ([]string, error) {
	parser := shellwords.NewParser()
	tokens, err := parser.Parse(s.cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	args := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "{device}" && s.cfg.Device == "" {
			continue
		}
		tok = strings.ReplaceAll(tok, "{device}", s.cfg.Device)
		tok = strings.ReplaceAll(tok, "{rate}", strconv.Itoa(s.cfg.SampleRate))
		args = append(args, tok)
	}
	if len(args) == 0 {
		return nil, errors.New("capture command is empty")
	}
	return args, nil
}

// Start spawns the capture command and pushes blocks until EOF or cancel.
func (s *ExecSource) Start(ctx context.Context, fn BlockFunc) error {
	args, err := s.buildArgs()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture command: %w", err)
	}
	s.log.Info("capture started",
		slog.String("command", args[0]),
		slog.Int("sample_rate", s.cfg.SampleRate),
		slog.Int("block_ms", s.cfg.BlockMS))

	blockSamples := s.cfg.SampleRate * s.cfg.BlockMS / 1000
	bytesPerSample := 4
	if s.cfg.Format == "s16le" {
		bytesPerSample = 2
	}
	raw := make([]byte, blockSamples*bytesPerSample)

	var readErr error
	for {
		n, err := io.ReadFull(stdout, raw)
		if n > 0 {
			fn(decodeBlock(raw[:n-n%bytesPerSample], s.cfg.Format))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = err
			}
			break
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		// Cancellation kills the command; that is a clean stop.
		return nil
	}
	if readErr != nil {
		return fmt.Errorf("read capture stream: %w", readErr)
	}
	if waitErr != nil {
		return fmt.Errorf("capture command exited: %w", waitErr)
	}
	s.log.Info("capture stream ended")
	return nil
}

func decodeBlock(raw []byte, format string) []float32 {
	if format == "s16le" {
		block := make([]float32, len(raw)/2)
		for i := range block {
			block[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
		}
		return block
	}
	block := make([]float32, len(raw)/4)
	for i := range block {
		block[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return block
}
