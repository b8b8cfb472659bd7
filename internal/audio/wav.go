// Package audio converts float32 sample buffers to 16-bit WAV, the
// interchange format every recognizer backend accepts.
package audio

import (
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func clip(s float32) int {
	v := int(s * 32767)
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}

// EncodeFile writes mono float32 samples to path as a 16-bit PCM WAV file.
func EncodeFile(path string, samples []float32, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	defer file.Close()

	buffer := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   make([]int, len(samples)),
	}
	for i, s := range samples {
		buffer.Data[i] = clip(s)
	}

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// Writer appends sample blocks to a WAV file as they arrive, so a whole
// session can be archived without holding a second copy in memory.
type Writer struct {
	file *os.File
	enc  *wav.Encoder
	rate int
}

// NewWriter creates the archive file, including parent directories.
func NewWriter(path string, sampleRate int) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}
	return &Writer{
		file: file,
		enc:  wav.NewEncoder(file, sampleRate, 16, 1, 1),
		rate: sampleRate,
	}, nil
}

// WriteBlock appends one block of mono samples.
func (w *Writer) WriteBlock(block []float32) error {
	buffer := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: 1, SampleRate: w.rate},
		Data:   make([]int, len(block)),
	}
	for i, s := range block {
		buffer.Data[i] = clip(s)
	}
	if err := w.enc.Write(buffer); err != nil {
		return fmt.Errorf("write archive block: %w", err)
	}
	return nil
}

// Close finalizes the WAV header and closes the file.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close archive encoder: %w", err)
	}
	return w.file.Close()
}
