// Package capture delivers mono float32 sample blocks from an audio
// source to the commit controller.
package capture

import "context"

// BlockFunc receives one block of mono samples. The slice is owned by the
// callee after the call returns.
type BlockFunc func(block []float32)

// Source produces fixed-duration sample blocks until the context is
// cancelled or the underlying stream ends. Start blocks for the lifetime
// of the stream; a nil return means end-of-stream, which callers treat
// the same as a stop request.
type Source interface {
	Start(ctx context.Context, fn BlockFunc) error
}
