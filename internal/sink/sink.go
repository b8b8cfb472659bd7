// Package sink renders and persists transcripts. Partial is called after
// every successful commit with the full transcript so far; Final is
// called exactly once when the session flushes.
package sink

import "errors"

// Sink receives the growing transcript.
type Sink interface {
	Partial(full string)
	Final(full string) error
}

// Multi fans out to several sinks in order.
type Multi []Sink

func (m Multi) Partial(full string) {
	for _, s := range m {
		s.Partial(full)
	}
}

func (m Multi) Final(full string) error {
	var errs []error
	for _, s := range m {
		if err := s.Final(full); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
