package sink

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type recordingSink struct {
	partials []string
	finals   []string
	err      error
}

func (r *recordingSink) Partial(full string) { r.partials = append(r.partials, full) }
func (r *recordingSink) Final(full string) error {
	r.finals = append(r.finals, full)
	return r.err
}

func TestConsolePartialRewritesLine(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Partial("hello")
	c.Partial("hello world")
	out := buf.String()
	if !strings.Contains(out, "\r\x1b[Khello world") {
		t.Fatalf("expected line rewrite, got %q", out)
	}
}

func TestConsoleFinal(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	if err := c.Final("the transcript"); err != nil {
		t.Fatalf("final: %v", err)
	}
	if !strings.Contains(buf.String(), "the transcript") {
		t.Fatalf("expected transcript in output, got %q", buf.String())
	}
}

func TestConsoleFinalEmptyReportsNoSpeech(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	if err := c.Final(""); err != nil {
		t.Fatalf("final: %v", err)
	}
	if !strings.Contains(buf.String(), "no speech detected") {
		t.Fatalf("expected no-speech message, got %q", buf.String())
	}
}

func TestMultiFanOutPreservesOrder(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := Multi{a, b}

	m.Partial("one")
	m.Partial("one two")
	if err := m.Final("one two"); err != nil {
		t.Fatalf("final: %v", err)
	}

	for _, s := range []*recordingSink{a, b} {
		if len(s.partials) != 2 || s.partials[1] != "one two" {
			t.Fatalf("unexpected partials %v", s.partials)
		}
		if len(s.finals) != 1 || s.finals[0] != "one two" {
			t.Fatalf("unexpected finals %v", s.finals)
		}
	}
}

func TestMultiFinalJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{&recordingSink{err: boom}, &recordingSink{}}
	err := m.Final("text")
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
}
