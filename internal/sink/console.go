package sink

import (
	"fmt"
	"io"
	"strings"
)

// Console rewrites a single terminal line with the running transcript and
// prints a framed final block when the session ends.
type Console struct {
	Out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{Out: out}
}

func (c *Console) Partial(full string) {
	fmt.Fprintf(c.Out, "\r\x1b[K%s", full)
}

func (c *Console) Final(full string) error {
	rule := strings.Repeat("-", 50)
	fmt.Fprintf(c.Out, "\n%s\n", rule)
	if full == "" {
		fmt.Fprintln(c.Out, "(no speech detected)")
		return nil
	}
	fmt.Fprintln(c.Out, full)
	return nil
}
