package sink

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/mattn/go-shellwords"
)

// Clipboard copies the final transcript to the system clipboard, trying
// the native clipboard first and then each configured fallback command
// (wl-copy, xclip) with the text on stdin.
type Clipboard struct {
	Commands []string
	Log      *slog.Logger
}

func NewClipboard(commands []string, log *slog.Logger) *Clipboard {
	return &Clipboard{Commands: commands, Log: log}
}

func (c *Clipboard) Partial(string) {}

func (c *Clipboard) Final(full string) error {
	if full == "" {
		return nil
	}
	if err := clipboard.WriteAll(full); err == nil {
		c.Log.Info("final transcript copied to clipboard")
		return nil
	}
	for _, command := range c.Commands {
		parser := shellwords.NewParser()
		args, err := parser.Parse(command)
		if err != nil || len(args) == 0 {
			continue
		}
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Stdin = strings.NewReader(full)
		if err := cmd.Run(); err == nil {
			c.Log.Info("final transcript copied to clipboard", slog.String("via", args[0]))
			return nil
		}
	}
	return fmt.Errorf("no clipboard backend available")
}
