// Command verbatim-history lists past dictation sessions from the local
// history database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/verbatimlabs/verbatim/internal/config"
	"github.com/verbatimlabs/verbatim/internal/history"
)

func main() {
	var (
		configPath string
		limit      int
		sessionID  string
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.IntVar(&limit, "limit", 20, "Maximum number of sessions to list")
	flag.StringVar(&sessionID, "session", "", "Show the fragments of one session")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !cfg.History.Enabled {
		fmt.Fprintln(os.Stderr, "history is disabled in configuration")
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := history.Open(ctx, cfg.History, logger)
	if err != nil {
		logger.Error("failed to open history store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	if sessionID != "" {
		if err := printFragments(ctx, store, sessionID); err != nil {
			logger.Error("failed to list fragments", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	if err := printSessions(ctx, store, limit); err != nil {
		logger.Error("failed to list sessions", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printSessions(ctx context.Context, store *history.Store, limit int) error {
	sessions, err := store.ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tFRAGMENTS\tSESSION\tTRANSCRIPT")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.StartedAt.Local().Format(time.DateTime),
			(time.Duration(s.DurationMS) * time.Millisecond).Round(time.Second),
			s.Fragments,
			s.ID,
			truncate(s.Transcript, 60))
	}
	return w.Flush()
}

func printFragments(ctx context.Context, store *history.Store, sessionID string) error {
	fragments, err := store.ListFragments(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(fragments) == 0 {
		fmt.Println("no fragments for session", sessionID)
		return nil
	}
	for _, f := range fragments {
		fmt.Printf("%3d  %s\n", f.Seq, f.Text)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
