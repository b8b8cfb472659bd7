// Package history persists finished dictation sessions to a local
// SQLite database with bounded retention.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/verbatimlabs/verbatim/internal/config"
)

// Session is one finished dictation session.
type Session struct {
	ID         string
	StartedAt  time.Time
	EndedAt    time.Time
	Transcript string
	Fragments  int
	DurationMS int64
}

// Fragment is one committed piece of a session transcript, in commit
// order.
type Fragment struct {
	ID        int64
	SessionID string
	Seq       int
	Text      string
}

// Store wraps the SQLite-backed session history.
type Store struct {
	db    *sql.DB
	cfg   config.HistoryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the history store according to config. A disabled
// store is valid and ignores all writes.
func Open(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*Store, error) {
	if !cfg.Enabled {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("history vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("history prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    ended_at TIMESTAMP NOT NULL,
    transcript TEXT NOT NULL,
    fragment_count INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fragments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    text TEXT NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_fragments_session_seq ON fragments(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSession records a finished session and its fragments.
func (s *Store) SaveSession(ctx context.Context, session Session, fragments []string) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions(session_id, started_at, ended_at, transcript, fragment_count, duration_ms)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		session.ID, session.StartedAt.UTC(), session.EndedAt.UTC(),
		session.Transcript, len(fragments), session.DurationMS)
	if err != nil {
		return err
	}
	for i, text := range fragments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fragments(session_id, seq, text) VALUES(?, ?, ?)`,
			session.ID, i, text); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRecent returns up to limit sessions, most recent first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Session, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, started_at, ended_at, transcript, fragment_count, duration_ms
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var started, ended string
		if err := rows.Scan(&sess.ID, &started, &ended, &sess.Transcript, &sess.Fragments, &sess.DurationMS); err != nil {
			return nil, err
		}
		if sess.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at for %s: %w", sess.ID, err)
		}
		if sess.EndedAt, err = time.Parse(time.RFC3339Nano, ended); err != nil {
			return nil, fmt.Errorf("parse ended_at for %s: %w", sess.ID, err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// ListFragments returns a session's fragments in commit order.
func (s *Store) ListFragments(ctx context.Context, sessionID string) ([]Fragment, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, text FROM fragments
		 WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fragments []Fragment
	for rows.Next() {
		var f Fragment
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Seq, &f.Text); err != nil {
			return nil, err
		}
		fragments = append(fragments, f)
	}
	return fragments, rows.Err()
}

// Prune applies retention by age and by session count.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM sessions WHERE started_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxSessions > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id IN (
			SELECT session_id FROM sessions ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxSessions); err != nil {
			return err
		}
	}
	return tx.Commit()
}
