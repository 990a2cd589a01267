// Package eventlog persists the session/window lifecycle event stream
// to a local SQLite database for after-the-fact operational review --
// the event-log analogue of the teacher's terminal transcript store
// (pkg/terminal/transcript_sqlite.go), logging typed protocol.Response
// events instead of raw terminal byte streams. It never persists
// display/grid state.
package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	sequence   INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload    TEXT NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id);
CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);
`

// Config controls where the audit log lives and when a segment rotates.
type Config struct {
	// Path is the base path for the current segment, e.g.
	// "/var/log/apu/events.db". Rotated segments are renamed with a
	// timestamp suffix and gzipped.
	Path string
	// MaxSegmentEvents rotates the current segment once it has
	// recorded this many events. Zero disables count-based rotation.
	MaxSegmentEvents int64
	// MaxSegmentAge rotates the current segment once it has been open
	// this long. Zero disables age-based rotation.
	MaxSegmentAge time.Duration
	Logger        *slog.Logger
}

// Log is an open audit log segment, safe for concurrent Record calls.
type Log struct {
	cfg       Config
	logger    *slog.Logger
	mu        sync.Mutex
	db        *sql.DB
	count     int64
	openedAt  time.Time
}

// Open creates (or appends to) the segment at cfg.Path, creating its
// schema if needed.
func Open(cfg Config) (*Log, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	l := &Log{cfg: cfg, logger: cfg.Logger}
	if err := l.openSegment(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) openSegment() error {
	dir := filepath.Dir(l.cfg.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("eventlog: create dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", l.cfg.Path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return fmt.Errorf("eventlog: open %s: %w", l.cfg.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("eventlog: ping %s: %w", l.cfg.Path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("eventlog: init schema: %w", err)
	}
	l.db = db
	l.count = 0
	l.openedAt = time.Now()
	return nil
}

// Record appends one event. payload is marshaled to JSON; any
// marshal/write failure is logged and swallowed, matching the
// teacher's own stance that a broken transcript sink should never take
// down the session it's observing.
func (l *Log) Record(sessionID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		l.logger.Warn("eventlog: marshal failed", "event_type", eventType, "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shouldRotateLocked() {
		if err := l.rotateLocked(); err != nil {
			l.logger.Error("eventlog: rotate failed", "error", err)
		}
	}

	_, err = l.db.Exec(
		`INSERT INTO events (session_id, event_type, payload, recorded_at) VALUES (?, ?, ?, ?)`,
		sessionID, eventType, string(data), time.Now().UnixNano(),
	)
	if err != nil {
		l.logger.Warn("eventlog: insert failed", "event_type", eventType, "error", err)
		return
	}
	l.count++
}

func (l *Log) shouldRotateLocked() bool {
	if l.cfg.MaxSegmentEvents > 0 && l.count >= l.cfg.MaxSegmentEvents {
		return true
	}
	if l.cfg.MaxSegmentAge > 0 && time.Since(l.openedAt) >= l.cfg.MaxSegmentAge {
		return true
	}
	return false
}

// rotateLocked closes the current segment, gzips it to a
// timestamp-suffixed archive, and opens a fresh segment at the
// original path. Caller must hold l.mu.
func (l *Log) rotateLocked() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("eventlog: close segment for rotation: %w", err)
	}

	archived := fmt.Sprintf("%s.%d", l.cfg.Path, time.Now().UnixNano())
	if err := os.Rename(l.cfg.Path, archived); err != nil {
		return fmt.Errorf("eventlog: rename segment: %w", err)
	}

	go gzipAndRemove(archived, l.logger)

	return l.openSegment()
}

// Close closes the current segment without rotating it.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
