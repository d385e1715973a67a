// Package fetchlog keeps a journal of backend fetches in SQLite.
package fetchlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tradedesk/internal/fetch"
	"tradedesk/internal/pkg/text"

	_ "modernc.org/sqlite"
)

const (
	defaultListLimit = 100
	maxWarningRunes  = 1024
)

// Record is one stored fetch attempt.
type Record struct {
	ID         int64  `json:"id"`
	Timestamp  int64  `json:"ts"`
	Endpoint   string `json:"endpoint"`
	OK         bool   `json:"ok"`
	Cached     bool   `json:"cached"`
	Status     int    `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Warning    string `json:"warning,omitempty"`
}

// Query filters List. Zero values mean no filter.
type Query struct {
	Endpoint   string
	FailedOnly bool
	Limit      int
}

// Store implements fetch.Journal.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

var _ fetch.Journal = (*Store)(nil)

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("fetch log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			endpoint TEXT NOT NULL,
			ok INTEGER NOT NULL,
			cached INTEGER NOT NULL DEFAULT 0,
			status INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			warning TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_log_ts ON fetch_log(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_log_endpoint ON fetch_log(endpoint, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("fetch log schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// RecordFetch appends one fetch attempt.
func (s *Store) RecordFetch(ctx context.Context, entry fetch.Entry) error {
	if s == nil {
		return nil
	}
	db := s.handle()
	if db == nil {
		return fmt.Errorf("fetch log closed")
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO fetch_log (ts, endpoint, ok, cached, status, duration_ms, warning) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		at.UnixMilli(), entry.Endpoint, boolInt(entry.OK), boolInt(entry.Cached), entry.Status, entry.DurationMS, text.Truncate(entry.Warning, maxWarningRunes),
	)
	return err
}

// List returns the newest entries first.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	if s == nil {
		return nil, nil
	}
	db := s.handle()
	if db == nil {
		return nil, fmt.Errorf("fetch log closed")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var (
		where []string
		args  []any
	)
	if ep := strings.TrimSpace(q.Endpoint); ep != "" {
		where = append(where, "endpoint = ?")
		args = append(args, ep)
	}
	if q.FailedOnly {
		where = append(where, "ok = 0")
	}
	query := `SELECT id, ts, endpoint, ok, cached, status, duration_ms, warning FROM fetch_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			rec        Record
			ok, cached int
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Endpoint, &ok, &cached, &rec.Status, &rec.DurationMS, &rec.Warning); err != nil {
			return nil, err
		}
		rec.OK = ok != 0
		rec.Cached = cached != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune removes entries older than before.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s == nil {
		return 0, nil
	}
	db := s.handle()
	if db == nil {
		return 0, fmt.Errorf("fetch log closed")
	}
	res, err := db.ExecContext(ctx, `DELETE FROM fetch_log WHERE ts < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
