package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists the journal to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates a journal database.
// The path should be a file path (e.g., "./journal.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			origin TEXT NOT NULL,
			id INTEGER NOT NULL,
			data BLOB NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			acked INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			appended TEXT NOT NULL,
			PRIMARY KEY (origin, id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create entries table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cursors (
			origin TEXT PRIMARY KEY,
			acked INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cursors table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(origin string, id uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if data == nil {
		data = []byte{}
	}

	res, err := s.db.Exec(`
		INSERT INTO entries (origin, id, data, appended)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(origin, id) DO NOTHING
	`, origin, int64(id), data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExists
	}
	return nil
}

// Ack implements Store.
func (s *SQLiteStore) Ack(origin string, upTo uint64) (marked int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin ack: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.Exec(`
		UPDATE entries SET acked = 1
		WHERE origin = ? AND id <= ? AND failed = 0 AND acked = 0
	`, origin, int64(upTo))
	if err != nil {
		return 0, fmt.Errorf("ack entries: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err = tx.Exec(`
		INSERT INTO cursors (origin, acked) VALUES (?, ?)
		ON CONFLICT(origin) DO UPDATE SET acked = MAX(acked, excluded.acked)
	`, origin, int64(upTo)); err != nil {
		return 0, fmt.Errorf("advance cursor: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ack: %w", err)
	}
	return int(n), nil
}

// Fail implements Store.
func (s *SQLiteStore) Fail(origin string, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.Exec(`
		UPDATE entries SET failed = 1, acked = 0, attempts = attempts + 1
		WHERE origin = ? AND id = ?
	`, origin, int64(id))
	if err != nil {
		return fmt.Errorf("fail entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Compact implements Store.
func (s *SQLiteStore) Compact(origin string, upTo uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	res, err := s.db.Exec(`
		DELETE FROM entries WHERE origin = ? AND id <= ? AND acked = 1
	`, origin, int64(upTo))
	if err != nil {
		return 0, fmt.Errorf("compact entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Remove implements Store.
func (s *SQLiteStore) Remove(origin string, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`
		DELETE FROM entries WHERE origin = ? AND id = ?
	`, origin, int64(id)); err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	return nil
}

// Pending implements Store.
func (s *SQLiteStore) Pending(origin string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, data, failed, attempts, appended
		FROM entries
		WHERE origin = ? AND acked = 0
		ORDER BY id
	`, origin)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e        = Entry{Origin: origin}
			id       int64
			appended string
		)
		if err := rows.Scan(&id, &e.Data, &e.Failed, &e.Attempts, &appended); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.ID = uint64(id)
		e.Appended, _ = time.Parse(time.RFC3339Nano, appended)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Cursor implements Store.
func (s *SQLiteStore) Cursor(origin string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var acked int64
	err := s.db.QueryRow(`SELECT acked FROM cursors WHERE origin = ?`, origin).Scan(&acked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	return uint64(acked), nil
}

// Origins implements Store.
func (s *SQLiteStore) Origins() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT origin FROM entries
		UNION
		SELECT origin FROM cursors
		ORDER BY origin
	`)
	if err != nil {
		return nil, fmt.Errorf("list origins: %w", err)
	}
	defer rows.Close()

	var origins []string
	for rows.Next() {
		var origin string
		if err := rows.Scan(&origin); err != nil {
			return nil, fmt.Errorf("scan origin: %w", err)
		}
		origins = append(origins, origin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate origins: %w", err)
	}
	return origins, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
