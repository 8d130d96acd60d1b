package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStorage is a KeyValueStore backed by a SQLite database.
// Several origins can share one database file; each instance sees only its own.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	dataPath string
	origin   string
	maxBytes int64
	log      *zap.Logger

	// serializes quota check and write
	mu sync.Mutex
}

func NewSQLiteStorage(dataPath, origin string, maxBytes int64, logger *zap.Logger) *SQLiteStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	dbPath := filepath.Join(dataPath, "toon_shelf.db")
	return &SQLiteStorage{
		dbPath:   dbPath,
		dataPath: dataPath,
		origin:   origin,
		maxBytes: maxBytes,
		log:      logger,
	}
}

func (s *SQLiteStorage) Initialize() error {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(s.dataPath, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	migrator, err := NewMigrator(db, s.log)
	if err != nil {
		db.Close()
		return err
	}
	if err := migrator.Up(context.Background()); err != nil {
		db.Close()
		return err
	}

	s.db = db

	s.log.Info("SQLite store initialized", zap.String("path", s.dbPath), zap.String("origin", s.origin))
	return nil
}

func (s *SQLiteStorage) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv_entries WHERE origin = ? AND key = ?`, s.origin, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxBytes > 0 {
		// Everything in this origin except the entry being replaced
		var used int64
		err := s.db.QueryRow(`
		SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(CAST(value AS BLOB))), 0)
		FROM kv_entries
		WHERE origin = ? AND key != ?
		`, s.origin, key).Scan(&used)
		if err != nil {
			return fmt.Errorf("failed to compute store usage: %w", err)
		}
		if need := used + entrySize(key, value); need > s.maxBytes {
			return quotaError(key, need, s.maxBytes)
		}
	}

	query := `
	INSERT INTO kv_entries (origin, key, value, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(origin, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.Exec(query, s.origin, key, value); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv_entries WHERE origin = ? AND key = ?`, s.origin, key); err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM kv_entries WHERE origin = ? ORDER BY key`, s.origin)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStorage) GetDB() (*sql.DB, error) {
	if s.db == nil {
		// Open database connection if not already open
		db, err := sql.Open("sqlite3", s.dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		s.db = db
	}
	return s.db, nil
}

// GetStats reports key count and byte usage for this origin and the origin count overall.
func (s *SQLiteStorage) GetStats() (map[string]int, error) {
	stats := make(map[string]int)

	var keys int
	err := s.db.QueryRow("SELECT COUNT(*) FROM kv_entries WHERE origin = ?", s.origin).Scan(&keys)
	if err != nil {
		return nil, fmt.Errorf("failed to get key count: %w", err)
	}
	stats["keys"] = keys

	var bytes int
	err = s.db.QueryRow(`
	SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(CAST(value AS BLOB))), 0)
	FROM kv_entries WHERE origin = ?`, s.origin).Scan(&bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to get byte usage: %w", err)
	}
	stats["bytes"] = bytes

	var origins int
	err = s.db.QueryRow("SELECT COUNT(DISTINCT origin) FROM kv_entries").Scan(&origins)
	if err != nil {
		return nil, fmt.Errorf("failed to get origin count: %w", err)
	}
	stats["origins"] = origins

	return stats, nil
}

// Migrator returns a migrator for the store's database.
func (s *SQLiteStorage) Migrator() (*Migrator, error) {
	if s.db == nil {
		return nil, errors.New("sqlite store is not initialized")
	}
	return NewMigrator(s.db, s.log)
}

func (s *SQLiteStorage) GetDatabaseVersion(ctx context.Context) (int64, error) {
	m, err := s.Migrator()
	if err != nil {
		return 0, err
	}
	return m.Version(ctx)
}

func (s *SQLiteStorage) RunMigrations(ctx context.Context) error {
	m, err := s.Migrator()
	if err != nil {
		return err
	}
	return m.Up(ctx)
}

func (s *SQLiteStorage) RollbackMigration(ctx context.Context) error {
	m, err := s.Migrator()
	if err != nil {
		return err
	}
	return m.Down(ctx)
}

// ResetDatabase drops the schema for every origin sharing the database file.
func (s *SQLiteStorage) ResetDatabase(ctx context.Context) error {
	m, err := s.Migrator()
	if err != nil {
		return err
	}
	return m.Reset(ctx)
}
