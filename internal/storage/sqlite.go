// Package storage persists the nutrition vault cache and the food log in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("storage: not found")

// timeLayout is fixed width so stored UTC timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewSQLiteStorage(dbPath string, logger *zap.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db, logger: logger, now: time.Now}
	if err := storage.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema(ctx context.Context) error {
	schema := `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS nutrition_vault_items (
        provider TEXT NOT NULL,
        provider_ref TEXT NOT NULL,
        name TEXT NOT NULL,
        name_lower TEXT NOT NULL,
        brand TEXT NOT NULL DEFAULT '',
        brand_lower TEXT NOT NULL DEFAULT '',
        canonical_key TEXT NOT NULL DEFAULT '',
        calories REAL NOT NULL,
        protein REAL NOT NULL,
        carbs REAL NOT NULL,
        fat REAL NOT NULL,
        fiber REAL NOT NULL,
        sugar REAL NOT NULL,
        sodium REAL NOT NULL,
        saturated_fat REAL NOT NULL,
        ingredients TEXT NOT NULL DEFAULT '[]',
        confidence REAL NOT NULL,
        region TEXT NOT NULL,
        updated_at TEXT NOT NULL,
        expires_at TEXT NOT NULL,
        PRIMARY KEY (provider, provider_ref)
    );

    CREATE TABLE IF NOT EXISTS nutrition_vault_lookups (
        id TEXT PRIMARY KEY,
        q TEXT NOT NULL,
        region TEXT NOT NULL,
        hit INTEGER NOT NULL,
        provider TEXT NOT NULL,
        created_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS food_logs (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        source TEXT NOT NULL,
        grams REAL NOT NULL,
        calories REAL NOT NULL,
        protein REAL NOT NULL,
        carbs REAL NOT NULL,
        fat REAL NOT NULL,
        fiber REAL NOT NULL,
        sugar REAL NOT NULL,
        sodium REAL NOT NULL,
        saturated_fat REAL NOT NULL,
        kind TEXT NOT NULL,
        health_score REAL NOT NULL,
        logged_at TEXT NOT NULL,
        created_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS food_log_per_gram (
        log_id TEXT PRIMARY KEY,
        calories REAL NOT NULL,
        protein REAL NOT NULL,
        carbs REAL NOT NULL,
        fat REAL NOT NULL,
        fiber REAL NOT NULL,
        sugar REAL NOT NULL,
        sodium REAL NOT NULL,
        saturated_fat REAL NOT NULL,
        FOREIGN KEY (log_id) REFERENCES food_logs(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_vault_name ON nutrition_vault_items(region, name_lower);
    CREATE INDEX IF NOT EXISTS idx_vault_brand ON nutrition_vault_items(region, brand_lower);
    CREATE INDEX IF NOT EXISTS idx_food_logs_logged_at ON food_logs(logged_at);
    `

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
