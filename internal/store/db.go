package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the SQLite database at path and brings the
// schema up to date.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	store := &DB{db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS days (
			date TEXT PRIMARY KEY,
			commits INTEGER NOT NULL DEFAULT 0,
			prs INTEGER NOT NULL DEFAULT 0,
			coding_minutes INTEGER NOT NULL DEFAULT 0,
			exercise_minutes INTEGER NOT NULL DEFAULT 0,
			screen_time_minutes INTEGER NOT NULL DEFAULT 0,
			productive_app_minutes INTEGER NOT NULL DEFAULT 0,
			meetings_minutes INTEGER NOT NULL DEFAULT 0,
			focus_minutes INTEGER NOT NULL DEFAULT 0,
			deep_work INTEGER NOT NULL DEFAULT 0,
			sleep_hours REAL NOT NULL DEFAULT 0,
			steps INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			date TEXT PRIMARY KEY,
			score INTEGER NOT NULL,
			grade TEXT NOT NULL,
			breakdown TEXT NOT NULL,
			scored_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			avg_score INTEGER NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at)`,
		`CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	return nil
}

// State keys.
const (
	StateLastDailyRun  = "last_daily_run"
	StateLastWeeklyRun = "last_weekly_run"
)

func (db *DB) GetState(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(
		"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}
