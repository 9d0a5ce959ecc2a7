package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Open establishes a connection to the record store and makes sure the schema exists
func Open(dbType, dsn string) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch dbType {
	case TypeSQLite:
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		db, err = sqlx.Connect("sqlite3", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case TypePostgres:
		db, err = sqlx.Connect("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	for _, table := range []string{wordExposureTable, problemExposureTable} {
		_, err := db.Exec(fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				item_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				correct_count INTEGER NOT NULL DEFAULT 0,
				incorrect_count INTEGER NOT NULL DEFAULT 0,
				activity_date TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				PRIMARY KEY (item_id, user_id)
			)
		`, table))
		if err != nil {
			return fmt.Errorf("failed to create %s table: %w", table, err)
		}

		_, err = db.Exec(fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_%s_activity ON %s (activity_date, user_id)`, table, table))
		if err != nil {
			return fmt.Errorf("failed to index %s table: %w", table, err)
		}
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS content_cache (
			namespace TEXT NOT NULL,
			cache_key TEXT NOT NULL,
			payload TEXT NOT NULL,
			cached_at TIMESTAMP NOT NULL,
			PRIMARY KEY (namespace, cache_key)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create content_cache table: %w", err)
	}

	return nil
}
