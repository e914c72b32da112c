package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding cached record store query results.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "folio.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

const cacheTable = "record_cache"

// --- Record cache ---

// PutCacheEntry inserts or replaces the entry stored under e.Key.
func (s *Store) PutCacheEntry(ctx context.Context, e CacheEntry) error {
	query, args, err := builder.
		Insert(cacheTable).
		Columns("cache_key", "payload_json", "record_count", "fetched_at").
		Values(e.Key, e.PayloadJSON, e.RecordCount, e.FetchedAt.UTC().Format(time.RFC3339Nano)).
		Suffix(`ON CONFLICT(cache_key) DO UPDATE SET
			payload_json = excluded.payload_json,
			record_count = excluded.record_count,
			fetched_at = excluded.fetched_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building cache upsert: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// GetCacheEntry returns the entry for key or ErrNotFound.
func (s *Store) GetCacheEntry(ctx context.Context, key string) (CacheEntry, error) {
	query, args, err := builder.
		Select("cache_key", "payload_json", "record_count", "fetched_at").
		From(cacheTable).
		Where(sq.Eq{"cache_key": key}).
		ToSql()
	if err != nil {
		return CacheEntry{}, fmt.Errorf("building cache select: %w", err)
	}

	var e CacheEntry
	var fetchedAt string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&e.Key, &e.PayloadJSON, &e.RecordCount, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return CacheEntry{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return CacheEntry{}, fmt.Errorf("parsing fetched_at: %w", err)
	}
	e.FetchedAt = t
	return e, nil
}

// ListCacheEntries returns every entry without payloads, newest first.
func (s *Store) ListCacheEntries(ctx context.Context) ([]CacheEntry, error) {
	query, args, err := builder.
		Select("cache_key", "record_count", "fetched_at").
		From(cacheTable).
		OrderBy("fetched_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building cache list: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CacheEntry
	for rows.Next() {
		var e CacheEntry
		var fetchedAt string
		if err := rows.Scan(&e.Key, &e.RecordCount, &fetchedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing fetched_at: %w", err)
		}
		e.FetchedAt = t
		results = append(results, e)
	}
	return results, rows.Err()
}

// DeleteCacheEntry removes one entry. Deleting a missing key is not an error.
func (s *Store) DeleteCacheEntry(ctx context.Context, key string) error {
	query, args, err := builder.Delete(cacheTable).Where(sq.Eq{"cache_key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("building cache delete: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// ClearCache removes every entry and returns how many were deleted.
func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	query, args, err := builder.Delete(cacheTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building cache clear: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
