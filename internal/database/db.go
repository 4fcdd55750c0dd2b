// Package database opens the SQLite store behind aurum and applies its schema.
//
// Everything durable lives in a single aurum.db: daily bars for gold and the
// dollar index, crawled news, market factors, institution views, analysis
// snapshots and the update log. The schema is embedded and applied on startup.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schemas/*.sql
var schemas embed.FS

// DatabaseProfile selects the durability and pool settings of a connection
type DatabaseProfile string

const (
	// ProfileStandard is used for aurum.db
	ProfileStandard DatabaseProfile = "standard"
	// ProfileCache trades durability for speed, for throwaway databases
	ProfileCache DatabaseProfile = "cache"
)

type profileSettings struct {
	pragmas      []string
	maxOpen      int
	maxIdle      int
	connLifetime time.Duration
}

var profiles = map[DatabaseProfile]profileSettings{
	ProfileStandard: {
		pragmas:      []string{"synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)", "temp_store(MEMORY)"},
		maxOpen:      10,
		maxIdle:      4,
		connLifetime: 24 * time.Hour,
	},
	ProfileCache: {
		pragmas:      []string{"synchronous(OFF)", "temp_store(MEMORY)"},
		maxOpen:      4,
		maxIdle:      2,
		connLifetime: time.Hour,
	},
}

// Shared by every profile. The scheduler and request-triggered refreshes
// write concurrently, hence the busy timeout.
var commonPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"wal_autocheckpoint(1000)",
}

// DB wraps the connection pool together with the file it points at
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string // selects schemas/<name>_schema.sql
}

// Config holds database configuration
type Config struct {
	Path    string
	Profile DatabaseProfile
	Name    string // e.g. "aurum"
}

// New opens the database at cfg.Path, creating its directory when needed
func New(cfg Config) (*DB, error) {
	// file: URIs are used for in-memory databases in tests
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	settings, ok := profiles[cfg.Profile]
	if !ok {
		cfg.Profile = ProfileStandard
		settings = profiles[ProfileStandard]
	}

	conn, err := sql.Open("sqlite", dsn(cfg.Path, settings))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}
	conn.SetMaxOpenConns(settings.maxOpen)
	conn.SetMaxIdleConns(settings.maxIdle)
	conn.SetConnMaxLifetime(settings.connLifetime)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

func dsn(path string, settings profileSettings) string {
	params := make([]string, 0, len(commonPragmas)+len(settings.pragmas))
	for _, p := range append(append([]string{}, commonPragmas...), settings.pragmas...) {
		params = append(params, "_pragma="+p)
	}
	return path + "?" + strings.Join(params, "&")
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the pool shared by all repositories
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name
func (db *DB) Name() string {
	return db.name
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Migrate applies the embedded schema matching the database name. Every
// statement uses IF NOT EXISTS, so it runs on each startup.
func (db *DB) Migrate() error {
	content, err := schemas.ReadFile("schemas/" + db.name + "_schema.sql")
	if err != nil {
		// No schema for this name
		return nil
	}

	return WithTransaction(context.Background(), db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to apply %s schema: %w", db.name, err)
		}
		return nil
	})
}

// WithTransaction runs fn inside a transaction. The transaction is rolled
// back when fn returns an error or panics, and committed otherwise.
func WithTransaction(ctx context.Context, conn *sql.DB, fn func(*sql.Tx) error) (err error) {
	if conn == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
			return
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback: %v)", err, rbErr)
				return
			}
			err = fmt.Errorf("transaction failed: %w", err)
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(tx)
}

// HealthCheck pings the database and runs PRAGMA quick_check
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("quick check query failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("quick check failed for %s: %s", db.name, result)
	}
	return nil
}

var checkpointModes = map[string]bool{"PASSIVE": true, "FULL": true, "RESTART": true, "TRUNCATE": true}

// WALCheckpoint folds the WAL back into the main file. An empty mode means TRUNCATE.
func (db *DB) WALCheckpoint(mode string) error {
	mode = strings.ToUpper(strings.TrimSpace(mode))
	if mode == "" {
		mode = "TRUNCATE"
	}
	if !checkpointModes[mode] {
		return fmt.Errorf("unknown checkpoint mode %q", mode)
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(" + mode + ")"); err != nil {
		return fmt.Errorf("WAL checkpoint failed for %s: %w", db.name, err)
	}
	return nil
}

// Stats describes the on-disk footprint of the database
type Stats struct {
	SizeBytes     int64 `json:"size_bytes"`
	WALSizeBytes  int64 `json:"wal_size_bytes"`
	PageCount     int64 `json:"page_count"`
	PageSize      int64 `json:"page_size"`
	FreelistCount int64 `json:"freelist_count"`
}

// GetStats reads file sizes and page counters
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if fi, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = fi.Size()
	}
	if fi, err := os.Stat(db.path + "-wal"); err == nil {
		stats.WALSizeBytes = fi.Size()
	}

	for pragma, dst := range map[string]*int64{
		"page_count":     &stats.PageCount,
		"page_size":      &stats.PageSize,
		"freelist_count": &stats.FreelistCount,
	} {
		if err := db.conn.QueryRowContext(ctx, "PRAGMA "+pragma).Scan(dst); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", pragma, err)
		}
	}
	return stats, nil
}
