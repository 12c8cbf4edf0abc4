// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver for database/sql
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// DBConfig holds database configuration options.
type DBConfig struct {
	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int
	// MaxIdleConns is the maximum number of connections in the idle connection pool.
	MaxIdleConns int
	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	ConnMaxLifetime time.Duration
	// ConnMaxIdleTime is the maximum amount of time a connection may be idle.
	ConnMaxIdleTime time.Duration
}

// DefaultDBConfig returns sensible pool defaults.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// sqlitePragmas are applied to every pooled connection through the DSN.
var sqlitePragmas = []string{
	"journal_mode(WAL)",        // Write-Ahead Logging for better concurrency
	"busy_timeout(5000)",       // Wait 5s when database is locked
	"synchronous(NORMAL)",      // Good balance of safety and speed
	"cache_size(-64000)",       // 64MB cache
	"foreign_keys(1)",          // Enforce foreign key constraints
	"temp_store(MEMORY)",       // Store temp tables in memory
	"wal_autocheckpoint(1000)", // Auto checkpoint every 1000 pages
}

// sqliteDSN builds a modernc DSN for path. Transactions begin IMMEDIATE so
// a writer holds the database lock from its first statement, and times are
// written in SQLite's own format so they compare lexically.
func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	q.Set("_txlock", "immediate")
	q.Set("_time_format", "sqlite")
	return "file:" + path + "?" + q.Encode()
}

// NewDB opens a SQLite database connection and configures it for optimal performance.
func NewDB(path string) (*sql.DB, error) {
	return NewDBWithConfig(path, DefaultDBConfig())
}

// NewDBWithConfig opens a SQLite database connection with custom configuration.
func NewDBWithConfig(path string, cfg DBConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return configure(db, cfg)
}

// NewPostgresDB opens a PostgreSQL connection using a lib/pq connection string.
func NewPostgresDB(dsn string) (*sql.DB, error) {
	return NewPostgresDBWithConfig(dsn, DefaultDBConfig())
}

// NewPostgresDBWithConfig opens a PostgreSQL connection with custom configuration.
func NewPostgresDBWithConfig(dsn string, cfg DBConfig) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("opening database: empty connection string")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return configure(db, cfg)
}

// Open opens the database for the given dialect. For SQLite target is a
// file path; for PostgreSQL it is a connection string.
func Open(d Dialect, target string) (*sql.DB, error) {
	if d == DialectPostgres {
		return NewPostgresDB(target)
	}
	return NewDB(target)
}

func configure(db *sql.DB, cfg DBConfig) (*sql.DB, error) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// Migrate runs all pending SQLite migrations.
func Migrate(db *sql.DB) error {
	return MigrateDialect(db, DialectSQLite)
}

// MigrateDialect runs all pending migrations for the given dialect.
func MigrateDialect(db *sql.DB, d Dialect) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect(d.gooseDialect()); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.Up(db, "migrations/"+d.String()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}
