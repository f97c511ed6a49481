// Package database provides SQLite and PostgreSQL access and migration management.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	// PostgreSQL driver for database/sql, registered as "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"
	// SQLite driver for database/sql
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies the SQL flavour behind a DB.
type Dialect string

const (
	// DialectSQLite is the default embedded store.
	DialectSQLite Dialect = "sqlite3"
	// DialectPostgres is used when a DSN is configured.
	DialectPostgres Dialect = "postgres"
)

// DB wraps a sql.DB connection with additional functionality.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// New creates a new SQLite database connection and ensures the parent directory exists.
func New(dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, err
		}
	}

	source := dbPath + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", source)
	if err != nil {
		return nil, err
	}

	// An in-memory database lives and dies with its connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{DB: db, Dialect: DialectSQLite}, nil
}

// NewPostgres opens a PostgreSQL database through pgx's database/sql driver.
func NewPostgres(dsn string) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{DB: db, Dialect: DialectPostgres}, nil
}

// Open picks the backend by driver name ("sqlite3" or "postgres").
func Open(driver, path, dsn string) (*DB, error) {
	switch Dialect(driver) {
	case DialectSQLite, "sqlite", "":
		return New(path)
	case DialectPostgres, "pgx":
		if dsn == "" {
			return nil, fmt.Errorf("postgres driver requires a dsn")
		}
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate runs all database migrations.
func (db *DB) Migrate() error {
	return runMigrations(db)
}

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
func (db *DB) Rebind(query string) string {
	if db.Dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
