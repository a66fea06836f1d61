// Package store persists portfolio content: projects, testimonials and the
// admin user. Local deployments use a SQLite file, hosted ones a libSQL
// database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid document")
)

// Store wraps the database handle shared by all collections.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open picks the driver from the URL scheme: libsql://, http:// and https://
// go to libSQL, anything else is treated as a local SQLite path.
func Open(url string) (*Store, error) {
	driver, dsn := driverFor(url)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// SQLite serializes writers anyway; one connection also keeps
		// :memory: databases shared.
		db.SetMaxOpenConns(1)
	}
	return New(db), nil
}

// New wraps an already opened database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func driverFor(url string) (driver, dsn string) {
	for _, scheme := range []string{"libsql://", "https://", "http://"} {
		if strings.HasPrefix(url, scheme) {
			return "libsql", url
		}
	}
	if url == "" {
		url = "portfolio.db"
	}
	return "sqlite", url
}

// DB exposes the handle for components that keep their own tables.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate creates the content tables if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			demo TEXT NOT NULL,
			code TEXT NOT NULL,
			image TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_created ON projects (created_at)`,
		`CREATE TABLE IF NOT EXISTS testimonials (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			position TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			rating INTEGER NOT NULL DEFAULT 5,
			approved INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_testimonials_approved ON testimonials (approved, created_at)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
