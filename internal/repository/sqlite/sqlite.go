// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside the Go binary and keeps its
// data in a single file. No database server to install or manage, which makes
// it the default store for development, tests (":memory:") and single-node
// deployments. Set DB_DRIVER=postgres for the server-backed store.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// SQLite, registered with database/sql under the driver name "sqlite".
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/todo-server/internal/repository/migrations"
)

// DB wraps a sql.DB connection pool. The per-table repositories returned by
// Users and Todos share it.
type DB struct {
	conn  *sql.DB
	users *UserDB
	todos *TodoDB
}

// New opens the SQLite database at dbPath and migrates it to the latest schema.
//
// dbPath examples:
//   - "data/todo.db"  -> file-based database (persistent)
//   - ":memory:"      -> in-memory database (tests; lost on close)
//
// PRAGMAS:
// foreign_keys is OFF by default in SQLite and is a per-connection setting,
// so it goes in the DSN where the driver applies it to every new connection.
// Without it ON DELETE CASCADE from users to todos silently does nothing.
func New(ctx context.Context, dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database.
	// A single connection keeps the whole pool on the same one.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	// sql.Open does not connect; Ping surfaces a bad path or permissions
	// problem here instead of on the first query.
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if err := migrations.Up(ctx, conn, migrations.SQLite); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	db := &DB{conn: conn}
	db.users = &UserDB{conn: conn}
	db.todos = &TodoDB{conn: conn}
	return db, nil
}

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserDB { return db.users }

// Todos returns the todo repository backed by this database.
func (db *DB) Todos() *TodoDB { return db.todos }

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.HasPrefix(dbPath, "file::memory:")
}

func dsn(dbPath string) string {
	pragmas := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	if !isMemory(dbPath) {
		// WAL lets readers proceed while a write is in progress.
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + strings.Join(pragmas, "&")
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// isForeignKeyViolation reports whether err is a FOREIGN KEY constraint failure.
func isForeignKeyViolation(err error) bool {
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}

// now is the timestamp written to created_at/updated_at. SQLite has no
// time zone type, so everything is stored in UTC.
func now() time.Time {
	return time.Now().UTC()
}
