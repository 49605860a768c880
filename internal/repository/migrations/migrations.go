// Package migrations embeds the schema for both stores and applies it
// with goose. Each dialect has its own directory because SQLite and
// PostgreSQL disagree on identity columns and timestamp types.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// Dialects understood by Up, with the embedded directory each one reads.
const (
	SQLite   = "sqlite3"
	Postgres = "pgx"
)

var dirs = map[string]string{
	SQLite:   "sqlite",
	Postgres: "postgres",
}

// goose keeps its base FS and dialect in package globals.
var mu sync.Mutex

// Up applies every pending migration for dialect to db.
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	dir, ok := dirs[dialect]
	if !ok {
		return fmt.Errorf("migrations: unknown dialect %q", dialect)
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrations: applying %s: %w", dir, err)
	}
	return nil
}
