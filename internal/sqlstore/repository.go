// Package sqlstore implements the domain repositories on database/sql. It
// speaks SQLite (modernc.org/sqlite, the default) and PostgreSQL (lib/pq),
// selected from the shape of the database URL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// sqlitePragmas are applied by the driver to every pooled connection.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// Repository implements domain.PostRepository, domain.LinkRepository and
// domain.CursorRepository.
type Repository struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to databaseURL, verifies the connection, and returns a new
// Repository. URLs starting with postgres:// or postgresql:// use
// PostgreSQL; anything else is a SQLite file path, optionally prefixed with
// sqlite://. maxConns caps the number of open connections; callers beyond
// it block until a connection is free. The caller should call Close when
// the repository is no longer needed.
func Open(ctx context.Context, databaseURL string, maxConns int) (*Repository, error) {
	driver, dsn, d := parseURL(databaseURL)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db, dialect: d}, nil
}

func parseURL(databaseURL string) (driver, dsn string, d dialect) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return "postgres", databaseURL, dialectPostgres
	}

	path := strings.TrimPrefix(databaseURL, "sqlite://")
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "sqlite", path + sep + sqlitePragmas, dialectSQLite
}

// Close closes the underlying database connection pool.
func (r *Repository) Close() error {
	return r.db.Close()
}

// rebind rewrites ? placeholders into PostgreSQL's $n form. Queries in this
// package never contain a literal question mark.
func (r *Repository) rebind(query string) string {
	if r.dialect != dialectPostgres {
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

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.rebind(query), args...)
}
