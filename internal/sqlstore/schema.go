package sqlstore

import (
	"context"
	"fmt"
)

// Timestamps are stored as unix microseconds so ordering and cursor
// comparisons behave the same on both backends.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		uri        TEXT PRIMARY KEY,
		cid        TEXT NOT NULL,
		indexed_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_indexed_at_uri_idx ON posts (indexed_at DESC, uri DESC)`,
	`CREATE TABLE IF NOT EXISTS links (
		url         TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		site        TEXT NOT NULL,
		created_at  BIGINT NOT NULL,
		match_count BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS links_match_count_idx ON links (match_count DESC)`,
	`CREATE TABLE IF NOT EXISTS cursors (
		service      TEXT PRIMARY KEY,
		cursor_value BIGINT NOT NULL,
		updated_at   BIGINT NOT NULL
	)`,
}

// Migrate creates any missing tables and indexes. It is safe to run on every
// start.
func (r *Repository) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
