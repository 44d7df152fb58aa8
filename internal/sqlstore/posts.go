package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/blackmichael/music-feeds/internal/domain"
)

// CreatePost inserts a new post. An existing row with the same URI is kept
// as is and false is returned.
func (r *Repository) CreatePost(ctx context.Context, post *domain.Post) (bool, error) {
	query := `
		INSERT INTO posts (uri, cid, indexed_at)
		VALUES (?, ?, ?)
		ON CONFLICT (uri) DO NOTHING`

	res, err := r.exec(ctx, query,
		post.URI,
		post.CID,
		post.IndexedAt.UnixMicro(),
	)
	if err != nil {
		return false, fmt.Errorf("insert post %s: %w", post.URI, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert post %s: %w", post.URI, err)
	}
	return n > 0, nil
}

// DeletePost removes a post by URI.
func (r *Repository) DeletePost(ctx context.Context, uri string) error {
	if _, err := r.exec(ctx, `DELETE FROM posts WHERE uri = ?`, uri); err != nil {
		return fmt.Errorf("delete post %s: %w", uri, err)
	}
	return nil
}

// ListPostsBefore retrieves a page of posts older than cursor, newest first.
func (r *Repository) ListPostsBefore(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.Post, error) {
	if limit <= 0 {
		return []domain.Post{}, nil
	}

	var (
		rows *sql.Rows
		err  error
	)

	switch {
	case cursor == nil:
		rows, err = r.query(ctx, `
			SELECT uri, cid, indexed_at
			FROM posts
			ORDER BY indexed_at DESC, uri DESC
			LIMIT ?`,
			limit,
		)
	case cursor.URI == "":
		rows, err = r.query(ctx, `
			SELECT uri, cid, indexed_at
			FROM posts
			WHERE indexed_at < ?
			ORDER BY indexed_at DESC, uri DESC
			LIMIT ?`,
			cursor.IndexedAt.UnixMicro(), limit,
		)
	default:
		rows, err = r.query(ctx, `
			SELECT uri, cid, indexed_at
			FROM posts
			WHERE (indexed_at, uri) < (?, ?)
			ORDER BY indexed_at DESC, uri DESC
			LIMIT ?`,
			cursor.IndexedAt.UnixMicro(), cursor.URI, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query posts (cursor=%v, limit=%d): %w", cursor, limit, err)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0, limit)
	for rows.Next() {
		var (
			p         domain.Post
			indexedAt int64
		)
		if err := rows.Scan(&p.URI, &p.CID, &indexedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.IndexedAt = time.UnixMicro(indexedAt).UTC()
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	return posts, nil
}

// DeleteOldPosts removes posts older than maxAge and any excess rows beyond
// maxRows, keeping the most recent posts. A non-positive maxAge or maxRows
// disables that bound. Returns the total number of rows deleted.
func (r *Repository) DeleteOldPosts(ctx context.Context, maxAge time.Duration, maxRows int) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var deleted int64
	if maxAge > 0 {
		res, err := tx.ExecContext(ctx,
			r.rebind(`DELETE FROM posts WHERE indexed_at < ?`),
			time.Now().Add(-maxAge).UnixMicro(),
		)
		if err != nil {
			return 0, fmt.Errorf("delete expired posts: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}

	// Delete everything at or beyond the (maxRows+1)th newest post. When there
	// are not that many rows the subquery is NULL and nothing matches.
	if maxRows > 0 {
		res, err := tx.ExecContext(ctx, r.rebind(`
			DELETE FROM posts WHERE (indexed_at, uri) <= (
				SELECT indexed_at, uri FROM posts
				ORDER BY indexed_at DESC, uri DESC
				LIMIT 1 OFFSET ?
			)`), maxRows,
		)
		if err != nil {
			return 0, fmt.Errorf("delete excess posts: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return deleted, nil
}
