package domain

import (
	"context"
	"time"
)

// PostRepository defines persistence operations for indexed posts.
type PostRepository interface {
	// CreatePost inserts a new post and reports whether a row was written.
	// Inserting a URI that already exists is a no-op that returns false.
	CreatePost(ctx context.Context, post *Post) (bool, error)

	// DeletePost removes a post by its AT-URI. Deleting an absent URI is not
	// an error.
	DeletePost(ctx context.Context, uri string) error

	// DeleteOldPosts removes posts older than maxAge and any excess rows beyond
	// maxRows, keeping the most recent posts. Returns the number of rows deleted.
	DeleteOldPosts(ctx context.Context, maxAge time.Duration, maxRows int) (int64, error)

	// ListPostsBefore returns at most limit posts ordered by (IndexedAt, URI)
	// descending. A nil cursor starts from the newest post; otherwise only
	// posts strictly older than the cursor are returned.
	ListPostsBefore(ctx context.Context, cursor *Cursor, limit int) ([]Post, error)
}

// LinkRepository defines persistence operations for shared links.
type LinkRepository interface {
	// UpsertLink records a sighting of link.URL. The first sighting stores
	// Kind, Site and CreatedAt with a match count of one; later sightings only
	// increment the count.
	UpsertLink(ctx context.Context, link *Link) error

	// ListTopLinks returns the most shared links, highest count first.
	ListTopLinks(ctx context.Context, limit int) ([]Link, error)
}

// CursorRepository defines persistence operations for firehose cursors.
type CursorRepository interface {
	// GetCursor retrieves the last-processed firehose cursor for the given
	// service name. Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, service string) (int64, error)

	// UpdateCursor persists the firehose cursor so we can resume on restart.
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// Classifier extracts music links from free text.
type Classifier interface {
	FindLinks(text string) []FoundLink
}
