package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/blackmichael/music-feeds/internal/domain"
)

// UpsertLink inserts a link with a match count of one, or increments the
// count of an existing link. Kind, site and created_at are never
// overwritten.
func (r *Repository) UpsertLink(ctx context.Context, link *domain.Link) error {
	query := `
		INSERT INTO links (url, kind, site, created_at, match_count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (url) DO UPDATE SET match_count = links.match_count + 1`

	_, err := r.exec(ctx, query,
		link.URL,
		string(link.Kind),
		string(link.Site),
		link.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("upsert link %s: %w", link.URL, err)
	}
	return nil
}

// GetLink returns the stored link for url, or nil if it has never been seen.
func (r *Repository) GetLink(ctx context.Context, url string) (*domain.Link, error) {
	rows, err := r.query(ctx, `
		SELECT url, kind, site, created_at, match_count
		FROM links
		WHERE url = ?`, url)
	if err != nil {
		return nil, fmt.Errorf("query link %s: %w", url, err)
	}
	links, err := scanLinks(rows)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	return &links[0], nil
}

// ListTopLinks returns the most shared links, ties broken by URL.
func (r *Repository) ListTopLinks(ctx context.Context, limit int) ([]domain.Link, error) {
	rows, err := r.query(ctx, `
		SELECT url, kind, site, created_at, match_count
		FROM links
		ORDER BY match_count DESC, url ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top links (limit=%d): %w", limit, err)
	}
	return scanLinks(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func scanLinks(rows rowScanner) ([]domain.Link, error) {
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		var (
			l         domain.Link
			kind      string
			site      string
			createdAt int64
		)
		if err := rows.Scan(&l.URL, &kind, &site, &createdAt, &l.MatchCount); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		l.Kind = domain.Kind(kind)
		l.Site = domain.Site(site)
		l.CreatedAt = time.UnixMicro(createdAt).UTC()
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}
