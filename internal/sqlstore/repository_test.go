package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackmichael/music-feeds/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "feeds.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func createPost(t *testing.T, repo *Repository, p *domain.Post) {
	t.Helper()
	_, err := repo.CreatePost(context.Background(), p)
	require.NoError(t, err)
}

func postAt(n int, at time.Time) *domain.Post {
	return &domain.Post{
		URI:       fmt.Sprintf("at://did:plc:author/app.bsky.feed.post/%d", n),
		CID:       fmt.Sprintf("cid-%d", n),
		IndexedAt: at,
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	repo := newTestRepository(t)
	assert.NoError(t, repo.Migrate(context.Background()))
}

func TestCreatePost_ConflictDoesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	at := time.UnixMicro(1_000_000).UTC()

	created, err := repo.CreatePost(ctx, &domain.Post{URI: "at://did:plc:a/app.bsky.feed.post/1", CID: "first", IndexedAt: at})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreatePost(ctx, &domain.Post{URI: "at://did:plc:a/app.bsky.feed.post/1", CID: "second", IndexedAt: at.Add(time.Second)})
	require.NoError(t, err)
	assert.False(t, created)

	posts, err := repo.ListPostsBefore(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "first", posts[0].CID)
	assert.True(t, posts[0].IndexedAt.Equal(at))
}

func TestDeletePost(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	p := postAt(1, time.UnixMicro(1).UTC())

	createPost(t, repo, p)
	require.NoError(t, repo.DeletePost(ctx, p.URI))
	// absent uri is a no-op
	require.NoError(t, repo.DeletePost(ctx, p.URI))

	posts, err := repo.ListPostsBefore(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NotNil(t, posts)
}

func TestUpsertLink_FirstWriteWins(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	first := time.UnixMicro(5_000_000).UTC()

	require.NoError(t, repo.UpsertLink(ctx, &domain.Link{URL: "u", Kind: domain.KindTrack, Site: domain.SiteSpotify, CreatedAt: first}))
	require.NoError(t, repo.UpsertLink(ctx, &domain.Link{URL: "u", Kind: domain.KindAlbum, Site: domain.SiteBandcamp, CreatedAt: first.Add(time.Hour)}))

	link, err := repo.GetLink(ctx, "u")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, int64(2), link.MatchCount)
	assert.Equal(t, domain.KindTrack, link.Kind)
	assert.Equal(t, domain.SiteSpotify, link.Site)
	assert.True(t, link.CreatedAt.Equal(first))
}

func TestUpsertLink_CountDefaultsToOne(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	require.NoError(t, repo.UpsertLink(ctx, &domain.Link{URL: "test", Kind: domain.KindTrack, Site: domain.SiteBandcamp, CreatedAt: time.Now()}))
	require.NoError(t, repo.UpsertLink(ctx, &domain.Link{URL: "other", Kind: domain.KindTrack, Site: domain.SiteBandcamp, CreatedAt: time.Now()}))

	link, err := repo.GetLink(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), link.MatchCount)

	missing, err := repo.GetLink(ctx, "never-seen")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListTopLinks(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	for _, url := range []string{"b", "a", "b", "c", "b", "a"} {
		require.NoError(t, repo.UpsertLink(ctx, &domain.Link{URL: url, Kind: domain.KindAlbum, Site: domain.SiteSpotify, CreatedAt: time.Now()}))
	}

	links, err := repo.ListTopLinks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "b", links[0].URL)
	assert.Equal(t, int64(3), links[0].MatchCount)
	assert.Equal(t, "a", links[1].URL)
}

func TestListPostsBefore_Pagination(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	for i := 1; i <= 3; i++ {
		createPost(t, repo, postAt(i, time.UnixMicro(int64(i)).UTC()))
	}

	page, err := repo.ListPostsBefore(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, postAt(3, time.Time{}).URI, page[0].URI)
	assert.Equal(t, postAt(2, time.Time{}).URI, page[1].URI)

	page, err = repo.ListPostsBefore(ctx, domain.CursorAfter(page[1]), 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, postAt(1, time.Time{}).URI, page[0].URI)

	page, err = repo.ListPostsBefore(ctx, domain.CursorAfter(page[0]), 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestListPostsBefore_TiesBrokenByURI(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	at := time.UnixMicro(42).UTC()

	for i := 1; i <= 3; i++ {
		createPost(t, repo, postAt(i, at))
	}

	var seen []string
	var cursor *domain.Cursor
	for {
		page, err := repo.ListPostsBefore(ctx, cursor, 1)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		seen = append(seen, page[0].URI)
		cursor = domain.CursorAfter(page[0])
	}

	assert.Equal(t, []string{postAt(3, at).URI, postAt(2, at).URI, postAt(1, at).URI}, seen)
}

func TestListPostsBefore_TimestampOnlyCursor(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	for i := 1; i <= 3; i++ {
		createPost(t, repo, postAt(i, time.UnixMicro(int64(i)).UTC()))
	}

	page, err := repo.ListPostsBefore(ctx, &domain.Cursor{IndexedAt: time.UnixMicro(3)}, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, postAt(2, time.Time{}).URI, page[0].URI)
}

func TestDeleteOldPosts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	now := time.Now().UTC()

	// one expired post plus four fresh ones
	createPost(t, repo, postAt(0, now.Add(-48*time.Hour)))
	for i := 1; i <= 4; i++ {
		createPost(t, repo, postAt(i, now.Add(time.Duration(i)*time.Second)))
	}

	deleted, err := repo.DeleteOldPosts(ctx, 24*time.Hour, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	posts, err := repo.ListPostsBefore(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, postAt(4, now).URI, posts[0].URI)
	assert.Equal(t, postAt(3, now).URI, posts[1].URI)

	deleted, err = repo.DeleteOldPosts(ctx, 24*time.Hour, 2)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestDeleteOldPosts_NonPositiveBoundsKeepRows(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	now := time.Now().UTC()

	for i := 1; i <= 3; i++ {
		createPost(t, repo, postAt(i, now.Add(-time.Duration(i)*time.Minute)))
	}

	deleted, err := repo.DeleteOldPosts(ctx, time.Hour, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = repo.DeleteOldPosts(ctx, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = repo.DeleteOldPosts(ctx, -time.Hour, -1)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	posts, err := repo.ListPostsBefore(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, posts, 3)
}

func TestCursors(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	got, err := repo.GetCursor(ctx, "relay")
	require.NoError(t, err)
	assert.Zero(t, got)

	require.NoError(t, repo.UpdateCursor(ctx, "relay", 100))
	require.NoError(t, repo.UpdateCursor(ctx, "relay", 250))

	got, err = repo.GetCursor(ctx, "relay")
	require.NoError(t, err)
	assert.Equal(t, int64(250), got)
}

func TestRebind(t *testing.T) {
	pg := &Repository{dialect: dialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b < $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b < ?"))

	lite := &Repository{dialect: dialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestParseURL(t *testing.T) {
	driver, dsn, d := parseURL("postgres://u:p@localhost:5432/feeds?sslmode=disable")
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/feeds?sslmode=disable", dsn)
	assert.Equal(t, dialectPostgres, d)

	driver, dsn, d = parseURL("sqlite:///var/lib/feeds.db")
	assert.Equal(t, "sqlite", driver)
	assert.Equal(t, "/var/lib/feeds.db?"+sqlitePragmas, dsn)
	assert.Equal(t, dialectSQLite, d)

	_, dsn, _ = parseURL("feeds.db?cache=shared")
	assert.Equal(t, "feeds.db?cache=shared&"+sqlitePragmas, dsn)
}
