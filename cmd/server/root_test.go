package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackmichael/music-feeds/internal/domain"
	"github.com/blackmichael/music-feeds/internal/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "feeds.db")

	out, err := execute(t, "migrate", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date: "+db)

	_, err = execute(t, "migrate", "--db", db)
	assert.NoError(t, err)
}

func TestLinksCommand(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "feeds.db")

	_, err := execute(t, "migrate", "--db", db)
	require.NoError(t, err)

	repo, err := sqlstore.Open(ctx, db, 1)
	require.NoError(t, err)
	seen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, url := range []string{
		"https://open.spotify.com/track/popular",
		"https://open.spotify.com/track/popular",
		"https://artist.bandcamp.com/album/record",
	} {
		require.NoError(t, repo.UpsertLink(ctx, &domain.Link{
			URL:       url,
			Kind:      domain.KindTrack,
			Site:      domain.SiteSpotify,
			CreatedAt: seen,
		}))
	}
	require.NoError(t, repo.Close())

	out, err := execute(t, "links", "--db", db, "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "COUNT")
	assert.Contains(t, out, "https://open.spotify.com/track/popular")
	assert.Contains(t, out, "2024-03-01")
	assert.NotContains(t, out, "bandcamp.com")
}

func TestLinksCommand_RejectsBadLimit(t *testing.T) {
	_, err := execute(t, "links", "--db", filepath.Join(t.TempDir(), "feeds.db"), "-n", "0")
	assert.ErrorContains(t, err, "--limit must be positive")
}

func TestServeRequiresPublisher(t *testing.T) {
	t.Setenv("FEEDGEN_PUBLISHER_DID", "")

	_, err := execute(t, "serve", "--db", filepath.Join(t.TempDir(), "feeds.db"))
	assert.ErrorContains(t, err, "FEEDGEN_PUBLISHER_DID is required")
}

func TestPublishRequiresCredentials(t *testing.T) {
	t.Setenv("BLUESKY_HANDLE", "")
	t.Setenv("BLUESKY_APP_PASSWORD", "")

	_, err := execute(t, "publish")
	assert.ErrorContains(t, err, "--handle and --password are required")
}
