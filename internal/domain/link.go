package domain

import "time"

// Kind is what a shared link points at.
type Kind string

const (
	KindTrack    Kind = "track"
	KindPlaylist Kind = "playlist"
	KindAlbum    Kind = "album"
)

// Site is the service hosting a shared link.
type Site string

const (
	SiteSpotify    Site = "spotify"
	SiteSoundcloud Site = "soundcloud"
	SiteBandcamp   Site = "bandcamp"
)

// FoundLink is a link candidate extracted from post text. Candidates are not
// deduplicated; the same URL may appear more than once per post.
type FoundLink struct {
	// URL is the canonical link with any query string removed.
	URL  string
	Kind Kind
	Site Site
}

// Link is a persisted link. Kind and Site are fixed by the first sighting;
// MatchCount counts every sighting.
type Link struct {
	URL        string
	Kind       Kind
	Site       Site
	CreatedAt  time.Time
	MatchCount int64
}
