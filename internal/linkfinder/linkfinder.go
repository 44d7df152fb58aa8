// Package linkfinder recognises music links in post text.
//
// Each supported site has its own Matcher. A Finder runs its matchers in a
// fixed order and concatenates their results. Nothing is deduplicated here:
// repeated URLs are counted when they are stored.
package linkfinder

import (
	"regexp"

	"github.com/blackmichael/music-feeds/internal/domain"
)

const (
	// SpotifyHost is the public host of Spotify share links.
	SpotifyHost = "open.spotify.com"
)

// Matcher finds the links of a single site.
type Matcher interface {
	Match(text string) []domain.FoundLink
}

// Finder implements domain.Classifier over an ordered set of matchers.
type Finder struct {
	matchers []Matcher
}

// New returns a Finder that evaluates matchers in the given order.
func New(matchers ...Matcher) *Finder {
	return &Finder{matchers: matchers}
}

// Default returns the production Finder: Spotify, then Bandcamp.
func Default() *Finder {
	return New(
		Spotify(SpotifyHost),
		Bandcamp(),
	)
}

// FindLinks returns every link candidate in text. Text without links yields
// an empty (nil) slice.
func (f *Finder) FindLinks(text string) []domain.FoundLink {
	var found []domain.FoundLink
	for _, m := range f.matchers {
		found = append(found, m.Match(text)...)
	}
	return found
}

var kinds = map[string]domain.Kind{
	"track":    domain.KindTrack,
	"playlist": domain.KindPlaylist,
	"album":    domain.KindAlbum,
}

// pathMatcher recognises <host>/<kind>/<id> URLs. The pattern must capture
// the kind token in the named group "kind"; the full match is the stored
// URL, so the id group must stop before any query string.
type pathMatcher struct {
	site    domain.Site
	pattern *regexp.Regexp
	kindIdx int
}

func newPathMatcher(site domain.Site, expr string) *pathMatcher {
	pattern := regexp.MustCompile(expr)
	return &pathMatcher{
		site:    site,
		pattern: pattern,
		kindIdx: pattern.SubexpIndex("kind"),
	}
}

// Spotify matches https://<host>/(track|playlist|album)/<id>. The id is not
// validated beyond being alphanumeric.
func Spotify(host string) Matcher {
	return newPathMatcher(domain.SiteSpotify,
		`https?://`+regexp.QuoteMeta(host)+`/(?P<kind>album|playlist|track)/[a-zA-Z0-9]+`)
}

// Bandcamp matches https://<artist>.bandcamp.com/(track|album)/<slug>.
func Bandcamp() Matcher {
	return newPathMatcher(domain.SiteBandcamp,
		`https?://[a-z0-9-]+\.bandcamp\.com/(?P<kind>album|track)/[a-z0-9-]+`)
}

func (m *pathMatcher) Match(text string) []domain.FoundLink {
	matches := m.pattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	found := make([]domain.FoundLink, 0, len(matches))
	for _, match := range matches {
		found = append(found, domain.FoundLink{
			URL:  match[0],
			Kind: kinds[match[m.kindIdx]],
			Site: m.site,
		})
	}
	return found
}
