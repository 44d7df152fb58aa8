package domain

import "time"

// Post represents an indexed BlueSky post stored in our database. Only posts
// that shared at least one recognised music link are ever stored.
type Post struct {
	// URI is the AT-URI of the post (e.g. at://did:plc:abc/app.bsky.feed.post/3l3qo2vuowo2b).
	URI string

	// CID is the content identifier of the record.
	CID string

	// IndexedAt is when we indexed this post.
	IndexedAt time.Time
}

// IncomingPost represents a new post from the firehose that hasn't been
// persisted yet. It carries the text and metadata needed for matching.
type IncomingPost struct {
	// URI is the AT-URI of the post.
	URI string

	// CID is the content identifier of the record.
	CID string

	// RKey is the record key, the last segment of URI.
	RKey string

	// AuthorDID is the DID of the repository the post was committed to.
	AuthorDID string

	// Text is the post body text scanned for links.
	Text string

	// LinkURIs are the full URIs of the post's link facets. Clients shorten
	// long links in Text, so these are scanned as well.
	LinkURIs []string

	// CreatedAt is the author-supplied creation time of the record.
	CreatedAt string
}

// DeletedPost identifies a post removed from its author's repository.
type DeletedPost struct {
	URI       string
	RKey      string
	AuthorDID string
}
